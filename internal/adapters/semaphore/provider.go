package semaphore

import (
	"log/slog"
	"sync"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

type Provider struct {
	mu        sync.RWMutex
	bulkheads map[string]*Bulkhead
	logger    *slog.Logger
}

var _ ports.BulkheadProvider = (*Provider)(nil)

func NewProvider(logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}

	return &Provider{
		bulkheads: make(map[string]*Bulkhead),
		logger:    logger,
	}
}

// GetBulkhead returns the named bulkhead. A changed capacity replaces the
// bulkhead; holders of the old one release into it unaffected.
func (p *Provider) GetBulkhead(name string, policy domain.BulkheadPolicy) ports.Bulkhead {
	policy = normalizePolicy(policy)

	p.mu.RLock()
	bulkhead, exists := p.bulkheads[name]
	p.mu.RUnlock()

	if exists && bulkhead.policy == policy {
		return bulkhead
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.bulkheads[name]; ok && existing.policy == policy {
		return existing
	}

	bulkhead = NewBulkhead(name, policy, p.logger)
	p.bulkheads[name] = bulkhead
	return bulkhead
}
