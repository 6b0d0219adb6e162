package core

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

// NewLogger builds a slog logger from the logging config. Unknown levels fall
// back to info and unknown formats to text.
func NewLogger(config domain.LoggingConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: ports.ParseLogLevel(config.Level)}
	if strings.EqualFold(config.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
