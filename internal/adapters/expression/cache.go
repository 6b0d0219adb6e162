package expression

import (
	"github.com/dop251/goja"
	lru "github.com/hashicorp/golang-lru"
)

// CompiledExpression is an expression that passed every safety check and was
// compiled into a program. It is never mutated after creation.
type CompiledExpression struct {
	Source        string
	Variables     []string
	Deterministic bool

	js      string
	program *goja.Program
}

// Cache is a fixed-capacity recency-ordered store of compiled expressions.
// Get promotes an entry; Add beyond capacity evicts the least recently used.
type Cache struct {
	entries *lru.Cache
}

func NewCache(size int) (*Cache, error) {
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) Get(source string) (*CompiledExpression, bool) {
	value, ok := c.entries.Get(source)
	if !ok {
		return nil, false
	}
	return value.(*CompiledExpression), true
}

// Add stores compiled and reports whether an older entry was evicted.
func (c *Cache) Add(compiled *CompiledExpression) bool {
	return c.entries.Add(compiled.Source, compiled)
}

func (c *Cache) Contains(source string) bool {
	return c.entries.Contains(source)
}

func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) Clear() {
	c.entries.Purge()
}
