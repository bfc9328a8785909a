package cachelru

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/usecase"
)

// Cache holds recent verification outcomes, evicting the least recently used.
type Cache struct {
	entries *lru.Cache
}

func New(size int) (*Cache, error) {
	if size <= 0 {
		size = 1024
	}
	entries, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

func (c *Cache) Get(key string) (domain.VerificationOutcome, bool) {
	if c == nil {
		return domain.VerificationOutcome{}, false
	}
	value, ok := c.entries.Get(key)
	if !ok {
		return domain.VerificationOutcome{}, false
	}
	outcome, ok := value.(domain.VerificationOutcome)
	return outcome, ok
}

func (c *Cache) Add(key string, outcome domain.VerificationOutcome) {
	if c == nil {
		return
	}
	c.entries.Add(key, outcome)
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

var _ usecase.VerificationCache = (*Cache)(nil)
