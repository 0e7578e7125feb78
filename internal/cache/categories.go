package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/sheets"
)

const categoriesKey = "categories"

var _ sheets.CategoryReader = (*CategoryReader)(nil)

// CategoryReader memoizes the category reference for ttl. Concurrent misses
// share one upstream read.
type CategoryReader struct {
	next   sheets.CategoryReader
	cache  *LRUCache[[]core.CategoryRow]
	group  singleflight.Group
	logger *log.Logger
}

func NewCategoryReader(next sheets.CategoryReader, ttl time.Duration, logger *log.Logger) *CategoryReader {
	if logger == nil {
		logger = log.Nop()
	}
	return &CategoryReader{
		next:   next,
		cache:  NewLRUCache[[]core.CategoryRow](1, ttl),
		logger: logger.WithComponent(log.ComponentCache),
	}
}

func (c *CategoryReader) ListCategories(ctx context.Context) ([]core.CategoryRow, error) {
	if rows, ok := c.cache.Get(categoriesKey); ok {
		return rows, nil
	}
	v, err, shared := c.group.Do(categoriesKey, func() (any, error) {
		rows, err := c.next.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.Set(categoriesKey, rows)
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	rows := v.([]core.CategoryRow)
	c.logger.DebugContext(ctx, "Category reference loaded", log.FieldCount, len(rows), "shared", shared)
	return rows, nil
}

// Invalidate forces the next call to read upstream.
func (c *CategoryReader) Invalidate() {
	c.cache.Delete(categoriesKey)
}

// CleanExpired lets a Manager sweep the underlying cache.
func (c *CategoryReader) CleanExpired() int {
	return c.cache.CleanExpired()
}
