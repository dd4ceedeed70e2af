// Package lrucache keeps recently used catalog entries in process memory.
// Courses are immutable once authored, so entries never expire; Purge exists
// for reseeding.
package lrucache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/alem-hub/progress-ledger/internal/domain/course"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// DefaultSize is the number of courses and modules kept.
const DefaultSize = 1024

// Catalog is a course.Catalog decorator. Lookup errors, including not found,
// are passed through and never cached.
type Catalog struct {
	next    course.Catalog
	courses *lru.Cache
	modules *lru.Cache
}

// NewCatalog wraps next. A non-positive size uses DefaultSize.
func NewCatalog(next course.Catalog, size int) (*Catalog, error) {
	if size <= 0 {
		size = DefaultSize
	}
	courses, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("lrucache: %w", err)
	}
	modules, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("lrucache: %w", err)
	}
	return &Catalog{next: next, courses: courses, modules: modules}, nil
}

func (c *Catalog) GetCourse(ctx context.Context, id shared.CourseID) (*course.Course, error) {
	if v, ok := c.courses.Get(id); ok {
		return v.(*course.Course), nil
	}
	crs, err := c.next.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	c.courses.Add(id, crs)
	return crs, nil
}

func (c *Catalog) GetModule(ctx context.Context, id shared.ModuleID) (*course.Module, error) {
	if v, ok := c.modules.Get(id); ok {
		m := v.(course.Module)
		return &m, nil
	}
	m, err := c.next.GetModule(ctx, id)
	if err != nil {
		return nil, err
	}
	c.modules.Add(id, *m)
	return m, nil
}

// Purge drops every cached entry.
func (c *Catalog) Purge() {
	c.courses.Purge()
	c.modules.Purge()
}

// Len is the number of cached courses.
func (c *Catalog) Len() int {
	return c.courses.Len()
}

var _ course.Catalog = (*Catalog)(nil)
