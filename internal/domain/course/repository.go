package course

import (
	"context"

	"github.com/alem-hub/progress-ledger/internal/domain/shared"
)

// Catalog reads authored courses. Implementations return errors matching
// shared.ErrNotFound for unknown ids and shared.ErrInfrastructure for store
// failures.
type Catalog interface {
	GetCourse(ctx context.Context, id shared.CourseID) (*Course, error)
	GetModule(ctx context.Context, id shared.ModuleID) (*Module, error)
}
