package queue

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/Barneycle/ganapp-core/internal/errors"
	"github.com/Barneycle/ganapp-core/internal/models"
)

// Applier pushes one mutation to the remote store. Implementations must
// be idempotent: a drain can replay an operation whose first attempt
// crashed after the remote write landed. Failures are classified
// through the errors package; anything unclassified is retried.
type Applier interface {
	Apply(ctx context.Context, op *models.QueuedOperation) error
}

// ForceApplier is implemented by appliers that can push a mutation past
// a business conflict once the resolver ruled the local side wins.
// Appliers whose remote honors last-write-wins natively can skip it;
// the drain falls back to a plain Apply.
type ForceApplier interface {
	ForceApply(ctx context.Context, op *models.QueuedOperation) error
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, op *models.QueuedOperation) error

// Apply implements Applier.
func (f ApplierFunc) Apply(ctx context.Context, op *models.QueuedOperation) error {
	return f(ctx, op)
}

// Registry maps data types to the applier that pushes them remotely.
type Registry struct {
	mu       sync.RWMutex
	appliers map[models.DataType]Applier
}

// NewRegistry creates an empty applier registry.
func NewRegistry() *Registry {
	return &Registry{appliers: make(map[models.DataType]Applier)}
}

// Register installs the applier for a data type, replacing any previous
// one.
func (r *Registry) Register(dt models.DataType, a Applier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appliers[dt] = a
}

// For returns the applier registered for a data type.
func (r *Registry) For(dt models.DataType) (Applier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appliers[dt]
	if !ok {
		return nil, apperrors.New(apperrors.ErrNoApplier,
			fmt.Sprintf("no applier registered for data type %s", dt))
	}
	return a, nil
}

// RegisterFunc installs a function as the applier for a data type.
func (r *Registry) RegisterFunc(dt models.DataType, f ApplierFunc) {
	r.Register(dt, f)
}
