// Package remote declares the contract of the external workflow backend.
//
// loom only submits work and consumes results; scheduling, retries and
// artifact storage are entirely the backend's business.
package remote

import (
	"context"
	"errors"

	"github.com/loomml/loom/pkg/domain"
	"github.com/loomml/loom/pkg/domain/task"
)

// ErrNoGateway is returned when a remote operation is attempted on a model
// with no gateway bound.
var ErrNoGateway = errors.New("no remote gateway is bound")

// Execution is an opaque handle to a remote, possibly still-running,
// training or prediction job.
type Execution struct {
	// ID identifies the execution on the backend.
	ID string

	// App is the deployed application the execution belongs to.
	App string
}

// Gateway is the client-side view of the external workflow backend.
type Gateway interface {
	// Deploy registers the application, under the given version, with the
	// backend so executions can be submitted against it.
	Deploy(ctx context.Context, version string) error

	// Train submits a remote training execution and returns its handle
	// without waiting for completion.
	Train(ctx context.Context, version string, inputs task.Inputs) (Execution, error)

	// Load fetches a finished training execution's result as a full model
	// artifact: the fitted model object and the metrics computed remotely.
	Load(ctx context.Context, exec Execution) (*domain.Artifact, error)

	// Predict submits a remote prediction. With wait, it blocks until the
	// predictions are available and returns them; otherwise it returns the
	// execution handle for later polling.
	Predict(ctx context.Context, version string, wait bool, inputs task.Inputs) (any, *Execution, error)
}
