package model

import (
	"context"
	"fmt"

	"github.com/loomml/loom/pkg/domain/remote"
	"github.com/loomml/loom/pkg/domain/task"
	"github.com/loomml/loom/pkg/utils/maps"
)

// gateway to the external workflow backend, if any.
type remoteState struct {
	gateway remote.Gateway
}

// Bind attaches a remote gateway to the model. Remote operations fail with
// remote.ErrNoGateway until one is bound.
func (m *Model) Bind(gw remote.Gateway) {
	m.remote.gateway = gw
}

// RemoteDeploy deploys the application backing this model.
func (m *Model) RemoteDeploy(ctx context.Context, version string) error {
	if m.remote.gateway == nil {
		return remote.ErrNoGateway
	}
	return m.remote.gateway.Deploy(ctx, version)
}

// RemoteTrain submits a remote training execution.
//
// Hyperparameters are validated against the schema locally, before
// submission; an invalid mapping never reaches the backend.
func (m *Model) RemoteTrain(ctx context.Context, version string, hp map[string]any, inputs task.Inputs) (remote.Execution, error) {
	if m.remote.gateway == nil {
		return remote.Execution{}, remote.ErrNoGateway
	}

	schema, err := m.Hyperparameters()
	if err != nil {
		return remote.Execution{}, err
	}
	if _, err := schema.Coerce(hp); err != nil {
		return remote.Execution{}, err
	}

	in := task.Inputs(maps.Clone(inputs))
	in[task.InputHyperparameters] = hp
	return m.remote.gateway.Train(ctx, version, in)
}

// RemoteLoad fetches a finished remote training execution's result and
// makes it the current artifact.
//
// Unlike LoadFile/LoadFrom, this restores the full artifact: the model
// object and the remotely computed metrics.
func (m *Model) RemoteLoad(ctx context.Context, exec remote.Execution) error {
	if m.remote.gateway == nil {
		return remote.ErrNoGateway
	}

	artifact, err := m.remote.gateway.Load(ctx, exec)
	if err != nil {
		return err
	}
	if artifact == nil {
		return fmt.Errorf("backend returned no artifact for execution %s", exec.ID)
	}
	m.SetArtifact(artifact)
	return nil
}

// RemotePredict submits a remote prediction. With wait, it returns the
// predictions; otherwise it returns an execution handle for later polling.
func (m *Model) RemotePredict(ctx context.Context, version string, wait bool, inputs task.Inputs) (any, *remote.Execution, error) {
	if m.remote.gateway == nil {
		return nil, nil, remote.ErrNoGateway
	}
	return m.remote.gateway.Predict(ctx, version, wait, inputs)
}
