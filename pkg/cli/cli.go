// Package cli builds the command line interface of a loom application.
//
// An application declares its model in code, then hands it to New to get a
// ready-made command set: local training and prediction, an HTTP serving
// loop, and operations against a remote backend.
package cli

import (
	"encoding/json"
	"fmt"

	"github.com/youta-t/flarc"

	"github.com/loomml/loom/pkg/configs/profile"
	"github.com/loomml/loom/pkg/domain/model"
	"github.com/loomml/loom/pkg/domain/remote"
	"github.com/loomml/loom/pkg/remote/rest"
)

// New builds the command group for the model.
func New(m *model.Model, options ...func(*Option) *Option) (flarc.Command, error) {
	option := &Option{newGateway: restGateway}
	for _, opt := range options {
		option = opt(option)
	}

	train, err := newTrain(m)
	if err != nil {
		return nil, err
	}
	predict, err := newPredict(m)
	if err != nil {
		return nil, err
	}
	serve, err := newServe(m)
	if err != nil {
		return nil, err
	}
	remote, err := newRemote(m, option)
	if err != nil {
		return nil, err
	}
	version, err := newVersion()
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		fmt.Sprintf("Operate the model %s.", m.Name()),
		struct{}{},
		flarc.WithSubcommand("train", train),
		flarc.WithSubcommand("predict", predict),
		flarc.WithSubcommand("serve", serve),
		flarc.WithSubcommand("remote", remote),
		flarc.WithSubcommand("version", version),
	)
}

// Option customizes command construction, mostly for tests.
type Option struct {
	newGateway GatewayFactory
}

type GatewayFactory func(prof *profile.Profile) (remote.Gateway, error)

// WithGateway swaps the backend client construction.
func WithGateway(f GatewayFactory) func(*Option) *Option {
	return func(o *Option) *Option {
		o.newGateway = f
		return o
	}
}

func restGateway(prof *profile.Profile) (remote.Gateway, error) {
	return rest.New(prof)
}

// parseJSONFlag decodes a JSON-valued flag. Empty means zero value.
func parseJSONFlag[T any](name string, raw string) (T, error) {
	parsed := *new(T)
	if raw == "" {
		return parsed, nil
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return parsed, fmt.Errorf("--%s is not valid JSON: %w", name, err)
	}
	return parsed, nil
}
