package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/google/uuid"
	"github.com/youta-t/flarc"

	"github.com/loomml/loom/pkg/configs/profile"
	"github.com/loomml/loom/pkg/domain/model"
	"github.com/loomml/loom/pkg/domain/remote"
	"github.com/loomml/loom/pkg/domain/task"
)

func newRemote(m *model.Model, option *Option) (flarc.Command, error) {
	deploy, err := newRemoteDeploy(m, option)
	if err != nil {
		return nil, err
	}
	train, err := newRemoteTrain(m, option)
	if err != nil {
		return nil, err
	}
	load, err := newRemoteLoad(m, option)
	if err != nil {
		return nil, err
	}
	predict, err := newRemotePredict(m, option)
	if err != nil {
		return nil, err
	}

	return flarc.NewCommandGroup(
		"Operate the model on a remote backend.",
		struct{}{},
		flarc.WithSubcommand("deploy", deploy),
		flarc.WithSubcommand("train", train),
		flarc.WithSubcommand("load", load),
		flarc.WithSubcommand("predict", predict),
	)
}

// bind resolves the profile and attaches a gateway to the model.
func bind(m *model.Model, option *Option, profilePath string) (*profile.Profile, error) {
	path := profilePath
	if path == "" {
		var err error
		if path, err = profile.FindPath(); err != nil {
			return nil, err
		}
	}

	prof, err := profile.Load(path)
	if err != nil {
		return nil, err
	}

	gw, err := option.newGateway(prof)
	if err != nil {
		return nil, err
	}
	m.Bind(gw)
	return prof, nil
}

type remoteDeployFlags struct {
	Profile string `flag:"profile" help:"profile yaml of the backend (default: $LOOM_PROFILE or ~/.loom/profile.yaml)"`
	Version string `flag:"version" alias:"v" help:"version to deploy as (default: a fresh random one)"`
}

func newRemoteDeploy(m *model.Model, option *Option) (flarc.Command, error) {
	return flarc.NewCommand(
		"Deploy the application to the backend.",
		remoteDeployFlags{},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[remoteDeployFlags], _ []any) error {
			flags := c.Flags()
			if _, err := bind(m, option, flags.Profile); err != nil {
				return err
			}

			version := flags.Version
			if version == "" {
				version = uuid.NewString()
			}

			if err := m.RemoteDeploy(ctx, version); err != nil {
				return err
			}
			return json.NewEncoder(c.Stdout()).Encode(map[string]string{"version": version})
		},
	)
}

type remoteTrainFlags struct {
	Profile         string `flag:"profile" help:"profile yaml of the backend"`
	Version         string `flag:"version" alias:"v" help:"deployed version to train with"`
	Hyperparameters string `flag:"hyperparameters" alias:"p" help:"hyperparameters as a JSON object"`
	ReaderOptions   string `flag:"reader-options" help:"reader options as a JSON object"`
}

func newRemoteTrain(m *model.Model, option *Option) (flarc.Command, error) {
	return flarc.NewCommand(
		"Submit a training execution to the backend.",
		remoteTrainFlags{},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[remoteTrainFlags], _ []any) error {
			flags := c.Flags()
			if _, err := bind(m, option, flags.Profile); err != nil {
				return err
			}

			hp, err := parseJSONFlag[map[string]any]("hyperparameters", flags.Hyperparameters)
			if err != nil {
				return err
			}
			readerOptions, err := parseJSONFlag[map[string]any]("reader-options", flags.ReaderOptions)
			if err != nil {
				return err
			}

			inputs := task.Inputs{}
			if readerOptions != nil {
				inputs["reader_options"] = readerOptions
			}

			exec, err := m.RemoteTrain(ctx, flags.Version, hp, inputs)
			if err != nil {
				return err
			}
			return json.NewEncoder(c.Stdout()).Encode(map[string]string{
				"execution": exec.ID, "app": exec.App,
			})
		},
		flarc.WithDescription(`
Submit a training execution and return immediately. Pick the result up
later with "remote load".
`),
	)
}

const argExecutionID = "EXECUTION_ID"

type remoteLoadFlags struct {
	Profile string `flag:"profile" help:"profile yaml of the backend"`
	Output  string `flag:"output" alias:"o" help:"file path to save the fetched model at"`
}

func newRemoteLoad(m *model.Model, option *Option) (flarc.Command, error) {
	return flarc.NewCommand(
		"Fetch a finished training execution's model.",
		remoteLoadFlags{},
		flarc.Args{
			{
				Name: argExecutionID, Required: true,
				Help: "Id of the execution to load, from \"remote train\"",
			},
		},
		func(ctx context.Context, c flarc.Commandline[remoteLoadFlags], _ []any) error {
			flags := c.Flags()
			prof, err := bind(m, option, flags.Profile)
			if err != nil {
				return err
			}

			exec := remote.Execution{
				ID:  c.Args()[argExecutionID][0],
				App: prof.App,
			}
			if err := m.RemoteLoad(ctx, exec); err != nil {
				return err
			}

			if flags.Output != "" {
				if _, err := m.SaveFile(flags.Output); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(c.Stdout())
			enc.SetIndent("", "    ")
			return enc.Encode(map[string]any{"metrics": m.Artifact().Metrics})
		},
	)
}

type remotePredictFlags struct {
	Profile  string `flag:"profile" help:"profile yaml of the backend"`
	Version  string `flag:"version" alias:"v" help:"deployed version to predict with"`
	Features string `flag:"features" help:"features as JSON, in the shape the model's parser declares"`
	NoWait   bool   `flag:"no-wait" help:"return the execution id instead of waiting for predictions"`
}

func newRemotePredict(m *model.Model, option *Option) (flarc.Command, error) {
	return flarc.NewCommand(
		"Predict on the backend.",
		remotePredictFlags{},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[remotePredictFlags], _ []any) error {
			flags := c.Flags()
			if _, err := bind(m, option, flags.Profile); err != nil {
				return err
			}

			inputs := task.Inputs{}
			if flags.Features != "" {
				featureType, err := m.FeatureType()
				if err != nil {
					return err
				}
				features := reflect.New(featureType)
				if err := json.Unmarshal([]byte(flags.Features), features.Interface()); err != nil {
					return fmt.Errorf("--features do not fit the model: %w", err)
				}
				inputs[task.InputFeatures] = features.Elem().Interface()
			}

			predictions, exec, err := m.RemotePredict(ctx, flags.Version, !flags.NoWait, inputs)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(c.Stdout())
			enc.SetIndent("", "    ")
			if exec != nil {
				return enc.Encode(map[string]string{"execution": exec.ID, "app": exec.App})
			}
			return enc.Encode(map[string]any{"predictions": predictions})
		},
	)
}
