package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/youta-t/flarc"

	"github.com/loomml/loom/pkg/configs/serving"
	"github.com/loomml/loom/pkg/domain/model"
	"github.com/loomml/loom/pkg/serve"
)

type serveFlags struct {
	Config string `flag:"config" alias:"c" help:"yaml config file with port, model and watch"`
	Port   int    `flag:"port" help:"port to listen on"`
	Model  string `flag:"model" alias:"m" help:"file path of a trained model, saved by train --output"`
	Watch  bool   `flag:"watch" alias:"w" help:"reload the model whenever its file changes"`
}

func newServe(m *model.Model) (flarc.Command, error) {
	return flarc.NewCommand(
		"Serve predictions over HTTP.",
		serveFlags{},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[serveFlags], _ []any) error {
			flags := c.Flags()

			config := serving.Default()
			if flags.Config != "" {
				loaded, err := serving.Load(flags.Config)
				if err != nil {
					return err
				}
				config = loaded
			}
			// explicit flags win over the config file
			if flags.Port != 0 {
				config.Port = flags.Port
			}
			if flags.Model != "" {
				config.Model = flags.Model
			}
			if flags.Watch {
				config.Watch = true
			}

			if config.Model == "" {
				return fmt.Errorf("a model file is required: pass --model or set model in --config")
			}

			e := serve.New(m)
			if config.Watch {
				stop, err := serve.WatchArtifact(ctx, m, config.Model, e.Logger)
				if err != nil {
					return err
				}
				defer stop()
			} else if _, err := m.LoadFile(config.Model); err != nil {
				return err
			}

			return serve.Start(ctx, e, config.Port, 30*time.Second)
		},
		flarc.WithDescription(`
Expose the model on HTTP:

    GET  /health   liveness and whether a trained model is loaded
    POST /predict  {"features": ...} -> {"predictions": ...}

Configuration comes from --config (yaml: port, model, watch), overridden
by the flags. With watch, the model file is watched and reloaded on
change, so a training process may hand over new models without a restart.
`),
	)
}
