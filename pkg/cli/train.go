package cli

import (
	"context"
	"encoding/json"

	"github.com/youta-t/flarc"

	"github.com/loomml/loom/pkg/domain/dataset"
	"github.com/loomml/loom/pkg/domain/model"
)

type trainFlags struct {
	Hyperparameters string `flag:"hyperparameters" alias:"p" help:"hyperparameters as a JSON object"`
	ReaderOptions   string `flag:"reader-options" help:"reader options as a JSON object"`
	LoaderOptions   string `flag:"loader-options" help:"loader options as a JSON object"`
	SplitterOptions string `flag:"splitter-options" help:"splitter options as a JSON object"`
	ParserOptions   string `flag:"parser-options" help:"parser options as a JSON object"`
	Output          string `flag:"output" alias:"o" help:"file path to save the trained model at"`
}

func newTrain(m *model.Model) (flarc.Command, error) {
	return flarc.NewCommand(
		"Train the model locally and report its metrics.",
		trainFlags{},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[trainFlags], _ []any) error {
			flags := c.Flags()

			hp, err := parseJSONFlag[map[string]any]("hyperparameters", flags.Hyperparameters)
			if err != nil {
				return err
			}
			o, err := callOptions(flags)
			if err != nil {
				return err
			}

			_, metrics, err := m.Train(ctx, hp, o)
			if err != nil {
				return err
			}

			if flags.Output != "" {
				if _, err := m.SaveFile(flags.Output); err != nil {
					return err
				}
			}

			enc := json.NewEncoder(c.Stdout())
			enc.SetIndent("", "    ")
			return enc.Encode(map[string]any{"metrics": metrics})
		},
		flarc.WithDescription(`
Run the full training pipeline on this machine: read the dataset, split it,
fit the model and score it per split.

With --output, the trained model is serialized there, ready for "predict"
and "serve".
`),
	)
}

func callOptions(flags trainFlags) (dataset.CallOptions, error) {
	o := dataset.CallOptions{}

	var err error
	if o.Reader, err = parseJSONFlag[map[string]any]("reader-options", flags.ReaderOptions); err != nil {
		return o, err
	}
	if o.Loader, err = parseJSONFlag[map[string]any]("loader-options", flags.LoaderOptions); err != nil {
		return o, err
	}
	if o.Splitter, err = parseJSONFlag[map[string]any]("splitter-options", flags.SplitterOptions); err != nil {
		return o, err
	}
	if o.Parser, err = parseJSONFlag[map[string]any]("parser-options", flags.ParserOptions); err != nil {
		return o, err
	}
	return o, nil
}
