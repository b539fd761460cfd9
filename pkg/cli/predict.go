package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/youta-t/flarc"

	"github.com/loomml/loom/pkg/domain/dataset"
	"github.com/loomml/loom/pkg/domain/model"
)

type predictFlags struct {
	Model         string `flag:"model" alias:"m" help:"file path of a trained model, saved by train --output"`
	Features      string `flag:"features" help:"features as JSON, in the shape the model's parser declares"`
	ReaderOptions string `flag:"reader-options" help:"reader options as a JSON object, to predict over freshly read data"`
}

func newPredict(m *model.Model) (flarc.Command, error) {
	return flarc.NewCommand(
		"Predict with a trained model.",
		predictFlags{},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[predictFlags], _ []any) error {
			flags := c.Flags()

			if flags.Model != "" {
				if _, err := m.LoadFile(flags.Model); err != nil {
					return err
				}
			}

			var predictions any
			if flags.Features != "" {
				featureType, err := m.FeatureType()
				if err != nil {
					return err
				}
				features := reflect.New(featureType)
				if err := json.Unmarshal([]byte(flags.Features), features.Interface()); err != nil {
					return fmt.Errorf("--features do not fit the model: %w", err)
				}

				predictions, err = m.PredictFromFeatures(ctx, features.Elem().Interface())
				if err != nil {
					return err
				}
			} else {
				o, err := parseJSONFlag[map[string]any]("reader-options", flags.ReaderOptions)
				if err != nil {
					return err
				}

				predictions, err = m.Predict(ctx, dataset.CallOptions{Reader: o})
				if err != nil {
					return err
				}
			}

			enc := json.NewEncoder(c.Stdout())
			enc.SetIndent("", "    ")
			return enc.Encode(map[string]any{"predictions": predictions})
		},
		flarc.WithDescription(`
Predict with the model over --features, or over data read by the dataset's
reader when --features is not given.

The model must have been trained in this process lifetime or loaded with
--model.
`),
	)
}
