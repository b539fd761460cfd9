package task

import (
	"context"
	"fmt"
	"reflect"

	"github.com/loomml/loom/pkg/domain"
	"github.com/loomml/loom/pkg/domain/dataset"
	"github.com/loomml/loom/pkg/domain/hyperparams"
	"github.com/loomml/loom/pkg/domain/registry"
)

// Input and output names of synthesized tasks. External workflow graphs
// bind values by these names.
const (
	InputHyperparameters = "hyperparameters"
	InputData            = "data"
	InputLoaderOptions   = "loader_options"
	InputSplitterOptions = "splitter_options"
	InputParserOptions   = "parser_options"
	InputModelObject     = "model_object"
	InputFeatures        = "features"

	OutputModelObject = "model_object"
	OutputMetrics     = "metrics"
	OutputPredictions = "predictions"
)

// Components yields the signatures of the model-side component functions.
//
// *registry.Registry satisfies this; the model layer wraps it to resolve
// the initializer fallback.
type Components interface {
	Get(role domain.Role) (*registry.Signature, error)
}

var (
	stringType  = reflect.TypeOf("")
	optionsType = reflect.TypeOf(map[string]any{})
)

// Train synthesizes the training task.
//
// Inputs: hyperparameters (the schema type inferred from the initializer),
// data (the reader's declared return type), and optional per-stage option
// overrides. Outputs: model_object (the trainer's declared return type) and
// metrics (split name to the evaluator's declared return type).
//
// Execution runs load -> split -> parse against the supplied data (the
// reader runs as a separate upstream step in task form), initializes the
// model from the hyperparameters, fits it with the trainer, and evaluates
// it against both splits.
func Train(name string, ds *dataset.Dataset, comps Components) (*Task, error) {
	roles, err := modelRoles(comps)
	if err != nil {
		return nil, err
	}
	init, err := comps.Get(domain.RoleInit)
	if err != nil {
		return nil, err
	}
	schema, err := hyperparams.Infer(init)
	if err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	dataType, err := ds.ReaderType()
	if err != nil {
		return nil, err
	}
	if err := checkDataFlow(ds, roles); err != nil {
		return nil, err
	}

	metricsType := reflect.MapOf(stringType, roles.evaluator.Out())

	run := func(ctx context.Context, in Inputs) (Outputs, error) {
		hp, err := hyperparameterValue(schema, in[InputHyperparameters])
		if err != nil {
			return nil, err
		}

		data, err := ds.FromRaw(in[InputData], dataset.CallOptions{
			Loader:   optionsValue(in[InputLoaderOptions]),
			Splitter: optionsValue(in[InputSplitterOptions]),
			Parser:   optionsValue(in[InputParserOptions]),
		})
		if err != nil {
			return nil, err
		}

		model, err := init.Call(hp)
		if err != nil {
			return nil, err
		}
		fitted, err := roles.trainer.Call(model, data.TrainFeatures, data.TrainTargets)
		if err != nil {
			return nil, err
		}

		metrics := reflect.MakeMapWithSize(metricsType, 2)
		for split, x := range map[string][2]any{
			"train": {data.TrainFeatures, data.TrainTargets},
			"test":  {data.TestFeatures, data.TestTargets},
		} {
			value, err := roles.evaluator.Call(fitted, x[0], x[1])
			if err != nil {
				return nil, err
			}
			metrics.SetMapIndex(reflect.ValueOf(split), metricValue(value, roles.evaluator.Out()))
		}

		return Outputs{
			OutputModelObject: fitted,
			OutputMetrics:     metrics.Interface(),
		}, nil
	}

	return &Task{
		name: name,
		inputs: []Var{
			{Name: InputHyperparameters, Type: schema.Type()},
			{Name: InputData, Type: dataType},
			{Name: InputLoaderOptions, Type: optionsType, Optional: true},
			{Name: InputSplitterOptions, Type: optionsType, Optional: true},
			{Name: InputParserOptions, Type: optionsType, Optional: true},
		},
		outputs: []Var{
			{Name: OutputModelObject, Type: roles.trainer.Out()},
			{Name: OutputMetrics, Type: metricsType},
		},
		run: run,
	}, nil
}

// Predict synthesizes the prediction task over raw data.
//
// Features are re-derived from data with the dataset's train-time parsing
// policy (features side only), then handed to the predictor.
func Predict(name string, ds *dataset.Dataset, comps Components) (*Task, error) {
	roles, err := modelRoles(comps)
	if err != nil {
		return nil, err
	}
	dataType, err := ds.ReaderType()
	if err != nil {
		return nil, err
	}

	run := func(ctx context.Context, in Inputs) (Outputs, error) {
		features, err := ds.GetFeatures(in[InputData])
		if err != nil {
			return nil, err
		}
		predictions, err := roles.predictor.Call(in[InputModelObject], features)
		if err != nil {
			return nil, err
		}
		return Outputs{OutputPredictions: predictions}, nil
	}

	return &Task{
		name: name,
		inputs: []Var{
			{Name: InputModelObject, Type: roles.trainer.Out()},
			{Name: InputData, Type: dataType},
		},
		outputs: []Var{
			{Name: OutputPredictions, Type: roles.predictor.Out()},
		},
		run: run,
	}, nil
}

// PredictFromFeatures synthesizes the prediction task over already-extracted
// features. Dataset parsing is skipped entirely.
func PredictFromFeatures(name string, ds *dataset.Dataset, comps Components) (*Task, error) {
	roles, err := modelRoles(comps)
	if err != nil {
		return nil, err
	}
	featureType, err := ds.FeatureType()
	if err != nil {
		return nil, err
	}

	run := func(ctx context.Context, in Inputs) (Outputs, error) {
		predictions, err := roles.predictor.Call(in[InputModelObject], in[InputFeatures])
		if err != nil {
			return nil, err
		}
		return Outputs{OutputPredictions: predictions}, nil
	}

	return &Task{
		name: name,
		inputs: []Var{
			{Name: InputModelObject, Type: roles.trainer.Out()},
			{Name: InputFeatures, Type: featureType},
		},
		outputs: []Var{
			{Name: OutputPredictions, Type: roles.predictor.Out()},
		},
		run: run,
	}, nil
}

type modelRoleSet struct {
	trainer   *registry.Signature
	predictor *registry.Signature
	evaluator *registry.Signature
}

// modelRoles fetches trainer, predictor and evaluator, and checks their
// arities. All three must be registered before any task is synthesized.
func modelRoles(comps Components) (*modelRoleSet, error) {
	trainer, err := comps.Get(domain.RoleTrainer)
	if err != nil {
		return nil, err
	}
	predictor, err := comps.Get(domain.RolePredictor)
	if err != nil {
		return nil, err
	}
	evaluator, err := comps.Get(domain.RoleEvaluator)
	if err != nil {
		return nil, err
	}

	if trainer.NumIn() != 3 {
		return nil, fmt.Errorf(
			"%w: trainer must take (model, features, targets), got %d parameters",
			domain.ErrSignature, trainer.NumIn(),
		)
	}
	if predictor.NumIn() != 2 {
		return nil, fmt.Errorf(
			"%w: predictor must take (model, features), got %d parameters",
			domain.ErrSignature, predictor.NumIn(),
		)
	}
	if evaluator.NumIn() != 3 {
		return nil, fmt.Errorf(
			"%w: evaluator must take (model, features, targets), got %d parameters",
			domain.ErrSignature, evaluator.NumIn(),
		)
	}
	return &modelRoleSet{trainer: trainer, predictor: predictor, evaluator: evaluator}, nil
}

// checkDataFlow verifies statically that the parser's outputs flow into the
// trainer, predictor and evaluator, and the trainer's output into both
// consumers of the fitted model.
func checkDataFlow(ds *dataset.Dataset, roles *modelRoleSet) error {
	featureType, err := ds.FeatureType()
	if err != nil {
		return err
	}
	targetType, err := ds.TargetType()
	if err != nil {
		return err
	}

	for _, flow := range []struct {
		what string
		out  reflect.Type
		in   reflect.Type
	}{
		{"parser features into trainer", featureType, roles.trainer.In(1)},
		{"parser targets into trainer", targetType, roles.trainer.In(2)},
		{"trainer model into predictor", roles.trainer.Out(), roles.predictor.In(0)},
		{"parser features into predictor", featureType, roles.predictor.In(1)},
		{"trainer model into evaluator", roles.trainer.Out(), roles.evaluator.In(0)},
		{"parser features into evaluator", featureType, roles.evaluator.In(1)},
		{"parser targets into evaluator", targetType, roles.evaluator.In(2)},
	} {
		if !flow.out.AssignableTo(flow.in) {
			return fmt.Errorf(
				"%w: %s: %s is not assignable to %s",
				domain.ErrPipeline, flow.what, flow.out, flow.in,
			)
		}
	}
	return nil
}

// hyperparameterValue accepts either a plain mapping (coerced through the
// schema) or an already-typed hyperparameter struct.
func hyperparameterValue(schema *hyperparams.Schema, v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		return schema.Coerce(x)
	default:
		if reflect.TypeOf(v) == schema.Type() {
			return v, nil
		}
		return nil, fmt.Errorf(
			"%w: hyperparameters must be %s or a plain mapping, got %T",
			domain.ErrPipeline, schema.Type(), v,
		)
	}
}

func optionsValue(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return nil
}

func metricValue(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	return reflect.ValueOf(v)
}
