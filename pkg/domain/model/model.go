// Package model ties the component registry, the dataset abstraction and the
// task synthesizer together into the root entity a user builds against.
//
// Local train/predict entry points run the very same synthesized tasks the
// external workflow engine would run, so local execution and remote-task
// execution are two callers of one pipeline.
package model

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/loomml/loom/pkg/domain"
	"github.com/loomml/loom/pkg/domain/dataset"
	"github.com/loomml/loom/pkg/domain/hyperparams"
	"github.com/loomml/loom/pkg/domain/registry"
	"github.com/loomml/loom/pkg/domain/task"
)

// Model is a machine-learning model declared as a set of plain functions.
//
// The current artifact is replaced on every successful train or load and
// its access is synchronized, so a serving process may hot-reload it while
// predictions are in flight. Component registration is not synchronized;
// declare all components before going concurrent.
type Model struct {
	name string
	ds   *dataset.Dataset
	reg  *registry.Registry

	// fallback initializer, supplied at construction. A function registered
	// via Init takes precedence.
	fallbackInit *registry.Signature

	mux      sync.RWMutex
	artifact *domain.Artifact

	remote remoteState
}

type Option func(*Model) error

// WithInit sets the fallback initializer: func(Hyperparameters) (M, error).
//
// It supplies model construction when no init function is registered
// explicitly. Its signature is derived here, at construction time.
func WithInit(fn any) Option {
	return func(m *Model) error {
		sig, err := registry.Inspect(fn)
		if err != nil {
			return err
		}
		m.fallbackInit = sig
		return nil
	}
}

// New creates a Model over ds.
func New(name string, ds *dataset.Dataset, opts ...Option) (*Model, error) {
	m := &Model{
		name: name,
		ds:   ds,
		reg:  registry.New(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Model) Name() string {
	return m.name
}

func (m *Model) Dataset() *dataset.Dataset {
	return m.ds
}

// Artifact returns the current model artifact, or nil when the model has
// not been trained or loaded yet.
func (m *Model) Artifact() *domain.Artifact {
	m.mux.RLock()
	defer m.mux.RUnlock()
	return m.artifact
}

// SetArtifact replaces the current artifact. The previous one is discarded.
func (m *Model) SetArtifact(a *domain.Artifact) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.artifact = a
}

// Init registers the init function: func(Hyperparameters) (M, error).
// It overrides the fallback initializer supplied at construction.
func (m *Model) Init(fn any) error {
	return m.reg.Register(domain.RoleInit, fn)
}

// Trainer registers the trainer: func(M, features, targets) (fitted, error).
func (m *Model) Trainer(fn any) error {
	return m.reg.Register(domain.RoleTrainer, fn)
}

// Predictor registers the predictor: func(fitted, features) (predictions, error).
func (m *Model) Predictor(fn any) error {
	return m.reg.Register(domain.RolePredictor, fn)
}

// Evaluator registers the evaluator: func(fitted, features, targets) (metric, error).
func (m *Model) Evaluator(fn any) error {
	return m.reg.Register(domain.RoleEvaluator, fn)
}

// components resolves roles against the registry, falling back to the
// construction-time initializer for the init role.
func (m *Model) components() task.Components {
	return componentResolver{reg: m.reg, fallbackInit: m.fallbackInit}
}

type componentResolver struct {
	reg          *registry.Registry
	fallbackInit *registry.Signature
}

func (r componentResolver) Get(role domain.Role) (*registry.Signature, error) {
	if sig, err := r.reg.Get(role); err == nil {
		return sig, nil
	} else if role != domain.RoleInit || r.fallbackInit == nil {
		return nil, err
	}
	return r.fallbackInit, nil
}

// Hyperparameters returns the schema inferred from the effective
// initializer.
func (m *Model) Hyperparameters() (*hyperparams.Schema, error) {
	init, err := m.components().Get(domain.RoleInit)
	if err != nil {
		return nil, err
	}
	return hyperparams.Infer(init)
}

// FeatureType returns the parser's declared feature type. Serving layers
// use it to decode request bodies into the right shape.
func (m *Model) FeatureType() (reflect.Type, error) {
	return m.ds.FeatureType()
}

// TrainTask synthesizes the training task for this model.
func (m *Model) TrainTask() (*task.Task, error) {
	return task.Train(m.name+".train", m.ds, m.components())
}

// PredictTask synthesizes the prediction task over raw data.
func (m *Model) PredictTask() (*task.Task, error) {
	return task.Predict(m.name+".predict", m.ds, m.components())
}

// PredictFromFeaturesTask synthesizes the prediction task over
// already-extracted features.
func (m *Model) PredictFromFeaturesTask() (*task.Task, error) {
	return task.PredictFromFeatures(m.name+".predict_from_features", m.ds, m.components())
}

// Train runs the full training pipeline locally: read with overrides, then
// the synthesized train task against the read data. On success the current
// artifact is replaced; on failure it is left untouched.
//
// Returns the fitted model object and its metrics for convenience.
func (m *Model) Train(ctx context.Context, hp map[string]any, o dataset.CallOptions) (any, map[string]any, error) {
	trainTask, err := m.TrainTask()
	if err != nil {
		return nil, nil, err
	}

	raw, err := m.ds.Read(o.Reader)
	if err != nil {
		return nil, nil, err
	}

	out, err := trainTask.Run(ctx, task.Inputs{
		task.InputHyperparameters: hp,
		task.InputData:            raw,
		task.InputLoaderOptions:   o.Loader,
		task.InputSplitterOptions: o.Splitter,
		task.InputParserOptions:   o.Parser,
	})
	if err != nil {
		return nil, nil, err
	}

	modelObject := out[task.OutputModelObject]
	metrics, err := metricsOf(out[task.OutputMetrics])
	if err != nil {
		return nil, nil, err
	}

	m.SetArtifact(&domain.Artifact{ModelObject: modelObject, Metrics: metrics})
	return modelObject, metrics, nil
}

// Predict runs the read/load/split/parse pipeline with overrides and
// predicts over the derived features, consulting the current artifact.
func (m *Model) Predict(ctx context.Context, o dataset.CallOptions) (any, error) {
	artifact := m.Artifact()
	if artifact == nil {
		return nil, fmt.Errorf("%w: train or load a model before predicting", domain.ErrNoArtifact)
	}
	predictTask, err := m.PredictTask()
	if err != nil {
		return nil, err
	}

	raw, err := m.ds.Read(o.Reader)
	if err != nil {
		return nil, err
	}

	out, err := predictTask.Run(ctx, task.Inputs{
		task.InputModelObject: artifact.ModelObject,
		task.InputData:        raw,
	})
	if err != nil {
		return nil, err
	}
	return out[task.OutputPredictions], nil
}

// PredictFromFeatures predicts over already-extracted features, skipping
// dataset parsing entirely.
func (m *Model) PredictFromFeatures(ctx context.Context, features any) (any, error) {
	artifact := m.Artifact()
	if artifact == nil {
		return nil, fmt.Errorf("%w: train or load a model before predicting", domain.ErrNoArtifact)
	}
	predictTask, err := m.PredictFromFeaturesTask()
	if err != nil {
		return nil, err
	}

	out, err := predictTask.Run(ctx, task.Inputs{
		task.InputModelObject: artifact.ModelObject,
		task.InputFeatures:    features,
	})
	if err != nil {
		return nil, err
	}
	return out[task.OutputPredictions], nil
}

// metricsOf flattens the task's typed metric map into map[string]any.
func metricsOf(v any) (map[string]any, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: metrics must be a string-keyed map, got %T", domain.ErrPipeline, v)
	}

	metrics := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		metrics[iter.Key().String()] = iter.Value().Interface()
	}
	return metrics, nil
}
