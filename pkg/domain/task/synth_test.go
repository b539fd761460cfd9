package task_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/loomml/loom/pkg/domain"
	"github.com/loomml/loom/pkg/domain/dataset"
	"github.com/loomml/loom/pkg/domain/registry"
	"github.com/loomml/loom/pkg/domain/task"
	"github.com/loomml/loom/pkg/utils/cmp"
	"github.com/loomml/loom/pkg/utils/try"
)

type rows [][]float64

type stubParams struct {
	Bias float64 `json:"bias"`
}

type stubModel struct {
	Bias float64
	Coef float64
}

// fixture assembles a deterministic linear stub suite:
// rows of (x, y); the trainer fits y = Coef*x + Bias by ratio of sums.
func fixture(t *testing.T) (*dataset.Dataset, *registry.Registry) {
	t.Helper()

	ds := dataset.New(
		dataset.WithSplitterDefaults(map[string]any{"test_size": 0.2}),
	)
	try.To(0, ds.Reader(func() (rows, error) {
		data := rows{}
		for i := 1; i <= 10; i++ {
			data = append(data, []float64{float64(i), float64(2 * i)})
		}
		return data, nil
	})).OrFatal(t)
	try.To(0, ds.Loader(func(data rows) (rows, error) {
		return data, nil
	})).OrFatal(t)
	try.To(0, ds.Splitter(func(data rows, o struct {
		TestSize float64 `json:"test_size"`
	}) (dataset.Split[rows], error) {
		nTest := int(o.TestSize*float64(len(data)) + 0.5)
		return dataset.Split[rows]{
			Train: data[:len(data)-nTest],
			Test:  data[len(data)-nTest:],
		}, nil
	})).OrFatal(t)
	try.To(0, ds.Parser(func(data rows) (dataset.Parsed[[]float64, []float64], error) {
		x := make([]float64, len(data))
		y := make([]float64, len(data))
		for i, r := range data {
			x[i], y[i] = r[0], r[1]
		}
		return dataset.Parsed[[]float64, []float64]{Features: x, Targets: y}, nil
	})).OrFatal(t)

	reg := registry.New()
	try.To(0, reg.Register(domain.RoleInit, func(hp stubParams) *stubModel {
		return &stubModel{Bias: hp.Bias}
	})).OrFatal(t)
	try.To(0, reg.Register(domain.RoleTrainer, func(m *stubModel, x, y []float64) (*stubModel, error) {
		sx, sy := 0.0, 0.0
		for i := range x {
			sx += x[i]
			sy += y[i] - m.Bias
		}
		m.Coef = sy / sx
		return m, nil
	})).OrFatal(t)
	try.To(0, reg.Register(domain.RolePredictor, func(m *stubModel, x []float64) ([]float64, error) {
		preds := make([]float64, len(x))
		for i, v := range x {
			preds[i] = m.Coef*v + m.Bias
		}
		return preds, nil
	})).OrFatal(t)
	try.To(0, reg.Register(domain.RoleEvaluator, func(m *stubModel, x, y []float64) (float64, error) {
		mse := 0.0
		for i := range x {
			d := (m.Coef*x[i] + m.Bias) - y[i]
			mse += d * d
		}
		return mse / float64(len(x)), nil
	})).OrFatal(t)

	return ds, reg
}

func readAll(t *testing.T, ds *dataset.Dataset) rows {
	t.Helper()
	raw := try.To(ds.Read(nil)).OrFatal(t)
	return raw.(rows)
}

func TestTrainTask(t *testing.T) {
	t.Run("its interface is inferred from the component signatures", func(t *testing.T) {
		ds, reg := fixture(t)
		testee := try.To(task.Train("stub.train", ds, reg)).OrFatal(t)

		hp, ok := testee.Input(task.InputHyperparameters)
		if !ok || hp.Type != reflect.TypeOf(stubParams{}) {
			t.Errorf("unmatch hyperparameters input: %+v", hp)
		}
		data, ok := testee.Input(task.InputData)
		if !ok || data.Type != reflect.TypeOf(rows{}) {
			t.Errorf("unmatch data input: %+v", data)
		}
		for _, name := range []string{task.InputLoaderOptions, task.InputSplitterOptions, task.InputParserOptions} {
			v, ok := testee.Input(name)
			if !ok || !v.Optional {
				t.Errorf("%s should be an optional input: %+v", name, v)
			}
		}

		mo, ok := testee.Output(task.OutputModelObject)
		if !ok || mo.Type != reflect.TypeOf(&stubModel{}) {
			t.Errorf("unmatch model_object output: %+v", mo)
		}
		metrics, ok := testee.Output(task.OutputMetrics)
		if !ok || metrics.Type != reflect.TypeOf(map[string]float64{}) {
			t.Errorf("unmatch metrics output: %+v", metrics)
		}
	})

	t.Run("running it yields a fitted model and train/test metrics", func(t *testing.T) {
		ds, reg := fixture(t)
		testee := try.To(task.Train("stub.train", ds, reg)).OrFatal(t)

		out := try.To(testee.Run(context.Background(), task.Inputs{
			task.InputHyperparameters: map[string]any{"bias": 0.0},
			task.InputData:            readAll(t, ds),
		})).OrFatal(t)

		fitted, ok := out[task.OutputModelObject].(*stubModel)
		if !ok {
			t.Fatalf("unexpected model_object: %T", out[task.OutputModelObject])
		}
		if fitted.Coef != 2.0 {
			t.Errorf("unmatch coefficient: %v", fitted.Coef)
		}

		metrics, ok := out[task.OutputMetrics].(map[string]float64)
		if !ok {
			t.Fatalf("unexpected metrics: %T", out[task.OutputMetrics])
		}
		if len(metrics) != 2 {
			t.Errorf("metrics should have exactly train and test: %v", metrics)
		}
		// the stub relation is exactly linear, so both errors vanish.
		if metrics["train"] != 0 || metrics["test"] != 0 {
			t.Errorf("unmatch metrics: %v", metrics)
		}
	})

	t.Run("typed hyperparameters are accepted as-is", func(t *testing.T) {
		ds, reg := fixture(t)
		testee := try.To(task.Train("stub.train", ds, reg)).OrFatal(t)

		out := try.To(testee.Run(context.Background(), task.Inputs{
			task.InputHyperparameters: stubParams{Bias: 1.0},
			task.InputData:            readAll(t, ds),
		})).OrFatal(t)

		if out[task.OutputModelObject].(*stubModel).Bias != 1.0 {
			t.Errorf("unmatch bias: %+v", out[task.OutputModelObject])
		}
	})

	t.Run("invalid hyperparameters fail before training", func(t *testing.T) {
		ds, reg := fixture(t)
		testee := try.To(task.Train("stub.train", ds, reg)).OrFatal(t)

		_, err := testee.Run(context.Background(), task.Inputs{
			task.InputHyperparameters: map[string]any{"slope": 2.0},
			task.InputData:            readAll(t, ds),
		})
		if !errors.Is(err, domain.ErrInvalidHyperparameters) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("a missing required input fails with ErrPipeline", func(t *testing.T) {
		ds, reg := fixture(t)
		testee := try.To(task.Train("stub.train", ds, reg)).OrFatal(t)

		_, err := testee.Run(context.Background(), task.Inputs{
			task.InputHyperparameters: map[string]any{},
		})
		if !errors.Is(err, domain.ErrPipeline) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("synthesis without an evaluator fails, naming the role", func(t *testing.T) {
		ds, _ := fixture(t)
		reg := registry.New()
		try.To(0, reg.Register(domain.RoleInit, func(hp stubParams) *stubModel { return &stubModel{} })).OrFatal(t)
		try.To(0, reg.Register(domain.RoleTrainer, func(m *stubModel, x, y []float64) *stubModel { return m })).OrFatal(t)
		try.To(0, reg.Register(domain.RolePredictor, func(m *stubModel, x []float64) []float64 { return nil })).OrFatal(t)

		_, err := task.Train("stub.train", ds, reg)
		if !errors.Is(err, domain.ErrNotRegistered) {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(err.Error(), "evaluator") {
			t.Errorf("error does not name the role: %v", err)
		}
	})

	t.Run("synthesis with a misshapen trainer fails with ErrSignature", func(t *testing.T) {
		ds, reg := fixture(t)
		try.To(0, reg.Register(domain.RoleTrainer, func(x []float64) *stubModel { return nil })).OrFatal(t)

		_, err := task.Train("stub.train", ds, reg)
		if !errors.Is(err, domain.ErrSignature) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("synthesis with a type break in the data flow fails with ErrPipeline", func(t *testing.T) {
		ds, reg := fixture(t)
		try.To(0, reg.Register(domain.RoleTrainer, func(m *stubModel, x []string, y []float64) *stubModel {
			return m
		})).OrFatal(t)

		_, err := task.Train("stub.train", ds, reg)
		if !errors.Is(err, domain.ErrPipeline) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestPredictTasks(t *testing.T) {
	trainedModel := func(t *testing.T, ds *dataset.Dataset, reg *registry.Registry) *stubModel {
		t.Helper()
		trainTask := try.To(task.Train("stub.train", ds, reg)).OrFatal(t)
		out := try.To(trainTask.Run(context.Background(), task.Inputs{
			task.InputHyperparameters: map[string]any{"bias": 0.0},
			task.InputData:            readAll(t, ds),
		})).OrFatal(t)
		return out[task.OutputModelObject].(*stubModel)
	}

	t.Run("predict task parses raw data and predicts, order-preserving", func(t *testing.T) {
		ds, reg := fixture(t)
		fitted := trainedModel(t, ds, reg)

		testee := try.To(task.Predict("stub.predict", ds, reg)).OrFatal(t)

		mo, ok := testee.Input(task.InputModelObject)
		if !ok || mo.Type != reflect.TypeOf(&stubModel{}) {
			t.Errorf("unmatch model_object input: %+v", mo)
		}
		preds, ok := testee.Output(task.OutputPredictions)
		if !ok || preds.Type != reflect.TypeOf([]float64{}) {
			t.Errorf("unmatch predictions output: %+v", preds)
		}

		data := rows{{3, 0}, {1, 0}, {5, 0}}
		out := try.To(testee.Run(context.Background(), task.Inputs{
			task.InputModelObject: fitted,
			task.InputData:        data,
		})).OrFatal(t)

		actual := out[task.OutputPredictions].([]float64)
		if !cmp.SliceEq(actual, []float64{6, 2, 10}) {
			t.Errorf("unmatch: %v", actual)
		}
	})

	t.Run("predict-from-features task skips parsing and agrees with predict", func(t *testing.T) {
		ds, reg := fixture(t)
		fitted := trainedModel(t, ds, reg)

		predictTask := try.To(task.Predict("stub.predict", ds, reg)).OrFatal(t)
		testee := try.To(task.PredictFromFeatures("stub.predict_from_features", ds, reg)).OrFatal(t)

		features, ok := testee.Input(task.InputFeatures)
		if !ok || features.Type != reflect.TypeOf([]float64{}) {
			t.Errorf("unmatch features input: %+v", features)
		}

		data := rows{{3, 0}, {1, 0}, {5, 0}}
		extracted := try.To(ds.GetFeatures(data)).OrFatal(t)

		fromData := try.To(predictTask.Run(context.Background(), task.Inputs{
			task.InputModelObject: fitted,
			task.InputData:        data,
		})).OrFatal(t)
		fromFeatures := try.To(testee.Run(context.Background(), task.Inputs{
			task.InputModelObject: fitted,
			task.InputFeatures:    extracted,
		})).OrFatal(t)

		if !cmp.SliceEq(
			fromData[task.OutputPredictions].([]float64),
			fromFeatures[task.OutputPredictions].([]float64),
		) {
			t.Errorf(
				"unmatch: (from data, from features) = (%v, %v)",
				fromData[task.OutputPredictions], fromFeatures[task.OutputPredictions],
			)
		}
	})
}
