// Package builtins provides a ready-made component suite: a logistic
// regression model over frame.Frame data, with CSV reading, splitting and
// parsing components matching it.
//
// It is both a usable baseline and the reference for how components are
// meant to be written.
package builtins

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/loomml/loom/pkg/frame"
)

func init() {
	gob.Register(&LogisticRegression{})
}

// Hyperparameters of the builtin logistic regression.
type Hyperparameters struct {
	// C is the inverse of the L2 regularization strength.
	C float64 `json:"C"`

	// MaxIter caps the number of gradient descent iterations.
	MaxIter int `json:"max_iter"`
}

// LogisticRegression is a binary classifier over 0/1 targets, fitted with
// plain full-batch gradient descent. Training is deterministic: weights
// start at zero and the iteration count is fixed by MaxIter.
type LogisticRegression struct {
	// Columns fixes the feature column order at fit time. Prediction
	// re-aligns incoming frames to this order.
	Columns []string

	Weights []float64
	Bias    float64

	C       float64
	MaxIter int
}

const learningRate = 0.1

// Init builds an unfitted LogisticRegression from hyperparameters.
// Non-positive values fall back to C=1.0 and max_iter=100.
func Init(hp Hyperparameters) *LogisticRegression {
	if hp.C <= 0 {
		hp.C = 1.0
	}
	if hp.MaxIter <= 0 {
		hp.MaxIter = 100
	}
	return &LogisticRegression{C: hp.C, MaxIter: hp.MaxIter}
}

// Trainer fits the model to features and 0/1 targets.
func Trainer(model *LogisticRegression, features frame.Frame, targets []float64) (*LogisticRegression, error) {
	n := features.Len()
	if n == 0 {
		return nil, fmt.Errorf("no rows to fit on")
	}
	if len(targets) != n {
		return nil, fmt.Errorf("%d rows of features, but %d targets", n, len(targets))
	}

	columns := features.Columns()
	d := len(columns)

	flat := make([]float64, 0, n*d)
	for i := 0; i < n; i++ {
		flat = append(flat, features.Row(i)...)
	}
	x := mat.NewDense(n, d, flat)
	y := mat.NewVecDense(n, targets)

	w := mat.NewVecDense(d, nil)
	b := 0.0

	z := mat.NewVecDense(n, nil)
	diff := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(d, nil)

	for iter := 0; iter < model.MaxIter; iter++ {
		z.MulVec(x, w)

		// diff_i = sigmoid(z_i + b) - y_i
		db := 0.0
		for i := 0; i < n; i++ {
			e := sigmoid(z.AtVec(i)+b) - y.AtVec(i)
			diff.SetVec(i, e)
			db += e
		}

		grad.MulVec(x.T(), diff)
		grad.AddScaledVec(grad, 1.0/model.C, w)
		grad.ScaleVec(learningRate/float64(n), grad)

		w.SubVec(w, grad)
		b -= learningRate * db / float64(n)
	}

	fitted := &LogisticRegression{
		Columns: columns,
		Weights: w.RawVector().Data,
		Bias:    b,
		C:       model.C,
		MaxIter: model.MaxIter,
	}
	return fitted, nil
}

// Predictor returns the 0/1 class per row of features.
//
// Features may carry extra columns or a different column order; they are
// re-aligned to the fit-time columns.
func Predictor(model *LogisticRegression, features frame.Frame) ([]float64, error) {
	probs, err := probabilities(model, features)
	if err != nil {
		return nil, err
	}

	preds := make([]float64, len(probs))
	for i, p := range probs {
		if 0.5 <= p {
			preds[i] = 1
		}
	}
	return preds, nil
}

// Evaluator scores the model by accuracy against 0/1 targets.
func Evaluator(model *LogisticRegression, features frame.Frame, targets []float64) (float64, error) {
	preds, err := Predictor(model, features)
	if err != nil {
		return 0, err
	}
	if len(targets) != len(preds) {
		return 0, fmt.Errorf("%d predictions, but %d targets", len(preds), len(targets))
	}
	if len(targets) == 0 {
		return 0, nil
	}

	hit := 0
	for i := range preds {
		if preds[i] == targets[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(targets)), nil
}

func probabilities(model *LogisticRegression, features frame.Frame) ([]float64, error) {
	if model.Weights == nil {
		return nil, fmt.Errorf("model is not fitted")
	}

	aligned, err := features.Select(model.Columns...)
	if err != nil {
		return nil, err
	}

	n := aligned.Len()
	probs := make([]float64, n)
	if n == 0 {
		return probs, nil
	}

	d := len(model.Columns)
	flat := make([]float64, 0, n*d)
	for i := 0; i < n; i++ {
		flat = append(flat, aligned.Row(i)...)
	}

	z := mat.NewVecDense(n, nil)
	z.MulVec(mat.NewDense(n, d, flat), mat.NewVecDense(d, model.Weights))

	for i := range probs {
		probs[i] = sigmoid(z.AtVec(i) + model.Bias)
	}
	return probs, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
