package builtins

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/loomml/loom/pkg/domain/dataset"
	"github.com/loomml/loom/pkg/domain/model"
	"github.com/loomml/loom/pkg/frame"
	"github.com/loomml/loom/pkg/xerrors"
)

type ReaderOptions struct {
	// Path of a CSV file with a header row of column names and float values.
	Path string `json:"path"`

	// SampleFrac keeps only this fraction of rows, chosen pseudo-randomly.
	// Outside (0, 1) means all rows.
	SampleFrac float64 `json:"sample_frac"`

	RandomState int64 `json:"random_state"`
}

// ReadCSV reads a headered CSV file of floats into a Frame.
func ReadCSV(o ReaderOptions) (frame.Frame, error) {
	f, err := os.Open(o.Path)
	if err != nil {
		return frame.Frame{}, xerrors.Wrap(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return frame.Frame{}, xerrors.Wrap(err)
	}
	if len(records) == 0 {
		return frame.Frame{}, fmt.Errorf("%s: no header row", o.Path)
	}

	columns := records[0]
	rows := make([][]float64, 0, len(records)-1)
	for lineno, rec := range records[1:] {
		row := make([]float64, len(rec))
		for i, cell := range rec {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return frame.Frame{}, fmt.Errorf(
					"%s: line %d, column %s: %w", o.Path, lineno+2, columns[i], err,
				)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	read, err := frame.New(columns, rows)
	if err != nil {
		return frame.Frame{}, fmt.Errorf("%s: %w", o.Path, err)
	}
	return read.Sample(o.SampleFrac, o.RandomState), nil
}

type LoaderOptions struct {
	// Head keeps only the n leading rows. Non-positive means all rows.
	Head int `json:"head"`
}

// Loader trims the Frame to its leading rows.
func Loader(data frame.Frame, o LoaderOptions) (frame.Frame, error) {
	return data.Head(o.Head), nil
}

type SplitterOptions struct {
	TestSize    float64 `json:"test_size"`
	Shuffle     bool    `json:"shuffle"`
	RandomState int64   `json:"random_state"`
}

// Splitter partitions the Frame into train and test parts.
func Splitter(data frame.Frame, o SplitterOptions) (dataset.Split[frame.Frame], error) {
	train, test := data.Split(o.TestSize, o.Shuffle, o.RandomState)
	return dataset.Split[frame.Frame]{Train: train, Test: test}, nil
}

type ParserOptions struct {
	// Features names the feature columns. Empty means every column not
	// named in Targets.
	Features []string `json:"features"`

	// Targets names the target columns. A named column missing from the
	// data yields empty targets, so prediction-time data may omit it.
	Targets []string `json:"targets"`
}

// Parser splits the Frame into a feature Frame and a flat target vector.
func Parser(data frame.Frame, o ParserOptions) (dataset.Parsed[frame.Frame, []float64], error) {
	featureNames := o.Features
	if len(featureNames) == 0 {
		excluded := map[string]bool{}
		for _, t := range o.Targets {
			excluded[t] = true
		}
		for _, c := range data.Columns() {
			if !excluded[c] {
				featureNames = append(featureNames, c)
			}
		}
	}

	features, err := data.Select(featureNames...)
	if err != nil {
		return dataset.Parsed[frame.Frame, []float64]{}, err
	}

	var targets []float64
	for _, t := range o.Targets {
		if !data.HasColumn(t) {
			continue
		}
		targets, err = data.Column(t)
		if err != nil {
			return dataset.Parsed[frame.Frame, []float64]{}, err
		}
		break
	}

	return dataset.Parsed[frame.Frame, []float64]{Features: features, Targets: targets}, nil
}

// NewDataset assembles a Dataset over the builtin CSV/Frame components,
// with the conventional defaults: a reproducible shuffled 80/20 split and
// a target column named "y".
func NewDataset() (*dataset.Dataset, error) {
	ds := dataset.New(
		dataset.WithSplitterDefaults(map[string]any{
			"test_size":    0.2,
			"shuffle":      true,
			"random_state": int64(42),
		}),
		dataset.WithParserDefaults(map[string]any{
			"targets": []string{"y"},
		}),
	)

	for _, register := range []func() error{
		func() error { return ds.Reader(ReadCSV) },
		func() error { return ds.Loader(Loader) },
		func() error { return ds.Splitter(Splitter) },
		func() error { return ds.Parser(Parser) },
	} {
		if err := register(); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// NewModel assembles a ready-to-train logistic regression Model over the
// builtin dataset.
func NewModel(name string) (*model.Model, error) {
	ds, err := NewDataset()
	if err != nil {
		return nil, err
	}

	m, err := model.New(name, ds, model.WithInit(Init))
	if err != nil {
		return nil, err
	}

	for _, register := range []func() error{
		func() error { return m.Trainer(Trainer) },
		func() error { return m.Predictor(Predictor) },
		func() error { return m.Evaluator(Evaluator) },
	} {
		if err := register(); err != nil {
			return nil, err
		}
	}
	return m, nil
}
