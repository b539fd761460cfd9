// Package dataset composes reader, loader, splitter and parser functions
// into the canonical data pipeline:
//
//	read -> load -> split -> parse
//
// Both the local execution engine and the synthesized tasks drive the same
// FromRaw routine, so the two execution modes cannot diverge.
package dataset

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/loomml/loom/pkg/domain"
	"github.com/loomml/loom/pkg/domain/registry"
	"github.com/loomml/loom/pkg/domain/structfield"
	"github.com/loomml/loom/pkg/utils/maps"
)

// Split is the train/test pair a splitter must produce.
type Split[T any] struct {
	Train T
	Test  T
}

// Parsed is the features/targets pair a parser must produce for one split.
type Parsed[F any, Y any] struct {
	Features F
	Targets  Y
}

// CallOptions are per-call option overrides, one mapping per pipeline stage.
// Each mapping is laid over the stage's stored defaults; keys absent from an
// override keep their default.
type CallOptions struct {
	Reader   map[string]any
	Loader   map[string]any
	Splitter map[string]any
	Parser   map[string]any
}

// Data is the model-ready outcome of the pipeline.
type Data struct {
	TrainFeatures any
	TrainTargets  any
	TestFeatures  any
	TestTargets   any
}

// Dataset describes how raw input becomes model-ready features and targets.
//
// Configure it once (registrations and default option bundles); per-call
// overrides never mutate the stored defaults.
type Dataset struct {
	reg *registry.Registry

	loaderDefaults   map[string]any
	splitterDefaults map[string]any
	parserDefaults   map[string]any
}

type Option func(*Dataset)

func WithLoaderDefaults(kw map[string]any) Option {
	return func(d *Dataset) { d.loaderDefaults = maps.Clone(kw) }
}

func WithSplitterDefaults(kw map[string]any) Option {
	return func(d *Dataset) { d.splitterDefaults = maps.Clone(kw) }
}

func WithParserDefaults(kw map[string]any) Option {
	return func(d *Dataset) { d.parserDefaults = maps.Clone(kw) }
}

func New(opts ...Option) *Dataset {
	d := &Dataset{
		reg:              registry.New(),
		loaderDefaults:   map[string]any{},
		splitterDefaults: map[string]any{},
		parserDefaults:   map[string]any{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reader registers the reader function: func(options) (D, error).
// The options struct parameter may be omitted.
func (d *Dataset) Reader(fn any) error {
	return d.reg.Register(domain.RoleReader, fn)
}

// Loader registers the loader function: func(D, options) (L, error).
func (d *Dataset) Loader(fn any) error {
	return d.reg.Register(domain.RoleLoader, fn)
}

// Splitter registers the splitter function: func(L, options) (Split[L], error).
func (d *Dataset) Splitter(fn any) error {
	return d.reg.Register(domain.RoleSplitter, fn)
}

// Parser registers the parser function: func(L, options) (Parsed[F, Y], error).
func (d *Dataset) Parser(fn any) error {
	return d.reg.Register(domain.RoleParser, fn)
}

// ReaderType returns the reader's declared return type.
func (d *Dataset) ReaderType() (reflect.Type, error) {
	sig, err := d.reg.Get(domain.RoleReader)
	if err != nil {
		return nil, err
	}
	return sig.Out(), nil
}

// FeatureType returns the parser's declared feature output type.
func (d *Dataset) FeatureType() (reflect.Type, error) {
	sig, err := d.reg.Get(domain.RoleParser)
	if err != nil {
		return nil, err
	}
	f, _, err := parsedFieldsOf(sig.Out())
	if err != nil {
		return nil, err
	}
	return f, nil
}

// TargetType returns the parser's declared target output type.
func (d *Dataset) TargetType() (reflect.Type, error) {
	sig, err := d.reg.Get(domain.RoleParser)
	if err != nil {
		return nil, err
	}
	_, y, err := parsedFieldsOf(sig.Out())
	if err != nil {
		return nil, err
	}
	return y, nil
}

// Read runs the reader with overrides laid over an empty option bundle.
func (d *Dataset) Read(overrides map[string]any) (any, error) {
	sig, err := d.reg.Get(domain.RoleReader)
	if err != nil {
		return nil, err
	}

	switch sig.NumIn() {
	case 0:
		return stageCall(domain.RoleReader, sig)
	case 1:
		opts, err := stageOptions(domain.RoleReader, sig.In(0), nil, overrides)
		if err != nil {
			return nil, err
		}
		return stageCall(domain.RoleReader, sig, opts)
	default:
		return nil, fmt.Errorf(
			"%w: reader must take at most one options struct, got %d parameters",
			domain.ErrSignature, sig.NumIn(),
		)
	}
}

// GetData runs the full pipeline: read, then FromRaw.
func (d *Dataset) GetData(o CallOptions) (*Data, error) {
	raw, err := d.Read(o.Reader)
	if err != nil {
		return nil, err
	}
	return d.FromRaw(raw, o)
}

// FromRaw runs load -> split -> parse against already-read data.
//
// This is the routine shared by GetData and the synthesized train task,
// where `raw` stands in for the reader's output.
func (d *Dataset) FromRaw(raw any, o CallOptions) (*Data, error) {
	loaded, err := d.applyStage(domain.RoleLoader, raw, d.loaderDefaults, o.Loader)
	if err != nil {
		return nil, err
	}

	split, err := d.applyStage(domain.RoleSplitter, loaded, d.splitterDefaults, o.Splitter)
	if err != nil {
		return nil, err
	}
	train, test, err := splitOf(split)
	if err != nil {
		return nil, err
	}

	parsedTrain, err := d.applyStage(domain.RoleParser, train, d.parserDefaults, o.Parser)
	if err != nil {
		return nil, err
	}
	trainX, trainY, err := parsedOf(parsedTrain)
	if err != nil {
		return nil, err
	}

	parsedTest, err := d.applyStage(domain.RoleParser, test, d.parserDefaults, o.Parser)
	if err != nil {
		return nil, err
	}
	testX, testY, err := parsedOf(parsedTest)
	if err != nil {
		return nil, err
	}

	return &Data{
		TrainFeatures: trainX,
		TrainTargets:  trainY,
		TestFeatures:  testX,
		TestTargets:   testY,
	}, nil
}

// GetFeatures runs only the parser's feature half against externally
// supplied, already-materialized data, bypassing reader, loader and
// splitter. The stored parser defaults apply, so the feature-selection
// policy is the same as at train time.
func (d *Dataset) GetFeatures(raw any) (any, error) {
	parsed, err := d.applyStage(domain.RoleParser, raw, d.parserDefaults, nil)
	if err != nil {
		return nil, err
	}
	features, _, err := parsedOf(parsed)
	if err != nil {
		return nil, err
	}
	return features, nil
}

// Validate statically checks that each stage's declared output type flows
// into the next stage's input type. A broken chain fails with
// domain.ErrPipeline; a stage registered with an unusable shape fails with
// domain.ErrSignature.
func (d *Dataset) Validate() error {
	reader, err := d.reg.Get(domain.RoleReader)
	if err != nil {
		return err
	}
	loader, err := d.reg.Get(domain.RoleLoader)
	if err != nil {
		return err
	}
	splitter, err := d.reg.Get(domain.RoleSplitter)
	if err != nil {
		return err
	}
	parser, err := d.reg.Get(domain.RoleParser)
	if err != nil {
		return err
	}

	for role, sig := range map[domain.Role]*registry.Signature{
		domain.RoleLoader:   loader,
		domain.RoleSplitter: splitter,
		domain.RoleParser:   parser,
	} {
		if sig.NumIn() < 1 || 2 < sig.NumIn() {
			return fmt.Errorf(
				"%w: %s must take (data) or (data, options), got %d parameters",
				domain.ErrSignature, role, sig.NumIn(),
			)
		}
		if sig.NumIn() == 2 && sig.In(1).Kind() != reflect.Struct {
			return fmt.Errorf(
				"%w: %s options parameter must be a struct, got %s",
				domain.ErrSignature, role, sig.In(1),
			)
		}
	}

	if !reader.Out().AssignableTo(loader.In(0)) {
		return chainMismatch(domain.RoleReader, reader.Out(), domain.RoleLoader, loader.In(0))
	}
	if !loader.Out().AssignableTo(splitter.In(0)) {
		return chainMismatch(domain.RoleLoader, loader.Out(), domain.RoleSplitter, splitter.In(0))
	}

	part, err := splitFieldOf(splitter.Out())
	if err != nil {
		return err
	}
	if !part.AssignableTo(parser.In(0)) {
		return chainMismatch(domain.RoleSplitter, part, domain.RoleParser, parser.In(0))
	}

	if _, _, err := parsedFieldsOf(parser.Out()); err != nil {
		return err
	}
	return nil
}

func chainMismatch(from domain.Role, out reflect.Type, to domain.Role, in reflect.Type) error {
	return fmt.Errorf(
		"%w: %s output %s does not flow into %s input %s",
		domain.ErrPipeline, from, out, to, in,
	)
}

// applyStage calls one pipeline stage with its effective options:
// overrides laid over defaults, applied to the stage's options struct.
func (d *Dataset) applyStage(role domain.Role, data any, defaults, overrides map[string]any) (any, error) {
	sig, err := d.reg.Get(role)
	if err != nil {
		return nil, err
	}

	switch sig.NumIn() {
	case 1:
		return stageCall(role, sig, data)
	case 2:
		opts, err := stageOptions(role, sig.In(1), defaults, overrides)
		if err != nil {
			return nil, err
		}
		return stageCall(role, sig, data, opts)
	default:
		return nil, fmt.Errorf(
			"%w: %s must take (data) or (data, options), got %d parameters",
			domain.ErrSignature, role, sig.NumIn(),
		)
	}
}

func stageOptions(role domain.Role, t reflect.Type, defaults, overrides map[string]any) (any, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf(
			"%w: %s options parameter must be a struct, got %s", domain.ErrSignature, role, t,
		)
	}

	opts, problems := structfield.Populate(t, nil, maps.Overlay(defaults, overrides))
	if len(problems) != 0 {
		details := make([]string, len(problems))
		for i, p := range problems {
			details[i] = p.Error()
		}
		return nil, fmt.Errorf(
			"%w: %s options: %s", domain.ErrPipeline, role, strings.Join(details, "; "),
		)
	}
	return opts, nil
}

func stageCall(role domain.Role, sig *registry.Signature, args ...any) (any, error) {
	out, err := sig.Call(args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s stage: %w", domain.ErrPipeline, role, err)
	}
	return out, nil
}

// splitOf destructures a splitter's output into its train and test parts.
func splitOf(v any) (train any, test any, err error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf(
			"%w: splitter must return a train/test split, got %T", domain.ErrPipeline, v,
		)
	}
	tr := rv.FieldByName("Train")
	te := rv.FieldByName("Test")
	if !tr.IsValid() || !te.IsValid() {
		return nil, nil, fmt.Errorf(
			"%w: splitter must return a train/test split, got %T", domain.ErrPipeline, v,
		)
	}
	return tr.Interface(), te.Interface(), nil
}

// parsedOf destructures a parser's output into features and targets.
func parsedOf(v any) (features any, targets any, err error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf(
			"%w: parser must return a features/targets pair, got %T", domain.ErrPipeline, v,
		)
	}
	f := rv.FieldByName("Features")
	y := rv.FieldByName("Targets")
	if !f.IsValid() || !y.IsValid() {
		return nil, nil, fmt.Errorf(
			"%w: parser must return a features/targets pair, got %T", domain.ErrPipeline, v,
		)
	}
	return f.Interface(), y.Interface(), nil
}

func splitFieldOf(t reflect.Type) (reflect.Type, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf(
			"%w: splitter must return a train/test split, got %s", domain.ErrPipeline, t,
		)
	}
	tr, trOK := t.FieldByName("Train")
	te, teOK := t.FieldByName("Test")
	if !trOK || !teOK || tr.Type != te.Type {
		return nil, fmt.Errorf(
			"%w: splitter must return a train/test split, got %s", domain.ErrPipeline, t,
		)
	}
	return tr.Type, nil
}

func parsedFieldsOf(t reflect.Type) (features, targets reflect.Type, err error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, nil, fmt.Errorf(
			"%w: parser must return a features/targets pair, got %s", domain.ErrPipeline, t,
		)
	}
	f, fOK := t.FieldByName("Features")
	y, yOK := t.FieldByName("Targets")
	if !fOK || !yOK {
		return nil, nil, fmt.Errorf(
			"%w: parser must return a features/targets pair, got %s", domain.ErrPipeline, t,
		)
	}
	return f.Type, y.Type, nil
}
