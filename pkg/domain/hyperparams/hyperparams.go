// Package hyperparams derives a typed hyperparameter schema from the
// initializer's signature and coerces plain key-value mappings into it.
//
// The initializer takes a single struct parameter; that struct's exported
// fields are the schema. The populated struct is also the typed input of
// the synthesized train task, so a hand-written task in an external
// workflow engine sees exactly the same interface.
package hyperparams

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/loomml/loom/pkg/domain"
	"github.com/loomml/loom/pkg/domain/registry"
	"github.com/loomml/loom/pkg/domain/structfield"
)

// Field is one named, typed hyperparameter.
type Field struct {
	Name string
	Type reflect.Type
}

// Schema is the typed shape of a model's hyperparameters.
type Schema struct {
	typ    reflect.Type
	fields []Field
}

// Infer builds the Schema from an initializer's Signature.
//
// The initializer must take exactly one struct parameter; anything else
// fails with domain.ErrSignature.
func Infer(init *registry.Signature) (*Schema, error) {
	if init.NumIn() != 1 {
		return nil, fmt.Errorf(
			"%w: init must take exactly one hyperparameter struct, got %d parameters",
			domain.ErrSignature, init.NumIn(),
		)
	}
	t := init.In(0)
	raw, err := structfield.Of(t)
	if err != nil {
		return nil, fmt.Errorf(
			"%w: init parameter must be a struct, got %s", domain.ErrSignature, t,
		)
	}

	fields := make([]Field, len(raw))
	for i, f := range raw {
		fields[i] = Field{Name: f.Name, Type: f.Type}
	}
	return &Schema{typ: t, fields: fields}, nil
}

// Type returns the hyperparameter struct type.
func (s *Schema) Type() reflect.Type {
	return s.typ
}

// Fields returns the schema's fields in declaration order.
func (s *Schema) Fields() []Field {
	fields := make([]Field, len(s.fields))
	copy(fields, s.fields)
	return fields
}

// Coerce validates raw against the schema and returns a populated value of
// the hyperparameter struct type.
//
// Keys absent from the schema and values that do not coerce to their field's
// type fail with domain.ErrInvalidHyperparameters, listing every offending
// key.
func (s *Schema) Coerce(raw map[string]any) (any, error) {
	value, problems := structfield.Populate(s.typ, nil, raw)
	if len(problems) == 0 {
		return value, nil
	}

	details := make([]string, len(problems))
	for i, p := range problems {
		details[i] = p.Error()
	}
	return nil, fmt.Errorf(
		"%w: %s", domain.ErrInvalidHyperparameters, strings.Join(details, "; "),
	)
}
