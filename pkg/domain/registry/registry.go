// Package registry stores user-supplied component functions by role and
// derives a structural Signature for each of them at registration time.
//
// Task synthesis reads these Signatures to compute task interfaces; nothing
// re-inspects a function after registration.
package registry

import (
	"fmt"
	"reflect"

	"github.com/loomml/loom/pkg/domain"
)

// Signature is the structural type of a registered component function:
// its parameter types, its primary return type, and whether it reports
// errors as a trailing return value.
type Signature struct {
	fn     reflect.Value
	ins    []reflect.Type
	out    reflect.Type
	hasErr bool
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Inspect derives the Signature of fn.
//
// fn must be a non-variadic function returning either one value, or one
// value and an error. Anything else fails with domain.ErrSignature.
func Inspect(fn any) (*Signature, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: function is nil", domain.ErrSignature)
	}
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %T is not a function", domain.ErrSignature, fn)
	}
	if t.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic functions are not supported", domain.ErrSignature)
	}

	hasErr := false
	switch t.NumOut() {
	case 1:
		if t.Out(0) == errorType {
			return nil, fmt.Errorf("%w: function returns only an error", domain.ErrSignature)
		}
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf(
				"%w: second return value must be error, not %s", domain.ErrSignature, t.Out(1),
			)
		}
		hasErr = true
	default:
		return nil, fmt.Errorf(
			"%w: function must return a value or (value, error), not %d values",
			domain.ErrSignature, t.NumOut(),
		)
	}

	ins := make([]reflect.Type, t.NumIn())
	for i := range ins {
		ins[i] = t.In(i)
	}
	return &Signature{fn: v, ins: ins, out: t.Out(0), hasErr: hasErr}, nil
}

// NumIn returns the number of parameters.
func (s *Signature) NumIn() int {
	return len(s.ins)
}

// In returns the type of the i-th parameter.
func (s *Signature) In(i int) reflect.Type {
	return s.ins[i]
}

// Out returns the primary return type.
func (s *Signature) Out() reflect.Type {
	return s.out
}

// Call invokes the underlying function with args.
//
// Arguments are checked against the declared parameter types; a structural
// mismatch fails with domain.ErrPipeline. An error returned by the function
// itself is passed through as-is.
func (s *Signature) Call(args ...any) (any, error) {
	if len(args) != len(s.ins) {
		return nil, fmt.Errorf(
			"%w: function takes %d arguments, got %d", domain.ErrPipeline, len(s.ins), len(args),
		)
	}

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		pt := s.ins[i]
		if a == nil {
			in[i] = reflect.Zero(pt)
			continue
		}
		av := reflect.ValueOf(a)
		if !av.Type().AssignableTo(pt) {
			return nil, fmt.Errorf(
				"%w: argument %d: %s is not assignable to %s",
				domain.ErrPipeline, i, av.Type(), pt,
			)
		}
		in[i] = av
	}

	out := s.fn.Call(in)
	if s.hasErr {
		if e := out[1]; !e.IsNil() {
			return nil, e.Interface().(error)
		}
	}
	return out[0].Interface(), nil
}

// Registry holds component functions keyed by role. Registration is
// last-wins; required-role invariants are enforced at the point of use
// via Get, not at registration time.
type Registry struct {
	components map[domain.Role]*Signature
}

func New() *Registry {
	return &Registry{components: map[domain.Role]*Signature{}}
}

// Register stores fn for role, overwriting any prior registration.
func (r *Registry) Register(role domain.Role, fn any) error {
	sig, err := Inspect(fn)
	if err != nil {
		return fmt.Errorf("%w (role %s)", err, role)
	}
	r.components[role] = sig
	return nil
}

// Get returns the Signature registered for role, or domain.ErrNotRegistered
// naming the role.
func (r *Registry) Get(role domain.Role) (*Signature, error) {
	sig, ok := r.components[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotRegistered, role)
	}
	return sig, nil
}

// Has tells whether a function is registered for role.
func (r *Registry) Has(role domain.Role) bool {
	_, ok := r.components[role]
	return ok
}
