// Package task synthesizes typed, schedulable execution units from the
// user's registered component functions.
//
// A Task's input and output types are taken verbatim from the component
// signatures, never invented, so a synthesized task type-checks identically
// to a hand-written one when embedded in an external workflow graph.
package task

import (
	"context"
	"fmt"
	"reflect"

	"github.com/loomml/loom/pkg/domain"
)

// Var is one named, typed input or output of a Task.
type Var struct {
	Name     string
	Type     reflect.Type
	Optional bool
}

// Inputs binds input names to values for one execution.
type Inputs map[string]any

// Outputs binds output names to values produced by one execution.
type Outputs map[string]any

// Task is a typed unit of computation with an explicit interface,
// embeddable inside an external workflow graph.
type Task struct {
	name    string
	inputs  []Var
	outputs []Var
	run     func(ctx context.Context, in Inputs) (Outputs, error)
}

func (t *Task) Name() string {
	return t.name
}

// InputVars returns the task's declared inputs, in order.
func (t *Task) InputVars() []Var {
	vars := make([]Var, len(t.inputs))
	copy(vars, t.inputs)
	return vars
}

// Input returns the declared input named name.
func (t *Task) Input(name string) (Var, bool) {
	for _, v := range t.inputs {
		if v.Name == name {
			return v, true
		}
	}
	return Var{}, false
}

// OutputVars returns the task's declared outputs, in order.
func (t *Task) OutputVars() []Var {
	vars := make([]Var, len(t.outputs))
	copy(vars, t.outputs)
	return vars
}

// Output returns the declared output named name.
func (t *Task) Output(name string) (Var, bool) {
	for _, v := range t.outputs {
		if v.Name == name {
			return v, true
		}
	}
	return Var{}, false
}

// Run executes the task.
//
// Missing required inputs fail with domain.ErrPipeline before any component
// function runs.
func (t *Task) Run(ctx context.Context, in Inputs) (Outputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, v := range t.inputs {
		if v.Optional {
			continue
		}
		if value, ok := in[v.Name]; !ok || value == nil {
			return nil, fmt.Errorf(
				"%w: task %s: missing required input %q", domain.ErrPipeline, t.name, v.Name,
			)
		}
	}
	return t.run(ctx, in)
}
