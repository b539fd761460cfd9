// Package domain holds the core vocabulary of loom: component roles,
// the model artifact, and the error taxonomy shared by all layers.
package domain

import (
	"errors"
	"fmt"
)

// Role is a fixed pipeline position a user supplies a function for.
type Role string

const (
	RoleInit      Role = "init"
	RoleReader    Role = "reader"
	RoleLoader    Role = "loader"
	RoleSplitter  Role = "splitter"
	RoleParser    Role = "parser"
	RoleTrainer   Role = "trainer"
	RolePredictor Role = "predictor"
	RoleEvaluator Role = "evaluator"
)

func (r Role) String() string {
	return string(r)
}

var ErrUnknownRole = errors.New("unknown component role")

// AsRole parses s as a Role.
func AsRole(s string) (Role, error) {
	switch Role(s) {
	case RoleInit, RoleReader, RoleLoader, RoleSplitter, RoleParser,
		RoleTrainer, RolePredictor, RoleEvaluator:
		return Role(s), nil
	default:
		return Role(s), fmt.Errorf("%w: %s", ErrUnknownRole, s)
	}
}

var (
	// ErrNotRegistered is returned when a required component role has no
	// function registered at the point of use.
	ErrNotRegistered = errors.New("component is not registered")

	// ErrSignature is returned when a registered function's type is not
	// usable for task synthesis.
	ErrSignature = errors.New("unsuitable component signature")

	// ErrPipeline is returned when a pipeline stage fails or its output is
	// structurally incompatible with the next stage's input.
	ErrPipeline = errors.New("pipeline stage failed")

	// ErrInvalidHyperparameters is returned when a raw hyperparameter
	// mapping does not fit the initializer's declared parameters.
	ErrInvalidHyperparameters = errors.New("invalid hyperparameters")

	// ErrNoArtifact is returned when a prediction is attempted with no
	// trained or loaded model artifact present.
	ErrNoArtifact = errors.New("no model artifact")

	// ErrSerialization is returned when an artifact cannot be written to or
	// read from its target.
	ErrSerialization = errors.New("artifact serialization failed")
)
