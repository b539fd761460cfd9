package domain

import (
	"encoding/gob"
	"fmt"
	"io"
)

// Artifact is the result of training: a fitted model object and the metrics
// the evaluator computed for it, keyed by split name ("train", "test").
//
// The model object is opaque to loom. It is produced by the trainer,
// consumed by the predictor, and passed through everywhere else.
type Artifact struct {
	ModelObject any
	Metrics     map[string]any
}

// gob refuses bare interface values at the top level, so the persisted form
// is this single-field envelope.
type envelope struct {
	ModelObject any
}

// Encode writes the gob serialization of the model object to w.
//
// Metrics are not part of the persisted form.
//
// The model object's concrete type must be registered with encoding/gob
// (gob.Register) by whichever package defines it.
func (a *Artifact) Encode(w io.Writer) error {
	if a == nil || a.ModelObject == nil {
		return fmt.Errorf("%w: no model object to encode", ErrSerialization)
	}
	if err := gob.NewEncoder(w).Encode(envelope{ModelObject: a.ModelObject}); err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return nil
}

// DecodeModelObject reads exactly one model object serialized by
// Artifact.Encode from r.
func DecodeModelObject(r io.Reader) (any, error) {
	var e envelope
	if err := gob.NewDecoder(r).Decode(&e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return e.ModelObject, nil
}
