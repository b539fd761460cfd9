package domain_test

import (
	"bytes"
	"encoding/gob"
	"errors"
	"testing"

	"github.com/loomml/loom/pkg/domain"
	"github.com/loomml/loom/pkg/utils/cmp"
	"github.com/loomml/loom/pkg/utils/try"
)

type fittedStub struct {
	Weights []float64
	Bias    float64
}

func init() {
	gob.Register(&fittedStub{})
}

func TestArtifactEncode(t *testing.T) {
	t.Run("it round-trips the model object, not the metrics", func(t *testing.T) {
		artifact := &domain.Artifact{
			ModelObject: &fittedStub{Weights: []float64{1.5, -2.25}, Bias: 0.5},
			Metrics:     map[string]any{"train": 0.9, "test": 0.8},
		}

		buf := bytes.NewBuffer(nil)
		if err := artifact.Encode(buf); err != nil {
			t.Fatal(err)
		}

		restored := try.To(domain.DecodeModelObject(buf)).OrFatal(t)

		stub, ok := restored.(*fittedStub)
		if !ok {
			t.Fatalf("unexpected type: %T", restored)
		}
		orig := artifact.ModelObject.(*fittedStub)
		if !cmp.SliceEq(stub.Weights, orig.Weights) || stub.Bias != orig.Bias {
			t.Errorf("unmatch: (actual, expected) = (%+v, %+v)", stub, orig)
		}
	})

	t.Run("encoding without a model object fails with ErrSerialization", func(t *testing.T) {
		artifact := &domain.Artifact{}
		err := artifact.Encode(bytes.NewBuffer(nil))
		if !errors.Is(err, domain.ErrSerialization) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("decoding a corrupt stream fails with ErrSerialization", func(t *testing.T) {
		_, err := domain.DecodeModelObject(bytes.NewReader([]byte("not a gob stream")))
		if !errors.Is(err, domain.ErrSerialization) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestAsRole(t *testing.T) {
	for _, name := range []string{
		"init", "reader", "loader", "splitter", "parser", "trainer", "predictor", "evaluator",
	} {
		role := try.To(domain.AsRole(name)).OrFatal(t)
		if role.String() != name {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", role, name)
		}
	}

	if _, err := domain.AsRole("optimizer"); !errors.Is(err, domain.ErrUnknownRole) {
		t.Errorf("unexpected error: %v", err)
	}
}
