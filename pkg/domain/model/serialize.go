package model

import (
	"fmt"
	"io"
	"os"

	"github.com/loomml/loom/pkg/domain"
	"github.com/loomml/loom/pkg/xerrors"
)

// SaveFile serializes the current artifact's model object to path,
// truncating any existing file, and returns the resolved path.
func (m *Model) SaveFile(path string) (string, error) {
	artifact := m.Artifact()
	if artifact == nil {
		return "", fmt.Errorf("%w: nothing to save", domain.ErrNoArtifact)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", xerrors.Errorf("%w: %w", domain.ErrSerialization, err)
	}
	defer f.Close()

	if err := artifact.Encode(f); err != nil {
		return "", err
	}
	if err := f.Sync(); err != nil {
		return "", xerrors.Errorf("%w: %w", domain.ErrSerialization, err)
	}
	return path, nil
}

// SaveTo serializes the current artifact's model object to w.
func (m *Model) SaveTo(w io.Writer) error {
	artifact := m.Artifact()
	if artifact == nil {
		return fmt.Errorf("%w: nothing to save", domain.ErrNoArtifact)
	}
	return artifact.Encode(w)
}

// LoadFile deserializes one model object from path, makes it the current
// artifact (metrics are not part of the persisted form, so they are empty),
// and returns it.
func (m *Model) LoadFile(path string) (any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("%w: %w", domain.ErrSerialization, err)
	}
	defer f.Close()

	return m.LoadFrom(f)
}

// LoadFrom deserializes one model object from r and makes it the current
// artifact.
func (m *Model) LoadFrom(r io.Reader) (any, error) {
	obj, err := domain.DecodeModelObject(r)
	if err != nil {
		return nil, err
	}
	m.SetArtifact(&domain.Artifact{ModelObject: obj})
	return obj, nil
}
