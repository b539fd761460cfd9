// Package profile reads the connection profile for a remote loom backend.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/loomml/loom/pkg/xerrors"
)

// name of the environment variable overriding the profile path.
const PathEnv = "LOOM_PROFILE"

var ErrIncomplete = errors.New("incomplete profile")

// Profile points at a remote backend and names the application to operate on.
type Profile struct {
	// Endpoint is the base URL of the backend API.
	Endpoint string `yaml:"endpoint"`

	// Token is the bearer token sent with each request. Optional.
	Token string `yaml:"token"`

	// App is the application name executions are submitted against.
	App string `yaml:"app"`
}

// Load reads and validates a Profile from a yaml file.
func Load(path string) (*Profile, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}

	p := &Profile{}
	if err := yaml.Unmarshal(buf, p); err != nil {
		return nil, xerrors.Errorf("%s: %w", path, err)
	}

	if p.Endpoint == "" {
		return nil, fmt.Errorf("%w: %s: endpoint is required", ErrIncomplete, path)
	}
	if p.App == "" {
		return nil, fmt.Errorf("%w: %s: app is required", ErrIncomplete, path)
	}
	return p, nil
}

// FindPath resolves the profile path: the PathEnv environment variable when
// set, otherwise ~/.loom/profile.yaml.
func FindPath() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", xerrors.Wrap(err)
	}
	return filepath.Join(home, ".loom", "profile.yaml"), nil
}
