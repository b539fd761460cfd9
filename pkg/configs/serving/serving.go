// Package serving reads the configuration of the prediction server.
package serving

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/loomml/loom/pkg/xerrors"
)

// Config describes how the prediction server runs.
type Config struct {
	// Port the server listens on.
	Port int `yaml:"port"`

	// Model is the file path of the serialized model to serve.
	Model string `yaml:"model"`

	// Watch makes the server reload the model whenever its file changes.
	Watch bool `yaml:"watch"`
}

// Default is the configuration used when no file is given.
func Default() Config {
	return Config{Port: 8080}
}

// Load reads a Config from a yaml file. Omitted fields keep their defaults.
func Load(path string) (Config, error) {
	c := Default()

	buf, err := os.ReadFile(path)
	if err != nil {
		return c, xerrors.Wrap(err)
	}
	if err := yaml.Unmarshal(buf, &c); err != nil {
		return c, xerrors.Errorf("%s: %w", path, err)
	}
	if c.Port == 0 {
		c.Port = Default().Port
	}
	return c, nil
}
