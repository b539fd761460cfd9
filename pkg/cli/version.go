package cli

import (
	"context"

	"github.com/youta-t/flarc"

	"github.com/loomml/loom/pkg/buildtime"
)

func newVersion() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show version of this command.",
		struct{}{},
		flarc.Args{},
		func(ctx context.Context, c flarc.Commandline[struct{}], _ []any) error {
			_, err := c.Stdout().Write([]byte(buildtime.VersionString() + "\n"))
			return err
		},
	)
}
