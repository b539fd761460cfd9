// Command loom-example is a complete loom application built on the builtin
// logistic regression over CSV data.
//
// Try it:
//
//	loom-example train --reader-options '{"path": "data.csv"}' --output model.gob
//	loom-example serve --model model.gob --watch
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path"

	"github.com/youta-t/flarc"

	"github.com/loomml/loom/pkg/builtins"
	"github.com/loomml/loom/pkg/cli"
)

func main() {
	name := path.Base(os.Args[0])
	logger := log.Default()
	logger.SetPrefix("[" + name + "] ")

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	m, err := builtins.NewModel("example")
	if err != nil {
		logger.Fatal(err)
	}

	root, err := cli.New(m)
	if err != nil {
		logger.Fatal(err)
	}

	os.Exit(flarc.Run(ctx, root, flarc.WithHelp(true)))
}
