package filewatch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/loomml/loom/pkg/utils/filewatch"
)

func TestOnModify(t *testing.T) {
	t.Run("it invokes callback when the file is written", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "artifact.bin")
		if err := os.WriteFile(target, []byte("v1"), 0o644); err != nil {
			t.Fatal(err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		events := make(chan fsnotify.Event, 8)
		stop, err := filewatch.OnModify(ctx, target, func(ev fsnotify.Event) {
			events <- ev
		})
		if err != nil {
			t.Fatal(err)
		}
		defer stop()

		if err := os.WriteFile(target, []byte("v2"), 0o644); err != nil {
			t.Fatal(err)
		}

		select {
		case ev := <-events:
			if ev.Name != target {
				t.Errorf("unexpected event target: %s", ev.Name)
			}
		case <-ctx.Done():
			t.Fatal("no event observed before timeout")
		}
	})

	t.Run("it fails when the file does not exist", func(t *testing.T) {
		ctx := context.Background()
		_, err := filewatch.OnModify(ctx, filepath.Join(t.TempDir(), "missing"), func(fsnotify.Event) {})
		if err == nil {
			t.Error("expected error for missing file")
		}
	})
}
