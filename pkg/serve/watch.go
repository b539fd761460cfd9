package serve

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/labstack/echo/v4"

	"github.com/loomml/loom/pkg/domain/model"
	"github.com/loomml/loom/pkg/utils/filewatch"
)

// WatchArtifact loads the serialized model at path into m, then keeps
// reloading it whenever the file changes, until ctx is done or the returned
// stop function is called.
//
// A failed reload keeps the previously loaded artifact serving.
func WatchArtifact(ctx context.Context, m *model.Model, path string, logger echo.Logger) (func(), error) {
	if _, err := m.LoadFile(path); err != nil {
		return nil, err
	}

	return filewatch.OnModify(ctx, path, func(event fsnotify.Event) {
		if _, err := m.LoadFile(path); err != nil {
			if logger != nil {
				logger.Warnf("model at %s is not reloadable: %s", path, err)
			}
			return
		}
		if logger != nil {
			logger.Infof("model reloaded from %s (%s)", path, event.Op)
		}
	})
}
