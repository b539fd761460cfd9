package filewatch

import (
	"context"

	"github.com/fsnotify/fsnotify"
)

// OnModify watches targetFilePath and invokes callback each time the file is
// modified (= written, created, removed, or renamed).
//
// The watch runs on its own goroutine until ctx is done or the returned stop
// function is called.
//
// # Args
//
// - ctx: context.Context limiting the lifetime of the watch.
//
// - targetFilePath: file path to be watched.
//
// - callback: invoked with the triggering event. Errors of the callback are
// not handled here; the callback should deal with them itself.
//
// # Returns
//
// - func(): stop function releasing the watch.
//
// - error: error caused when it fails to start watching the file.
func OnModify(ctx context.Context, targetFilePath string, callback func(fsnotify.Event)) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithCancel(ctx)
	go func() {
		defer w.Close()

		for {
			select {
			case <-cctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
					!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
					continue
				}
				callback(event)
			}
		}
	}()

	if err := w.Add(targetFilePath); err != nil {
		cancel()
		return nil, err
	}
	return cancel, nil
}
