package ifacemap

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jward/ifacemap/internal/watch"
)

// Watch indexes the tree, then keeps the index current as matching files
// are created, modified, or deleted. It blocks until ctx is cancelled and
// returns nil then; it returns an error if the watcher cannot start or
// fails.
//
// Changes are debounced into batches and each batch triggers one rebuild,
// subject to the usual coalescing.
func (e *Engine) Watch(ctx context.Context) error {
	w, err := watch.New(watch.Config{
		BaseDir:  e.root,
		Patterns: e.patterns,
		Ignore:   e.ignore,
		Debounce: e.debounce,
		Logger:   e.logger,
		OnChange: func(_ context.Context, events []watch.Event) {
			for _, ev := range events {
				e.logger.Debug("file changed", "path", ev.Path, "op", ev.Op)
			}
			e.Trigger(events[0].Op.String())
		},
	})
	if err != nil {
		return fmt.Errorf("ifacemap: watch: %w", err)
	}

	e.Trigger("activate")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(gctx)
	})
	g.Go(func() error {
		return e.Run(gctx)
	})
	return g.Wait()
}
