package ifacemap

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/jward/ifacemap/internal/extract"
	"github.com/jward/ifacemap/internal/scan"
)

// extractAll reads and extracts paths with at most e.concurrency files in
// flight. Results are slotted by enumeration index so the merge order does
// not depend on scheduling; a nil slot means the file was skipped.
//
// A read failure affects only its own file. The only error returned is
// the context's.
func (e *Engine) extractAll(ctx context.Context, paths []string) ([]*extract.FileResult, []*FileError, error) {
	results := make([]*extract.FileResult, len(paths))
	failures := make([]*FileError, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := e.source.Read(path)
			if err != nil {
				failures[i] = asFileError(path, err)
				return nil
			}
			results[i] = e.extractor.Extract(path, src)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var skipped []*FileError
	for _, fe := range failures {
		if fe != nil {
			skipped = append(skipped, fe)
		}
	}
	return results, skipped, nil
}

func asFileError(path string, err error) *FileError {
	var fe *scan.FileError
	if errors.As(err, &fe) {
		return fe
	}
	return &scan.FileError{Path: path, Err: err}
}
