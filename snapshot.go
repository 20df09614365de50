package ifacemap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jward/ifacemap/internal/index"
	"github.com/jward/ifacemap/internal/store"
)

// ErrNoSnapshot is returned by OpenSnapshot for a database that holds no
// exported index.
var ErrNoSnapshot = store.ErrNoSnapshot

// Export writes the published generation to a SQLite database at dbPath,
// replacing whatever snapshot it held. When the stored snapshot already has
// the same contents nothing is written and Export reports false.
func (e *Engine) Export(ctx context.Context, dbPath string) (bool, error) {
	s, err := openStore(dbPath)
	if err != nil {
		return false, err
	}
	defer s.Close()

	gen := e.index.Current()
	stored, err := s.GetMetadata(ctx, store.MetaFingerprint)
	if err != nil {
		return false, fmt.Errorf("ifacemap: export: %w", err)
	}
	if stored != "" && stored == store.Fingerprint(gen) {
		e.logger.Debug("snapshot unchanged", "db", dbPath, "seq", gen.Seq)
		return false, nil
	}

	if err := s.WriteGeneration(ctx, gen, e.root); err != nil {
		return false, fmt.Errorf("ifacemap: export: %w", err)
	}
	e.logger.Info("exported index", "db", dbPath, "seq", gen.Seq)
	return true, nil
}

// Snapshot is a read-only index loaded from an exported database.
type Snapshot struct {
	store *store.Store
	index *index.Index

	// Root is the directory the snapshot was built from.
	Root string
	// Fingerprint identifies the snapshot's contents.
	Fingerprint string
}

// OpenSnapshot loads the index exported to dbPath. The database stays open
// for db_query access from scripts until Close.
func OpenSnapshot(ctx context.Context, dbPath string) (*Snapshot, error) {
	s, err := openStore(dbPath)
	if err != nil {
		return nil, err
	}

	gen, err := s.LoadGeneration(ctx)
	if err != nil {
		s.Close()
		if errors.Is(err, store.ErrNoSnapshot) {
			return nil, fmt.Errorf("ifacemap: %s: %w", dbPath, err)
		}
		return nil, fmt.Errorf("ifacemap: load snapshot: %w", err)
	}
	root, err := s.GetMetadata(ctx, store.MetaRoot)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("ifacemap: load snapshot: %w", err)
	}
	fp, err := s.GetMetadata(ctx, store.MetaFingerprint)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("ifacemap: load snapshot: %w", err)
	}

	x := index.New()
	x.Publish(gen)
	return &Snapshot{store: s, index: x, Root: root, Fingerprint: fp}, nil
}

// Query returns a QueryBuilder over the loaded generation.
func (s *Snapshot) Query() *QueryBuilder {
	return &QueryBuilder{index: s.index}
}

// Stale reports whether gen differs in content from the snapshot.
func (s *Snapshot) Stale(gen *Generation) bool {
	return store.Fingerprint(gen) != s.Fingerprint
}

// Close releases the database.
func (s *Snapshot) Close() error {
	return s.store.Close()
}

func openStore(dbPath string) (*store.Store, error) {
	s, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("ifacemap: create store: %w", err)
	}
	if err := s.Migrate(); err != nil {
		s.Close()
		return nil, fmt.Errorf("ifacemap: migrate: %w", err)
	}
	return s, nil
}
