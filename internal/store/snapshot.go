package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jward/ifacemap/internal/index"
)

// Metadata keys written alongside a snapshot.
const (
	MetaSeq         = "seq"
	MetaBuiltAt     = "built_at"
	MetaFingerprint = "fingerprint"
	MetaRoot        = "root"
)

// ErrNoSnapshot is returned by LoadGeneration when nothing was written yet.
var ErrNoSnapshot = errors.New("store: no snapshot")

// WriteGeneration replaces the stored snapshot with gen in one transaction
// and records its fingerprint.
func (s *Store) WriteGeneration(ctx context.Context, gen *index.Generation, root string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write generation: begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"implementations", "declarations", "interface_methods", "interfaces", "files"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("write generation: clear %s: %w", table, err)
		}
	}

	fileIDs := make(map[string]int64, len(gen.Files))
	for i, path := range gen.Files {
		res, err := tx.ExecContext(ctx, "INSERT INTO files (path, ordinal) VALUES (?, ?)", path, i)
		if err != nil {
			return fmt.Errorf("write generation: file %q: %w", path, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("write generation: file %q: %w", path, err)
		}
		fileIDs[path] = id
	}

	for i, iface := range gen.Interfaces() {
		if err := insertInterfaceTx(ctx, tx, iface, i, fileID(fileIDs, iface.Location.File)); err != nil {
			return fmt.Errorf("write generation: interface %q: %w", iface.Name, err)
		}
	}

	ord := 0
	for _, name := range gen.DeclarationNames() {
		for _, d := range gen.Declarations(name) {
			if err := insertDeclarationTx(ctx, tx, d, ord, fileID(fileIDs, d.Location.File)); err != nil {
				return fmt.Errorf("write generation: declaration %q: %w", d.Name, err)
			}
			ord++
		}
	}

	ord = 0
	for _, sum := range gen.Implementations() {
		for _, rec := range sum.Implementations {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO implementations (interface_name, concrete_type, declaring_file, ordinal)
				 VALUES (?, ?, ?, ?)`,
				sum.InterfaceName, rec.ConcreteType, rec.DeclaringFile, ord)
			if err != nil {
				return fmt.Errorf("write generation: implementation %s/%s: %w", sum.InterfaceName, rec.ConcreteType, err)
			}
			ord++
		}
	}

	meta := map[string]string{
		MetaSeq:         strconv.FormatUint(gen.Seq, 10),
		MetaBuiltAt:     gen.BuiltAt.UTC().Format(time.RFC3339Nano),
		MetaFingerprint: Fingerprint(gen),
		MetaRoot:        root,
	}
	for k, v := range meta {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO metadata (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			k, v)
		if err != nil {
			return fmt.Errorf("write generation: metadata %q: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write generation: commit: %w", err)
	}
	return nil
}

func fileID(ids map[string]int64, path string) any {
	if id, ok := ids[path]; ok {
		return id
	}
	return nil
}

func insertInterfaceTx(ctx context.Context, tx *sql.Tx, iface *index.Interface, ordinal int, fid any) error {
	l := iface.Location
	res, err := tx.ExecContext(ctx,
		`INSERT INTO interfaces (name, ordinal, file_id, start_offset, end_offset, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iface.Name, ordinal, fid, l.Start, l.End, l.StartLine, l.StartCol, l.EndLine, l.EndCol)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	for i, m := range iface.Methods {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO interface_methods (interface_id, name, ordinal) VALUES (?, ?, ?)",
			id, m, i); err != nil {
			return err
		}
	}
	return nil
}

func insertDeclarationTx(ctx context.Context, tx *sql.Tx, d index.Declaration, ordinal int, fid any) error {
	l := d.Location
	_, err := tx.ExecContext(ctx,
		`INSERT INTO declarations (name, receiver_type, ordinal, is_recursive, file_id,
		   start_offset, end_offset, start_line, start_col, end_line, end_col)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.Name, d.ReceiverType, ordinal, d.IsRecursive, fid,
		l.Start, l.End, l.StartLine, l.StartCol, l.EndLine, l.EndCol)
	return err
}

// LoadGeneration reads the stored snapshot back into an immutable
// generation. It returns ErrNoSnapshot for a database that was never
// written.
func (s *Store) LoadGeneration(ctx context.Context) (*index.Generation, error) {
	seqStr, err := s.GetMetadata(ctx, MetaSeq)
	if err != nil {
		return nil, err
	}
	if seqStr == "" {
		return nil, ErrNoSnapshot
	}
	seq, err := strconv.ParseUint(seqStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("load generation: seq: %w", err)
	}
	builtStr, err := s.GetMetadata(ctx, MetaBuiltAt)
	if err != nil {
		return nil, err
	}
	builtAt, _ := time.Parse(time.RFC3339Nano, builtStr)

	files, err := s.loadFiles(ctx)
	if err != nil {
		return nil, err
	}
	ifaces, err := s.loadInterfaces(ctx)
	if err != nil {
		return nil, err
	}
	decls, err := s.loadDeclarations(ctx)
	if err != nil {
		return nil, err
	}
	sums, err := s.loadImplementations(ctx)
	if err != nil {
		return nil, err
	}
	return index.Restore(seq, builtAt, files, ifaces, decls, sums), nil
}

func (s *Store) loadFiles(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM files ORDER BY ordinal")
	if err != nil {
		return nil, fmt.Errorf("load files: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("load files: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) loadInterfaces(ctx context.Context) ([]index.Interface, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.id, i.name, COALESCE(f.path, ''), i.start_offset, i.end_offset,
		        i.start_line, i.start_col, i.end_line, i.end_col
		 FROM interfaces i LEFT JOIN files f ON f.id = i.file_id
		 ORDER BY i.ordinal`)
	if err != nil {
		return nil, fmt.Errorf("load interfaces: %w", err)
	}
	var out []index.Interface
	var ids []int64
	for rows.Next() {
		var id int64
		var iface index.Interface
		l := &iface.Location
		if err := rows.Scan(&id, &iface.Name, &l.File, &l.Start, &l.End,
			&l.StartLine, &l.StartCol, &l.EndLine, &l.EndCol); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load interfaces: %w", err)
		}
		ids = append(ids, id)
		out = append(out, iface)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("load interfaces: %w", err)
	}
	rows.Close()

	for i, id := range ids {
		methods, err := s.interfaceMethods(ctx, id)
		if err != nil {
			return nil, err
		}
		out[i].Methods = methods
	}
	return out, nil
}

func (s *Store) interfaceMethods(ctx context.Context, interfaceID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name FROM interface_methods WHERE interface_id = ? ORDER BY ordinal", interfaceID)
	if err != nil {
		return nil, fmt.Errorf("load interface methods: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("load interface methods: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) loadDeclarations(ctx context.Context) ([]index.Declaration, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT d.name, d.receiver_type, d.is_recursive, COALESCE(f.path, ''),
		        d.start_offset, d.end_offset, d.start_line, d.start_col, d.end_line, d.end_col
		 FROM declarations d LEFT JOIN files f ON f.id = d.file_id
		 ORDER BY d.ordinal`)
	if err != nil {
		return nil, fmt.Errorf("load declarations: %w", err)
	}
	defer rows.Close()
	var out []index.Declaration
	for rows.Next() {
		var d index.Declaration
		l := &d.Location
		if err := rows.Scan(&d.Name, &d.ReceiverType, &d.IsRecursive, &l.File,
			&l.Start, &l.End, &l.StartLine, &l.StartCol, &l.EndLine, &l.EndCol); err != nil {
			return nil, fmt.Errorf("load declarations: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) loadImplementations(ctx context.Context) ([]index.ImplementationSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT interface_name, concrete_type, declaring_file FROM implementations ORDER BY ordinal")
	if err != nil {
		return nil, fmt.Errorf("load implementations: %w", err)
	}
	defer rows.Close()
	var out []index.ImplementationSummary
	pos := make(map[string]int)
	for rows.Next() {
		var name string
		var rec index.ImplementationRecord
		if err := rows.Scan(&name, &rec.ConcreteType, &rec.DeclaringFile); err != nil {
			return nil, fmt.Errorf("load implementations: %w", err)
		}
		i, ok := pos[name]
		if !ok {
			i = len(out)
			pos[name] = i
			out = append(out, index.ImplementationSummary{InterfaceName: name})
		}
		out[i].Implementations = append(out[i].Implementations, rec)
		out[i].Count = len(out[i].Implementations)
	}
	return out, rows.Err()
}
