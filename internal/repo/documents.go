package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelkit/modelkit/internal/codec"
	"github.com/modelkit/modelkit/internal/resource"
)

// ErrNotFound is returned when a URI has no stored snapshot.
var ErrNotFound = errors.New("document not found")

// Snapshot describes one stored document version.
type Snapshot struct {
	URI     string
	Hash    string
	Size    int64
	SavedAt string
	Head    bool
}

// Save encodes the resource, stores a snapshot keyed by its content hash,
// and moves the URI's head pointer to it. Saving unchanged content is a
// no-op: the hash already exists and the head already points at it.
func (r *Repo) Save(ctx context.Context, res *resource.Resource) (hash string, changed bool, err error) {
	hash, err = codec.DocumentHash(res)
	if err != nil {
		return "", false, fmt.Errorf("save %s: %w", res.URI(), err)
	}

	var headHash string
	err = r.db.QueryRowContext(ctx, `SELECT hash FROM heads WHERE uri = ?`, res.URI()).Scan(&headHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("save %s: %w", res.URI(), err)
	}
	if headHash == hash {
		slog.Debug("document unchanged", "uri", res.URI(), "hash", hash)
		return hash, false, nil
	}

	body, err := codec.EncodeJSON(res)
	if err != nil {
		return "", false, fmt.Errorf("save %s: %w", res.URI(), err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, fmt.Errorf("save %s: begin tx: %w", res.URI(), err)
	}
	defer tx.Rollback() // No-op if committed

	// Re-saving a hash the history already holds just moves the head back.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (uri, hash, body, size)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(uri, hash) DO NOTHING
	`, res.URI(), hash, body, len(body))
	if err != nil {
		return "", false, fmt.Errorf("save %s: %w", res.URI(), err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO heads (uri, hash) VALUES (?, ?)
		ON CONFLICT(uri) DO UPDATE SET hash = excluded.hash
	`, res.URI(), hash)
	if err != nil {
		return "", false, fmt.Errorf("save %s: %w", res.URI(), err)
	}

	if err := tx.Commit(); err != nil {
		return "", false, fmt.Errorf("save %s: commit: %w", res.URI(), err)
	}

	slog.Info("document saved", "uri", res.URI(), "hash", hash, "bytes", len(body))
	return hash, true, nil
}

// Load reads the head snapshot for uri into a resource of the given set.
// An existing in-memory resource under that URI is cleared first so the
// load reflects exactly what the store holds.
func (r *Repo) Load(ctx context.Context, set *resource.Set, uri string) (*resource.Resource, error) {
	var hash string
	err := r.db.QueryRowContext(ctx, `SELECT hash FROM heads WHERE uri = ?`, uri).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s: %w", uri, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", uri, err)
	}
	return r.LoadVersion(ctx, set, uri, hash)
}

// LoadVersion reads a specific snapshot by content hash.
func (r *Repo) LoadVersion(ctx context.Context, set *resource.Set, uri, hash string) (*resource.Resource, error) {
	var body []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE uri = ? AND hash = ?`, uri, hash,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load %s@%s: %w", uri, hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s@%s: %w", uri, hash, err)
	}

	res := set.CreateResource(uri)
	res.Clear()
	if err := codec.DecodeJSON(res, body); err != nil {
		return nil, fmt.Errorf("load %s@%s: %w", uri, hash, err)
	}
	slog.Debug("document loaded", "uri", uri, "hash", hash, "objects", res.Len())
	return res, nil
}

// List returns the head snapshot of every stored URI, ordered by URI.
func (r *Repo) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.uri, d.hash, d.size, d.created_at
		FROM heads h
		JOIN documents d ON d.uri = h.uri AND d.hash = h.hash
		ORDER BY d.uri
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s := Snapshot{Head: true}
		if err := rows.Scan(&s.URI, &s.Hash, &s.Size, &s.SavedAt); err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// History returns every stored snapshot of a URI, oldest first.
func (r *Repo) History(ctx context.Context, uri string) ([]Snapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT d.uri, d.hash, d.size, d.created_at,
		       EXISTS (SELECT 1 FROM heads h WHERE h.uri = d.uri AND h.hash = d.hash)
		FROM documents d
		WHERE d.uri = ?
		ORDER BY d.created_at, d.hash
	`, uri)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", uri, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.URI, &s.Hash, &s.Size, &s.SavedAt, &s.Head); err != nil {
			return nil, fmt.Errorf("history %s: %w", uri, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
