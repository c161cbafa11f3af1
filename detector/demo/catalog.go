// Package demo is the offline detector backend: a SQLite weight catalog and
// synthetic detections with artificial latency. It performs no network I/O.
package demo

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/soocke/vision-live-go/domain/detection"
)

// DefaultWeights seed an empty catalog.
var DefaultWeights = []string{"yolov5s.pt", "yolov5m.pt", "yolov5l.pt", "yolov5x.pt"}

// Catalog persists weight names in SQLite.
type Catalog struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// OpenCatalog opens (or creates) the catalog at path and seeds it. Use
// ":memory:" for a throwaway catalog.
func OpenCatalog(path string, seed []string) (*Catalog, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, "open weights db")
	}
	// One connection keeps an in-memory database alive for the catalog's lifetime.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	c := &Catalog{conn: conn}
	if err := c.migrate(); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "migrate weights db")
	}
	if err := c.seed(seed); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "seed weights db")
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS weights (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		size INTEGER DEFAULT 0,
		uploaded_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := c.conn.Exec(schema)
	return err
}

func (c *Catalog) seed(names []string) error {
	var n int
	if err := c.conn.QueryRow(`SELECT COUNT(*) FROM weights`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	for _, name := range names {
		if _, err := c.conn.Exec(`INSERT OR IGNORE INTO weights (name) VALUES (?)`, name); err != nil {
			return err
		}
	}
	return nil
}

// Weights lists weight names in insertion order.
func (c *Catalog) Weights(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows, err := c.conn.QueryContext(ctx, `SELECT name FROM weights ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "query weights")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(err, "scan weight")
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// UploadWeight records name. The content is drained and only its size is kept.
func (c *Catalog) UploadWeight(ctx context.Context, name string, r io.Reader) error {
	if err := detection.ValidWeightName(name); err != nil {
		return err
	}
	var size int64
	if r != nil {
		n, err := io.Copy(io.Discard, r)
		if err != nil {
			return errors.Wrap(err, "read weight")
		}
		size = n
	}
	name = baseName(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.conn.ExecContext(ctx,
		`INSERT INTO weights (name, size, uploaded_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET size = excluded.size, uploaded_at = excluded.uploaded_at`,
		name, size, time.Now().UTC())
	return errors.Wrapf(err, "store weight %s", name)
}

// Close closes the database.
func (c *Catalog) Close() error { return c.conn.Close() }

func baseName(p string) string {
	if i := strings.LastIndexAny(p, `/\`); i >= 0 {
		return p[i+1:]
	}
	return p
}
