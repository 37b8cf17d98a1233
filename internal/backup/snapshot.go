// Package backup creates and prunes point-in-time snapshots of the SQLite
// record store. Snapshots use VACUUM INTO, which produces a consistent
// copy even under WAL mode while the daemon keeps serving writes.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const snapshotPrefix = "engram-"

// Config tunes the snapshotter.
type Config struct {
	// SourcePath is the live SQLite database file.
	SourcePath string

	// Dir is where snapshots are written.
	Dir string

	// Keep is how many snapshots to retain, oldest pruned first
	// (default 10).
	Keep int
}

// Snapshotter takes verified snapshots of the record store database.
type Snapshotter struct {
	cfg Config
}

// NewSnapshotter creates a snapshotter. Zero Keep falls back to 10.
func NewSnapshotter(cfg Config) *Snapshotter {
	if cfg.Keep <= 0 {
		cfg.Keep = 10
	}
	return &Snapshotter{cfg: cfg}
}

// Take writes one snapshot, verifies its integrity, prunes old snapshots,
// and returns the snapshot path.
func (s *Snapshotter) Take(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.cfg.Dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	name := snapshotPrefix + time.Now().UTC().Format("20060102T150405Z") + ".db"
	dest := filepath.Join(s.cfg.Dir, name)

	source, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", s.cfg.SourcePath))
	if err != nil {
		return "", fmt.Errorf("failed to open source database: %w", err)
	}
	defer source.Close()

	if err := source.PingContext(ctx); err != nil {
		return "", fmt.Errorf("failed to ping source database: %w", err)
	}
	if _, err := source.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}

	if err := Verify(ctx, dest); err != nil {
		_ = os.Remove(dest)
		return "", err
	}
	if err := s.prune(); err != nil {
		return dest, fmt.Errorf("snapshot taken but pruning failed: %w", err)
	}
	return dest, nil
}

// Verify runs SQLite's integrity check against a snapshot file.
func Verify(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to run integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// Run takes snapshots on the given interval until ctx is cancelled.
// Failures are logged, never fatal.
func (s *Snapshotter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			path, err := s.Take(ctx)
			if err != nil {
				log.Printf("ERROR: snapshot failed: %v", err)
				continue
			}
			log.Printf("Snapshot written to %s", path)
		case <-ctx.Done():
			return
		}
	}
}

// List returns snapshot paths in the configured directory, newest first.
func (s *Snapshotter) List() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read snapshot directory: %w", err)
	}

	type snapshot struct {
		path    string
		modTime time.Time
	}
	var snapshots []snapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, ".db") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, snapshot{
			path:    filepath.Join(s.cfg.Dir, name),
			modTime: info.ModTime(),
		})
	}

	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].modTime.After(snapshots[j].modTime)
	})

	paths := make([]string, len(snapshots))
	for i, snap := range snapshots {
		paths[i] = snap.path
	}
	return paths, nil
}

// prune deletes snapshots beyond the retention count, oldest first.
func (s *Snapshotter) prune() error {
	paths, err := s.List()
	if err != nil {
		return err
	}
	if len(paths) <= s.cfg.Keep {
		return nil
	}

	var lastErr error
	for _, path := range paths[s.cfg.Keep:] {
		if err := os.Remove(path); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
