// Package importer converts markdown documents into memory items and runs
// them through the ingestion pipeline in batches, so recognition and
// consolidation apply to bulk imports the same way they apply to the API.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/scrypster/engram/internal/pipeline"
	"github.com/scrypster/engram/pkg/types"
)

var frontMatterDelimiter = []byte("---")

// Document is one parsed markdown file.
type Document struct {
	Path        string
	FrontMatter map[string]interface{}
	Body        string
}

// ParseDocument splits optional YAML front matter from the markdown body.
// A missing front matter block is not an error; a malformed one is.
func ParseDocument(path string, data []byte) (*Document, error) {
	doc := &Document{Path: path}

	trimmed := bytes.TrimLeft(data, "\r\n")
	if !bytes.HasPrefix(trimmed, frontMatterDelimiter) {
		doc.Body = strings.TrimSpace(string(data))
		return doc, nil
	}

	rest := trimmed[len(frontMatterDelimiter):]
	end := bytes.Index(rest, append([]byte("\n"), frontMatterDelimiter...))
	if end < 0 {
		return nil, fmt.Errorf("unterminated front matter in %s", path)
	}

	if err := yaml.Unmarshal(rest[:end], &doc.FrontMatter); err != nil {
		return nil, fmt.Errorf("malformed front matter in %s: %w", path, err)
	}
	body := rest[end+1+len(frontMatterDelimiter):]
	doc.Body = strings.TrimSpace(string(body))
	return doc, nil
}

// Stats summarizes one import run.
type Stats struct {
	Files   int
	Stored  int
	Dropped int
	Skipped int
}

// Importer feeds parsed documents through the pipeline.
type Importer struct {
	pipe *pipeline.Pipeline

	// DataType is the fallback item type when front matter does not carry
	// a "type" key (default "note").
	DataType string

	// TenantID stamps imported items (default "default").
	TenantID string

	// BatchSize bounds how many items go through one pipeline batch, which
	// is also the consolidation window (default 50).
	BatchSize int
}

// New creates an importer over the given pipeline.
func New(pipe *pipeline.Pipeline) *Importer {
	return &Importer{
		pipe:      pipe,
		DataType:  "note",
		TenantID:  "default",
		BatchSize: 50,
	}
}

// ImportDir walks root for .md files and runs them through the pipeline.
// Unreadable or malformed files are skipped with a warning, never fatal.
func (imp *Importer) ImportDir(ctx context.Context, root string) (Stats, error) {
	var stats Stats
	var batch []*types.MemoryItem

	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		stats.Files++

		item, err := imp.loadItem(root, path)
		if err != nil {
			log.Printf("Warning: skipping %s: %v", path, err)
			stats.Skipped++
			return nil
		}

		batch = append(batch, item)
		if len(batch) >= imp.BatchSize {
			if err := imp.flush(ctx, batch, &stats); err != nil {
				return err
			}
			batch = nil
		}
		return nil
	})
	if err != nil {
		return stats, err
	}

	if err := imp.flush(ctx, batch, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

func (imp *Importer) flush(ctx context.Context, batch []*types.MemoryItem, stats *Stats) error {
	if len(batch) == 0 {
		return nil
	}
	out, err := imp.pipe.RunBatch(ctx, batch)
	if err != nil {
		return fmt.Errorf("pipeline batch failed: %w", err)
	}
	stats.Stored += len(out)
	stats.Dropped += len(batch) - len(out)
	return nil
}

// loadItem reads and parses one file into a memory item. Front matter keys
// become payload fields alongside the body under "content"; the reserved
// "type" and "tags" keys set the item type and metadata tags instead.
func (imp *Importer) loadItem(root, path string) (*types.MemoryItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(path, data)
	if err != nil {
		return nil, err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	payload := map[string]interface{}{
		"content":     doc.Body,
		"source_path": filepath.ToSlash(rel),
	}
	dataType := imp.DataType
	var tags []string
	for key, value := range doc.FrontMatter {
		switch key {
		case "type":
			if s, ok := value.(string); ok && s != "" {
				dataType = s
			}
		case "tags":
			tags = stringList(value)
		default:
			payload[key] = value
		}
	}

	return &types.MemoryItem{
		ID:       uuid.New().String(),
		Data:     payload,
		DataType: dataType,
		Intent:   "store",
		Metadata: types.ItemMetadata{
			TenantID:  imp.TenantID,
			Timestamp: time.Now().UTC(),
			Tags:      tags,
		},
	}, nil
}

// stringList coerces a front matter value into a string slice. YAML lists
// decode as []interface{}; a bare scalar becomes a one-element list.
func stringList(value interface{}) []string {
	switch v := value.(type) {
	case []interface{}:
		var out []string
		for _, entry := range v {
			if s, ok := entry.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	default:
		return nil
	}
}
