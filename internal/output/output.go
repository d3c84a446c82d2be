// Package output writes an extraction bundle to disk: every kind template,
// the parameters file, the master template when present, and externalized
// policy documents under policies/.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rflorenc/apim-template-extractor/internal/extract"
	"github.com/rflorenc/apim-template-extractor/internal/logging"
	"github.com/rflorenc/apim-template-extractor/internal/models"
)

// PolicyDir is the folder, relative to the output folder, holding policy files.
const PolicyDir = "policies"

// DefaultWorkers bounds concurrent file writes.
const DefaultWorkers = 4

// Writer writes bundles into one folder.
type Writer struct {
	Folder  string
	Workers int
	Logger  *slog.Logger
}

// parametersDocument is the on-disk shape of a parameters file.
type parametersDocument struct {
	Schema         string                              `json:"$schema"`
	ContentVersion string                              `json:"contentVersion"`
	Parameters     map[string]models.TemplateParameter `json:"parameters"`
}

type file struct {
	name string // relative to the folder
	data []byte
}

// Write serializes b and writes every file. Nothing is written when any
// document fails to serialize.
func (w *Writer) Write(ctx context.Context, b *extract.Bundle) (*models.BundleSummary, error) {
	logger := w.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	if w.Folder == "" {
		return nil, models.MissingParameter("fileFolder")
	}

	files, err := render(b)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(w.Folder, PolicyDir), 0o755); err != nil {
		return nil, fmt.Errorf("write: creating %s: %w", w.Folder, err)
	}

	workers := w.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range files {
		f := f
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return writeAtomic(filepath.Join(w.Folder, f.name), f.data)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &models.BundleSummary{
		Folder:    w.Folder,
		Resources: b.ResourceCounts(),
		Flags:     b.Flags,
	}
	for _, f := range files {
		summary.Files = append(summary.Files, f.name)
	}
	sort.Strings(summary.Files)
	if b.Master != nil {
		summary.Master = b.Master.FileName
	}
	logger.Info("bundle written", "stage", "write", "folder", w.Folder, "count", len(files))
	return summary, nil
}

// render serializes every document of b, templates first.
func render(b *extract.Bundle) ([]file, error) {
	var files []file
	seen := make(map[string]bool)
	claim := func(name string) error {
		if seen[name] {
			return fmt.Errorf("write: %s produced twice", name)
		}
		seen[name] = true
		return nil
	}
	add := func(name string, v interface{}) error {
		if err := claim(name); err != nil {
			return err
		}
		data, err := Marshal(v)
		if err != nil {
			return fmt.Errorf("write: encoding %s: %w", name, err)
		}
		files = append(files, file{name: name, data: data})
		return nil
	}

	for _, t := range b.Templates {
		if err := add(t.FileName, t); err != nil {
			return nil, err
		}
		for _, p := range t.PolicyFiles {
			name := filepath.Join(PolicyDir, filepath.FromSlash(p.Name))
			if err := claim(name); err != nil {
				return nil, err
			}
			files = append(files, file{name: name, data: []byte(p.Content)})
		}
	}
	if b.Parameters != nil {
		doc := parametersDocument{
			Schema:         b.Parameters.Schema,
			ContentVersion: b.Parameters.ContentVersion,
			Parameters:     b.Parameters.Parameters,
		}
		if err := add(b.Parameters.FileName, doc); err != nil {
			return nil, err
		}
	}
	if b.Master != nil {
		if err := add(b.Master.FileName, b.Master); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// Marshal encodes v as indented JSON. Expression brackets and quotes in
// template values are kept literal.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeAtomic writes data to a temporary file and renames it into place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write: creating %s: %w", filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write: %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write: renaming %s: %w", path, err)
	}
	return nil
}

// Run extracts from src and writes the bundle into folder.
func Run(ctx context.Context, src extract.Source, opts extract.Options, folder string, logger *slog.Logger) (*models.BundleSummary, error) {
	bundle, err := extract.Extract(ctx, src, opts, logger)
	if err != nil {
		return nil, err
	}
	w := &Writer{Folder: folder, Workers: opts.Workers, Logger: logger}
	return w.Write(ctx, bundle)
}
