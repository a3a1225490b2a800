// Package ingest converts source documents into plain-text corpus files for
// the external retrieval service to index. PDFs are text-extracted; plain
// text and markdown are copied through.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// FileResult is the outcome for a single source file.
type FileResult struct {
	Source string
	Output string
	Err    error
}

// Extractor writes extracted text into a corpus directory.
type Extractor struct {
	corpusDir   string
	concurrency int
	logger      *slog.Logger
}

// NewExtractor creates an Extractor. If concurrency is <= 0 it defaults to 4.
func NewExtractor(corpusDir string, concurrency int) *Extractor {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Extractor{
		corpusDir:   corpusDir,
		concurrency: concurrency,
		logger:      slog.Default(),
	}
}

// IngestFiles extracts each source file concurrently and writes one .txt per
// source into the corpus directory. A failed file is reported in its result
// and does not stop the rest; the returned error covers ctx cancellation and
// corpus directory setup only.
func (e *Extractor) IngestFiles(ctx context.Context, paths []string) ([]FileResult, error) {
	if err := os.MkdirAll(e.corpusDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating corpus directory: %w", err)
	}

	results := make([]FileResult, len(paths))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res := e.ingestOne(path)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			if res.Err != nil {
				e.logger.Warn("ingest failed", "source", path, "error", res.Err)
			} else {
				e.logger.Info("ingested", "source", path, "output", res.Output)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (e *Extractor) ingestOne(path string) FileResult {
	res := FileResult{Source: path}

	text, err := extractText(path)
	if err != nil {
		res.Err = err
		return res
	}
	if strings.TrimSpace(text) == "" {
		res.Err = fmt.Errorf("no extractable text in %s", path)
		return res
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(e.corpusDir, base+".txt")
	if err := os.WriteFile(out, []byte(text), 0o644); err != nil {
		res.Err = fmt.Errorf("writing corpus file: %w", err)
		return res
	}

	res.Output = out
	return res
}

func extractText(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(path)
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("unsupported file type %s", filepath.Ext(path))
	}
}

func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return buf.String(), nil
}
