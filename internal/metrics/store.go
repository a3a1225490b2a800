// Package metrics maintains the append-only chat analytics log: one row per
// chat attempt in a single-sheet XLSX workbook with a fixed 20-column schema.
package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/parallelrag/ragd/internal/hallucination"
	"github.com/parallelrag/ragd/internal/sysinfo"
	"github.com/parallelrag/ragd/internal/tokens"
)

const (
	sheetName    = "Metrics"
	workbookName = "metrics.xlsx"

	defaultUserID         = "anonymous"
	defaultConversationID = "unknown"
)

// Store appends analytics records to the metrics workbook. All appends to
// the same file are serialized; the read-modify-rename cycle is not safe
// under concurrent writers otherwise.
type Store struct {
	mu      sync.Mutex
	path    string
	sampler sysinfo.Sampler
	logger  *slog.Logger
}

// NewStore creates a Store writing to <dataDir>/metrics.xlsx. A nil sampler
// defaults to host sampling.
func NewStore(dataDir string, sampler sysinfo.Sampler) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	if sampler == nil {
		sampler = sysinfo.HostSampler{}
	}
	return &Store{
		path:    filepath.Join(dataDir, workbookName),
		sampler: sampler,
		logger:  slog.Default(),
	}, nil
}

// Path returns the workbook location on disk.
func (s *Store) Path() string {
	return s.path
}

// Append records one chat attempt. It samples the host, fills in estimated
// token counts and the hallucination classification, and durably appends the
// row. Append never fails: metrics collection must not affect the
// user-facing chat result, so every internal error is logged and swallowed.
func (s *Store) Append(in Input) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("metrics append panicked", "panic", r)
		}
	}()

	if err := s.append(in); err != nil {
		s.logger.Error("metrics append failed", "error", err)
	}
}

func (s *Store) append(in Input) error {
	snap := s.sampler.Sample()
	detection := hallucination.Classify(in.Prompt, in.Response)

	inputTokens := tokens.Estimate(in.Prompt)
	if in.Usage != nil && in.Usage.PromptTokens > 0 {
		inputTokens = in.Usage.PromptTokens
	}
	outputTokens := tokens.Estimate(in.Response)
	if in.Usage != nil && in.Usage.CompletionTokens > 0 {
		outputTokens = in.Usage.CompletionTokens
	}

	throughput := 0.0
	if in.LatencyMs > 0 {
		throughput = round2(float64(outputTokens) / (float64(in.LatencyMs) / 1000))
	}

	wb := s.openWorkbook()
	defer wb.Close()

	if err := s.ensureSheet(wb); err != nil {
		return err
	}

	rows, err := wb.GetRows(sheetName)
	if err != nil {
		return fmt.Errorf("counting rows: %w", err)
	}
	rowIdx := len(rows) + 1

	userID := in.UserID
	if userID == "" {
		userID = defaultUserID
	}
	conversationID := in.ConversationID
	if conversationID == "" {
		conversationID = defaultConversationID
	}
	status := 200
	if in.Error != "" {
		status = 500
	}

	var cpuCell, ramCell any
	if snap.CPUPercent != nil {
		cpuCell = round2(*snap.CPUPercent)
	}
	if snap.RAMMegabytes != nil {
		ramCell = round2(*snap.RAMMegabytes)
	}

	notes := ""
	if detection.Reason != hallucination.ReasonPass {
		notes = "Hallucination check: " + string(detection.Reason)
	}
	if in.Notes != "" {
		if notes != "" {
			notes += "; "
		}
		notes += in.Notes
	}

	row := []any{
		uuid.New().String(),
		time.Now().UTC().Format(time.RFC3339),
		userID,
		conversationID,
		in.Prompt,
		inputTokens,
		in.ModelID,
		status,
		in.LatencyMs,
		in.Response,
		outputTokens,
		in.Error,
		throughput,
		cpuCell,
		ramCell,
		detection.Flag,
		detection.Rate,
		len(in.Prompt),
		len(in.Response),
		notes,
	}

	cell, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return fmt.Errorf("resolving append cell: %w", err)
	}
	if err := wb.SetSheetRow(sheetName, cell, &row); err != nil {
		return fmt.Errorf("writing row %d: %w", rowIdx, err)
	}

	return s.saveAtomic(wb)
}

// openWorkbook opens the existing workbook, or starts a fresh one when the
// file is absent or unreadable. An unreadable workbook is not fatal to the
// append; the previous committed file stays on disk until the rename.
func (s *Store) openWorkbook() *excelize.File {
	if _, err := os.Stat(s.path); err == nil {
		wb, err := excelize.OpenFile(s.path)
		if err == nil {
			return wb
		}
		s.logger.Warn("metrics workbook unreadable, starting fresh", "path", s.path, "error", err)
	}
	return excelize.NewFile()
}

// ensureSheet makes sure the Metrics sheet exists and re-applies the column
// schema in memory before inserting. The file format keeps cell data across
// reopen but not our column bindings, so the header row is rewritten on
// every append; this is idempotent and never touches data rows.
func (s *Store) ensureSheet(wb *excelize.File) error {
	idx, err := wb.GetSheetIndex(sheetName)
	if err != nil {
		return fmt.Errorf("locating sheet: %w", err)
	}

	if idx == -1 {
		if _, err := wb.NewSheet(sheetName); err != nil {
			return fmt.Errorf("creating sheet: %w", err)
		}
		// Drop the default sheet so the workbook holds only Metrics.
		if di, _ := wb.GetSheetIndex("Sheet1"); di != -1 {
			wb.DeleteSheet("Sheet1")
		}
		s.styleHeader(wb)
	}

	headers := make([]any, len(columns))
	for i, c := range columns {
		headers[i] = c.Header
	}
	if err := wb.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return fmt.Errorf("writing header row: %w", err)
	}
	for i, c := range columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("resolving column %d: %w", i+1, err)
		}
		if err := wb.SetColWidth(sheetName, name, name, c.Width); err != nil {
			return fmt.Errorf("setting width for column %s: %w", name, err)
		}
	}
	return nil
}

// styleHeader applies the header row styling. Cosmetic only; styling errors
// are ignored because they are irrelevant to correctness.
func (s *Store) styleHeader(wb *excelize.File) {
	styleID, err := wb.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"2563EB"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		s.logger.Debug("creating header style failed", "error", err)
		return
	}
	if err := wb.SetRowStyle(sheetName, 1, 1, styleID); err != nil {
		s.logger.Debug("applying header style failed", "error", err)
	}
}

// saveAtomic serializes the workbook to a temp file in the same directory
// and renames it over the target. A crash mid-write abandons the temp file
// but leaves the previous committed workbook intact.
func (s *Store) saveAtomic(wb *excelize.File) error {
	tmp := s.path + ".tmp"
	// Write via an open handle: SaveAs rejects the .tmp extension outright.
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("writing temp workbook: %w", err)
	}
	if err := wb.Write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing temp workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("writing temp workbook: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("committing workbook: %w", err)
	}
	return nil
}

// Count returns the number of data rows currently committed. Used by
// operational tooling, never by the request path.
func (s *Store) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	wb, err := excelize.OpenFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("opening workbook: %w", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(sheetName)
	if err != nil {
		return 0, fmt.Errorf("reading rows: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return len(rows) - 1, nil
}

// Clear removes the workbook entirely. This is the collaborator-facing bulk
// reset; the request path only ever appends.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing workbook: %w", err)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
