package stats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/kecskemeti/arm-hand-ai/internal/model"
)

const diagnosticsFile = "diagnostics.csv"

// DiagnosticsWriter appends one CSV row per island and tick. A nil writer
// discards rows, so callers need not check whether output is enabled.
type DiagnosticsWriter struct {
	file          *os.File
	headerWritten bool
}

// NewDiagnosticsWriter creates <dir>/diagnostics.csv. It returns nil when dir
// is empty.
func NewDiagnosticsWriter(dir string) (*DiagnosticsWriter, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.Create(filepath.Join(dir, diagnosticsFile))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", diagnosticsFile, err)
	}
	return &DiagnosticsWriter{file: f}, nil
}

func (w *DiagnosticsWriter) Write(rows ...model.GenerationDiagnostics) error {
	if w == nil || len(rows) == 0 {
		return nil
	}
	if !w.headerWritten {
		if err := gocsv.Marshal(rows, w.file); err != nil {
			return fmt.Errorf("writing diagnostics: %w", err)
		}
		w.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(rows, w.file); err != nil {
		return fmt.Errorf("writing diagnostics: %w", err)
	}
	return nil
}

func (w *DiagnosticsWriter) Path() string {
	if w == nil {
		return ""
	}
	return w.file.Name()
}

func (w *DiagnosticsWriter) Close() error {
	if w == nil {
		return nil
	}
	return w.file.Close()
}

func ReadDiagnostics(path string) ([]model.GenerationDiagnostics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []model.GenerationDiagnostics
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("reading diagnostics: %w", err)
	}
	return rows, nil
}

type StepScore struct {
	Step  int     `csv:"step"`
	Score float64 `csv:"score"`
}

// WriteStepScores writes an evaluation trace as step,score rows.
func WriteStepScores(w io.Writer, scores []float64) error {
	rows := make([]StepScore, len(scores))
	for i, score := range scores {
		rows[i] = StepScore{Step: i, Score: score}
	}
	return gocsv.Marshal(rows, w)
}
