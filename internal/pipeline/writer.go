package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/globicephala/sdm/internal/dataset"
	"github.com/globicephala/sdm/internal/domain"
)

// FileWriter implements ResultWriter on a local output directory:
// one augmented CSV per season plus a JSON run report.
type FileWriter struct {
	outDir string
}

// NewFileWriter creates a writer rooted at outDir, which is created on
// demand.
func NewFileWriter(outDir string) *FileWriter {
	return &FileWriter{outDir: outDir}
}

func (w *FileWriter) WriteAugmentedGrid(season domain.Season, grid *dataset.Frame) (string, error) {
	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.outDir, fmt.Sprintf("predictions_%s.csv", season))
	if err := dataset.WriteGrid(path, grid); err != nil {
		return "", err
	}
	return path, nil
}

func (w *FileWriter) WriteReport(report *Report) (string, error) {
	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.outDir, "model_report.json")

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
