package io

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/williampepple1/post-crawler/pkg/models"
)

// RunOutput is what one run produced, before merging
type RunOutput struct {
	RunID    string                   `json:"run_id"`
	Posts    []models.ExtractedRecord `json:"posts"`
	Failures []models.CrawlFailure    `json:"failures"`
}

// ResultWriter writes the output of a single run to a file
type ResultWriter struct {
	OutputFile string
}

// NewResultWriter creates a new result writer
func NewResultWriter(outputFile string) *ResultWriter {
	return &ResultWriter{
		OutputFile: outputFile,
	}
}

// SaveToFile writes the fresh records and failures as indented JSON
func (w *ResultWriter) SaveToFile(runID string, fresh models.ResultSet, failures []models.CrawlFailure) error {
	out := RunOutput{
		RunID:    runID,
		Posts:    fresh.Posts,
		Failures: failures,
	}
	if out.Posts == nil {
		out.Posts = []models.ExtractedRecord{}
	}
	if out.Failures == nil {
		out.Failures = []models.CrawlFailure{}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(w.OutputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(w.OutputFile, data, 0644)
}
