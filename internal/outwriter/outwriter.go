// Package outwriter has output and writer logic.
package outwriter

import (
	"os"
	"time"

	"golang.org/x/term"

	"github.com/step6836/marketing-attribution/internal/contract"
	"github.com/step6836/marketing-attribution/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteAnalysis prints the result of an analysis run using the configured output format.
func (ow *OutWriter) WriteAnalysis(out schema.RunOutput, cfg *contract.Config, duration time.Duration) error {
	return PrintAnalysis(out, cfg, duration)
}

// WriteScenarios prints projected scenarios using the configured output format.
func (ow *OutWriter) WriteScenarios(scenarios []schema.Scenario, cfg *contract.Config, duration time.Duration) error {
	return PrintScenarios(scenarios, cfg, duration)
}

// WriteModels prints the model descriptions using the configured output format.
func (ow *OutWriter) WriteModels(models []schema.ModelDescription, cfg *contract.Config) error {
	return PrintModels(models, cfg)
}

// GetMaxNoteWidth calculates the maximum width of the diagnostic notes column
// based on terminal width.
func GetMaxNoteWidth(cfg *contract.Config) int {
	termWidth := cfg.Width
	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			// Fallback to conservative default if terminal size can't be detected
			termWidth = 80
		} else {
			termWidth = detectedWidth
		}
	}

	// Model + View + Cart + Accuracy + Fairness + Business + Method + Status with borders
	available := termWidth - 95
	if available < 15 {
		return 15
	}
	if available > 60 {
		return 60
	}
	return available
}
