package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/step6836/marketing-attribution/schema"
)

// Color variables for console output.
var (
	HighColor   = color.New(color.FgRed, color.Bold) // HighColor represents standard danger.
	MediumColor = color.New(color.FgYellow)          // MediumColor represents standard caution, not bold.
	LowColor    = color.New(color.FgCyan)            // LowColor represents informational / low-priority signal.
	HeaderColor = color.New(color.FgGreen, color.Bold)
)

// GetColorLabel returns a colored risk label for console output (table).
func GetColorLabel(risk schema.RiskLevel) string {
	text := string(risk)
	switch risk {
	case schema.HighRisk:
		return HighColor.Sprint(text)
	case schema.MediumRisk:
		return MediumColor.Sprint(text)
	default:
		return LowColor.Sprint(text)
	}
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. An empty path means os.Stdout.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Fatal %s: %v\n", msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "Warn %s: %v\n", msg, err)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for journey cache storage.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".attribution_cache.db"
	}
	return filepath.Join(homeDir, ".attribution_cache.db")
}

// GetAnalysisDBFilePath returns the path to the SQLite DB file for analysis storage.
func GetAnalysisDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".attribution_analysis.db"
	}
	return filepath.Join(homeDir, ".attribution_analysis.db")
}

// TruncateString truncates s to a maximum width with an ellipsis prefix.
// Requires maxWidth > 3 to leave room for the prefix and one character.
func TruncateString(s string, maxWidth int) string {
	runes := []rune(s)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return s
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
