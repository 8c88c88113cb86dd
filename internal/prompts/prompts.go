// Package prompts holds the instruction texts sent to the language model.
// Built-in defaults are embedded; a directory may override any of them.
package prompts

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

//go:embed defaults/*.md
var defaults embed.FS

// DefaultReportTitle prefixes every generated report.
const DefaultReportTitle = "Journal Insights"

// File names looked up in the defaults and in an override directory.
const (
	WeeklySummaryFile  = "weekly_summary.md"
	MonthlySummaryFile = "monthly_summary.md"
	ReportSystemFile   = "report_system.md"
	ReportClosingFile  = "report_closing.md"
)

// Set is the full collection of prompt texts. It is built once at startup
// and shared read-only.
type Set struct {
	WeeklySummary  string
	MonthlySummary string
	ReportSystem   string
	ReportClosing  string
	ReportTitle    string
}

// Default returns the embedded prompt set.
func Default() *Set {
	s, err := Load("", "")
	if err != nil {
		panic(fmt.Sprintf("prompts: embedded defaults: %v", err))
	}
	return s
}

// Load builds a Set from the embedded defaults, replacing each text with the
// file of the same name in dir when present. An empty dir or title keeps the
// defaults.
func Load(dir, title string) (*Set, error) {
	s := &Set{ReportTitle: DefaultReportTitle}
	if t := strings.TrimSpace(title); t != "" {
		s.ReportTitle = t
	}
	targets := map[string]*string{
		WeeklySummaryFile:  &s.WeeklySummary,
		MonthlySummaryFile: &s.MonthlySummary,
		ReportSystemFile:   &s.ReportSystem,
		ReportClosingFile:  &s.ReportClosing,
	}
	for name, dst := range targets {
		text, err := read(dir, name)
		if err != nil {
			return nil, err
		}
		*dst = text
	}
	return s, nil
}

func read(dir, name string) (string, error) {
	if dir != "" {
		data, err := os.ReadFile(filepath.Join(dir, name))
		switch {
		case err == nil:
			if text := strings.TrimSpace(string(data)); text != "" {
				return text, nil
			}
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("prompts: read %s: %w", name, err)
		}
	}
	data, err := defaults.ReadFile("defaults/" + name)
	if err != nil {
		return "", fmt.Errorf("prompts: default %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}
