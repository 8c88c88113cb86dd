package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	s := Default()
	if s.ReportTitle != DefaultReportTitle {
		t.Errorf("title = %q", s.ReportTitle)
	}
	for name, text := range map[string]string{
		"weekly":  s.WeeklySummary,
		"monthly": s.MonthlySummary,
		"system":  s.ReportSystem,
		"closing": s.ReportClosing,
	} {
		if strings.TrimSpace(text) == "" {
			t.Errorf("%s prompt is empty", name)
		}
	}
	if !strings.Contains(s.ReportSystem, "lossy") || !strings.Contains(s.ReportSystem, "authoritative") {
		t.Errorf("system prompt lacks fidelity guidance: %q", s.ReportSystem)
	}
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, WeeklySummaryFile), []byte("  custom weekly\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, MonthlySummaryFile), []byte("   "), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir, "  My Review ")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.WeeklySummary != "custom weekly" {
		t.Errorf("weekly = %q", s.WeeklySummary)
	}
	if s.MonthlySummary != Default().MonthlySummary {
		t.Error("blank override should keep the default")
	}
	if s.ReportTitle != "My Review" {
		t.Errorf("title = %q", s.ReportTitle)
	}
}

func TestLoadMissingDirKeepsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent"), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.ReportSystem != Default().ReportSystem {
		t.Error("expected default system prompt")
	}
}
