package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type sample struct {
	Name    string        `yaml:"name" toml:"name"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
	Port    int           `yaml:"port" toml:"port"`
}

func (s *sample) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadYAMLExpandsEnv(t *testing.T) {
	t.Setenv("CHRONICLE_TEST_NAME", "journal")
	path := writeFile(t, "c.yaml", "name: ${CHRONICLE_TEST_NAME}\ntimeout: 3s\nport: 9000\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "journal" || s.Timeout != 3*time.Second || s.Port != 9000 {
		t.Errorf("got %+v", s)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "c.toml", "name = \"journal\"\ntimeout = \"250ms\"\nport = 7000\n")

	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "journal" || s.Timeout != 250*time.Millisecond || s.Port != 7000 {
		t.Errorf("got %+v", s)
	}
}

func TestLoadRunsValidator(t *testing.T) {
	path := writeFile(t, "c.yaml", "port: 1\n")

	var s sample
	err := Load(path, &s)
	if err == nil || !strings.Contains(err.Error(), "name is required") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	def := writeFile(t, "default.yaml", "name: fallback\n")

	var s sample
	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"), def, &s); err != nil {
		t.Fatalf("LoadWithDefaults: %v", err)
	}
	if s.Name != "fallback" {
		t.Errorf("name = %q", s.Name)
	}

	if err := LoadWithDefaults(filepath.Join(t.TempDir(), "missing.yaml"), "", &s); err == nil {
		t.Error("expected error when neither file exists")
	}
}
