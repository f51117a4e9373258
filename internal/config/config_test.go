package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/campusops/gradeport/internal/grades"
)

func TestLoadFromSeedsDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	c, err := LoadFrom(filepath.Join(dir, "config"), filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}
	if _, err := os.Stat(c.Path()); err != nil {
		t.Fatalf("default config file not seeded: %v", err)
	}
	if c.APIURL() != "https://canvas.ubc.ca" {
		t.Fatalf("wrong default api url: %q", c.APIURL())
	}
	if c.StudentStatus() != "active" {
		t.Fatalf("wrong default student status: %q", c.StudentStatus())
	}
	policy, err := c.PolicyConfig()
	if err != nil {
		t.Fatal(err)
	}
	if policy.MaxGrade != 100 || policy.Rounding != grades.RoundHalfUp || !policy.DropMissingInfo {
		t.Fatalf("wrong policy defaults: %+v", policy)
	}
}

func TestLoadFromParsesYaml(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}
	configYAML := `version: 1
api_url: https://canvas.example.edu/
student_status: Completed
policy:
  max_grade: 110
  rounding: HALF-EVEN
  drop_threshold: 5
  drop_missing_info: false
  drop_students:
    - "14391238"
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFrom(configDir, filepath.Join(dir, "data"))
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}
	if c.APIURL() != "https://canvas.example.edu" {
		t.Fatalf("trailing slash not trimmed: %q", c.APIURL())
	}
	if c.StudentStatus() != "completed" {
		t.Fatalf("status not normalized: %q", c.StudentStatus())
	}
	policy, err := c.PolicyConfig()
	if err != nil {
		t.Fatal(err)
	}
	if policy.MaxGrade != 110 || policy.Rounding != grades.RoundHalfEven {
		t.Fatalf("policy not parsed: %+v", policy)
	}
	if policy.DropMissingInfo {
		t.Fatal("drop_missing_info=false ignored")
	}
	if len(policy.DropStudents) != 1 || policy.DropStudents[0] != "14391238" {
		t.Fatalf("drop_students lost: %v", policy.DropStudents)
	}
}

func TestLoadFromRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatal(err)
	}
	bad := `version: 1
api_url: canvas.ubc.ca
`
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(bad), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(configDir, filepath.Join(dir, "data")); err == nil {
		t.Fatal("expected validation error for schemeless api_url")
	}
}
