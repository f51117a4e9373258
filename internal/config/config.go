// Package config handles the gradeport configuration file and the option
// defaults shared by the subcommands. Each command builds its own explicit
// option struct by merging these defaults with command-line overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/campusops/gradeport/internal/grades"
)

const (
	// AppDir is the directory name under the user config and data dirs.
	AppDir = "gradeport"

	configFileName = "config.yaml"

	defaultAPIURL        = "https://canvas.ubc.ca"
	defaultStudentStatus = "active"
	defaultRounding      = "half-up"
	defaultMaxGrade      = 100
)

const defaultConfigYAML = `# gradeport configuration
version: 1

# Base URL of the Canvas instance to download grades from.
api_url: https://canvas.ubc.ca

# Enrollment state to include when downloading student grades.
student_status: active

# Grading policy defaults. Command-line flags override these per run.
policy:
  max_grade: 100
  # half-up rounds .5 away from zero; half-even rounds .5 to even.
  rounding: half-up
  drop_threshold: 0
  drift_threshold: 0
  drop_missing_info: true
`

// PolicyDefaults are the grading-policy values commands start from.
type PolicyDefaults struct {
	MaxGrade        int      `yaml:"max_grade"`
	Rounding        string   `yaml:"rounding"`
	DropThreshold   float64  `yaml:"drop_threshold"`
	DriftThreshold  float64  `yaml:"drift_threshold"`
	DropMissingInfo *bool    `yaml:"drop_missing_info"`
	DropStudents    []string `yaml:"drop_students,omitempty"`
}

// FileConfig models config.yaml.
type FileConfig struct {
	Version       int            `yaml:"version"`
	APIURL        string         `yaml:"api_url"`
	StudentStatus string         `yaml:"student_status"`
	Policy        PolicyDefaults `yaml:"policy"`
}

// Config holds the runtime configuration for one invocation. It is built
// fresh per run and passed explicitly; there is no process-wide state.
type Config struct {
	// ConfigDir is where config.yaml lives.
	ConfigDir string
	// DataDir is where the log file lives.
	DataDir string

	File FileConfig
}

// Load reads (or seeds) the config file under the user config dir.
func Load() (*Config, error) {
	configRoot, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("config: locate user config dir: %w", err)
	}
	dataRoot, err := os.UserCacheDir()
	if err != nil {
		dataRoot = configRoot
	}
	return LoadFrom(filepath.Join(configRoot, AppDir), filepath.Join(dataRoot, AppDir))
}

// LoadFrom is Load with explicit directories, for tests.
func LoadFrom(configDir, dataDir string) (*Config, error) {
	cfg := &Config{
		ConfigDir: configDir,
		DataDir:   dataDir,
		File:      defaultFileConfig(),
	}
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("config: ensure config dir: %w", err)
	}
	if err := ensureConfigFile(cfg.Path()); err != nil {
		return nil, err
	}
	if err := cfg.loadFile(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the on-disk location of the config file.
func (c *Config) Path() string {
	return filepath.Join(c.ConfigDir, configFileName)
}

// LogPath returns the on-disk location of the log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "gradeport.log")
}

// APIURL returns the configured Canvas base URL.
func (c *Config) APIURL() string {
	return c.File.APIURL
}

// StudentStatus returns the enrollment state downloaded by default.
func (c *Config) StudentStatus() string {
	return c.File.StudentStatus
}

// PolicyConfig converts the file defaults into a policy-engine config.
func (c *Config) PolicyConfig() (grades.Config, error) {
	policy := grades.DefaultConfig()
	p := c.File.Policy
	if p.MaxGrade > 0 {
		policy.MaxGrade = p.MaxGrade
	}
	mode, err := grades.ParseRoundingMode(p.Rounding)
	if err != nil {
		return grades.Config{}, fmt.Errorf("config: %w", err)
	}
	policy.Rounding = mode
	policy.DropThreshold = p.DropThreshold
	policy.DriftThreshold = p.DriftThreshold
	if p.DropMissingInfo != nil {
		policy.DropMissingInfo = *p.DropMissingInfo
	}
	policy.DropStudents = append([]string(nil), p.DropStudents...)
	return policy, nil
}

func (c *Config) loadFile() error {
	path := c.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed FileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.File = parsed
	return nil
}

func defaultFileConfig() FileConfig {
	enabled := true
	return FileConfig{
		Version:       1,
		APIURL:        defaultAPIURL,
		StudentStatus: defaultStudentStatus,
		Policy: PolicyDefaults{
			MaxGrade:        defaultMaxGrade,
			Rounding:        defaultRounding,
			DropMissingInfo: &enabled,
		},
	}
}

func (fc *FileConfig) applyDefaults() {
	if fc.Version == 0 {
		fc.Version = 1
	}
	if fc.APIURL == "" {
		fc.APIURL = defaultAPIURL
	}
	if fc.StudentStatus == "" {
		fc.StudentStatus = defaultStudentStatus
	}
	if fc.Policy.MaxGrade == 0 {
		fc.Policy.MaxGrade = defaultMaxGrade
	}
	if fc.Policy.Rounding == "" {
		fc.Policy.Rounding = defaultRounding
	}
	if fc.Policy.DropMissingInfo == nil {
		enabled := true
		fc.Policy.DropMissingInfo = &enabled
	}
}

func (fc *FileConfig) normalize() {
	fc.APIURL = strings.TrimRight(strings.TrimSpace(fc.APIURL), "/")
	fc.StudentStatus = strings.ToLower(strings.TrimSpace(fc.StudentStatus))
	fc.Policy.Rounding = strings.ToLower(strings.TrimSpace(fc.Policy.Rounding))
}

func (fc *FileConfig) validate() error {
	if fc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if !strings.Contains(fc.APIURL, "://") {
		return fmt.Errorf("api_url must include a scheme, e.g. https://canvas.ubc.ca")
	}
	if fc.Policy.MaxGrade < 1 {
		return fmt.Errorf("policy.max_grade must be positive")
	}
	if _, err := grades.ParseRoundingMode(fc.Policy.Rounding); err != nil {
		return err
	}
	return nil
}

func ensureConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
