package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/openkraft/keeper/internal/domain"
)

// FileName is the project configuration file read from the project root.
const FileName = ".keeper.yaml"

// Environment variables that override file values.
const (
	EnvAPIBase   = "KEEPER_API_BASE"
	EnvDryRun    = "KEEPER_DRY_RUN"
	EnvChannels  = "KEEPER_CHANNELS"
	EnvLocalOnly = "KEEPER_LOCAL_ONLY"
)

// YAMLLoader implements domain.ConfigLoader by reading .keeper.yaml and
// applying KEEPER_* environment overrides.
type YAMLLoader struct {
	getenv func(string) string
}

func New() *YAMLLoader { return &YAMLLoader{getenv: os.Getenv} }

// WithEnv replaces the environment lookup.
func (l *YAMLLoader) WithEnv(getenv func(string) string) *YAMLLoader {
	l.getenv = getenv
	return l
}

// Load reads .keeper.yaml from projectPath, validates it and applies
// environment overrides. A missing file yields DefaultConfig.
func (l *YAMLLoader) Load(projectPath string) (domain.ProjectConfig, error) {
	cfg, err := ReadFile(projectPath)
	if err != nil {
		return domain.ProjectConfig{}, err
	}
	if err := l.applyEnv(&cfg); err != nil {
		return domain.ProjectConfig{}, err
	}
	return cfg, nil
}

// ReadFile parses and validates the file alone, without environment
// overrides. It is what Save callers should start from.
func ReadFile(projectPath string) (domain.ProjectConfig, error) {
	data, err := os.ReadFile(filepath.Join(projectPath, FileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.DefaultConfig(), nil
		}
		return domain.ProjectConfig{}, err
	}

	var cfg domain.ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	if err := cfg.Validate(); err != nil {
		return domain.ProjectConfig{}, fmt.Errorf("invalid %s: %w", FileName, err)
	}
	return cfg, nil
}

func (l *YAMLLoader) applyEnv(cfg *domain.ProjectConfig) error {
	if v := l.getenv(EnvAPIBase); v != "" {
		cfg.Maintenance.APIBase = v
	}
	if v := l.getenv(EnvDryRun); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvDryRun, v, err)
		}
		cfg.Maintenance.DryRun = b
	}
	if v := l.getenv(EnvChannels); v != "" {
		cfg.Maintenance.Channels = SplitList(v)
	}
	if v := l.getenv(EnvLocalOnly); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s=%q: %w", EnvLocalOnly, v, err)
		}
		cfg.Router.LocalOnly = b
	}
	return nil
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Save validates cfg and writes it to projectPath/.keeper.yaml.
func Save(projectPath string, cfg domain.ProjectConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", FileName, err)
	}
	if err := os.WriteFile(filepath.Join(projectPath, FileName), data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", FileName, err)
	}
	return nil
}
