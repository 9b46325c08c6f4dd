package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds project-level settings loaded from pymerge.yml.
type ProjectConfig struct {
	BacklogDir   string `yaml:"backlogDir,omitempty"`   // where phase files are scanned
	BackupSuffix string `yaml:"backupSuffix,omitempty"` // appended before overwriting a target
	Concurrency  int    `yaml:"concurrency,omitempty"`  // parallel merges in batch mode
	HistoryDB    string `yaml:"historyDb,omitempty"`    // kuzu database path ("" = in-memory)
	Verbose      bool   `yaml:"verbose,omitempty"`
}

// Defaults applied to zero-value fields after loading.
const (
	DefaultBacklogDir   = "backlog"
	DefaultBackupSuffix = ".backup"
	DefaultConcurrency  = 4
)

// Load attempts to read pymerge.yml or pymerge.yaml from the given
// directory. Returns a default config (not an error) if no config file
// exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"pymerge.yml", "pymerge.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		cfg.applyDefaults()
		return &cfg, nil
	}
	cfg := &ProjectConfig{}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *ProjectConfig) applyDefaults() {
	if c.BacklogDir == "" {
		c.BacklogDir = DefaultBacklogDir
	}
	if c.BackupSuffix == "" {
		c.BackupSuffix = DefaultBackupSuffix
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
}
