// Package config loads the YAML configuration file slotdb's CLI reads
// at startup, mirroring the teacher's use of yaml.v3 for manifest files.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/slotdb/internal/database"
	"github.com/cuemby/slotdb/internal/log"
	"github.com/cuemby/slotdb/internal/raft"
	"github.com/cuemby/slotdb/internal/types"
)

// Raft configures the optional Raft-replicated durability layer.
type Raft struct {
	Enabled   bool     `yaml:"enabled"`
	NodeID    string   `yaml:"node_id"`
	BindAddr  string   `yaml:"bind_addr"`
	Peers     []string `yaml:"peers"`
	Bootstrap bool     `yaml:"bootstrap"`
}

// Config is the top-level shape of a slotdb YAML configuration file.
type Config struct {
	DataDir         string `yaml:"data_dir"`
	CatalogFileName string `yaml:"catalog_file_name"`
	WalFileName     string `yaml:"wal_file_name"`
	BufferPoolPages int    `yaml:"buffer_pool_pages"`
	LogLevel        string `yaml:"log_level"`
	LogJSON         bool   `yaml:"log_json"`
	Raft            Raft   `yaml:"raft"`
}

// Default returns the configuration used when no file is given: a
// single-node engine rooted at dataDir with no Raft replication.
func Default(dataDir string) Config {
	return Config{
		DataDir:         dataDir,
		CatalogFileName: "catalog.json",
		WalFileName:     "wal.log",
		BufferPoolPages: 256,
		LogLevel:        "info",
	}
}

// Load reads and parses a YAML config file at path, filling in defaults
// for any field the file leaves zero-valued.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read config %s: %v", types.ErrIO, path, err)
	}
	cfg := Default("")
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse config %s: %v", types.ErrIO, path, err)
	}
	if cfg.BufferPoolPages <= 0 {
		cfg.BufferPoolPages = 256
	}
	if cfg.CatalogFileName == "" {
		cfg.CatalogFileName = "catalog.json"
	}
	if cfg.WalFileName == "" {
		cfg.WalFileName = "wal.log"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg, nil
}

// DatabaseConfig projects Config down to the fields database.Open wants.
func (c Config) DatabaseConfig() database.Config {
	return database.Config{
		DataDir:         c.DataDir,
		CatalogFileName: c.CatalogFileName,
		WalFileName:     c.WalFileName,
		BufferPoolPages: c.BufferPoolPages,
	}
}

// LogConfig projects Config down to the fields log.Init wants.
func (c Config) LogConfig() log.Config {
	return log.Config{Level: log.Level(c.LogLevel), JSONOutput: c.LogJSON}
}

// RaftConfig projects Config down to the fields raft.Open wants.
func (c Config) RaftConfig() raft.Config {
	return raft.Config{
		DataDir:   c.DataDir,
		NodeID:    c.Raft.NodeID,
		BindAddr:  c.Raft.BindAddr,
		Bootstrap: c.Raft.Bootstrap,
		Peers:     c.Raft.Peers,
	}
}
