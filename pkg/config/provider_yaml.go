package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	return parseYAML(cfgFile)
}

// IsReadOnly returns true since YAML files are read-only in this implementation
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

func parseYAML(data []byte) (*ConfigData, error) {
	var yamlConfig struct {
		Server     ServerYAML     `yaml:"server,omitempty"`
		Archive    ArchiveYAML    `yaml:"archive,omitempty"`
		Estimation EstimationYAML `yaml:"estimation,omitempty"`
	}

	if err := yaml.UnmarshalStrict(data, &yamlConfig); err != nil {
		return nil, fmt.Errorf("error parsing YAML config: %w", err)
	}

	config := &ConfigData{
		Server: ServerData{
			ListenAddr: yamlConfig.Server.ListenAddr,
			Port:       yamlConfig.Server.Port,
			Cert:       yamlConfig.Server.Cert,
			Key:        yamlConfig.Server.Key,
		},
		Archive: ArchiveData{
			Driver: yamlConfig.Archive.Driver,
			DSN:    yamlConfig.Archive.DSN,
		},
		Estimation: EstimationData{
			PlausibleMin: yamlConfig.Estimation.PlausibleMin,
			PlausibleMax: yamlConfig.Estimation.PlausibleMax,
		},
	}

	switch config.Archive.Driver {
	case "", "sqlite", "postgres", "pgx":
	default:
		return nil, fmt.Errorf("unsupported archive driver %q: use 'sqlite', 'postgres' or 'pgx'", config.Archive.Driver)
	}
	if config.Archive.Enabled() && config.Archive.DSN == "" {
		return nil, fmt.Errorf("archive.dsn is required when archive.driver is set")
	}

	if lo, hi := config.Estimation.Range(); lo >= hi {
		return nil, fmt.Errorf("estimation.plausible-min (%v) must be below estimation.plausible-max (%v)", lo, hi)
	}

	config.ApplyDefaults()
	return config, nil
}

// YAML-specific structs with YAML tags
type ServerYAML struct {
	ListenAddr string `yaml:"listen-addr,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
}

type ArchiveYAML struct {
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

type EstimationYAML struct {
	PlausibleMin *float64 `yaml:"plausible-min,omitempty"`
	PlausibleMax *float64 `yaml:"plausible-max,omitempty"`
}
