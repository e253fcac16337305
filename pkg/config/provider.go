package config

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	IsReadOnly() bool
	Close() error
}

// Defaults applied by ApplyDefaults
const (
	DefaultListenAddr   = "0.0.0.0"
	DefaultPort         = 8080
	DefaultPlausibleMin = 0.0
	DefaultPlausibleMax = 80.0
)

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Server     ServerData     `json:"server"`
	Archive    ArchiveData    `json:"archive,omitempty"`
	Estimation EstimationData `json:"estimation"`
}

// ServerData holds the HTTP listener configuration. TLS is enabled when both
// Cert and Key are set.
type ServerData struct {
	ListenAddr string `json:"listen_addr,omitempty"`
	Port       int    `json:"port,omitempty"`
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
}

// ArchiveData selects where estimation reports are kept. An empty Driver
// disables the archive.
type ArchiveData struct {
	Driver string `json:"driver,omitempty"` // "sqlite", "postgres" or "pgx"
	DSN    string `json:"dsn,omitempty"`
}

// Enabled reports whether an archive backend is configured
func (a ArchiveData) Enabled() bool {
	return a.Driver != ""
}

// EstimationData overrides the soft plausible range used to flag readings.
// Pointers distinguish "unset" from an explicit 0.
type EstimationData struct {
	PlausibleMin *float64 `json:"plausible_min,omitempty"`
	PlausibleMax *float64 `json:"plausible_max,omitempty"`
}

// Range returns the plausible range, falling back to the defaults
func (e EstimationData) Range() (lo, hi float64) {
	lo, hi = DefaultPlausibleMin, DefaultPlausibleMax
	if e.PlausibleMin != nil {
		lo = *e.PlausibleMin
	}
	if e.PlausibleMax != nil {
		hi = *e.PlausibleMax
	}
	return lo, hi
}

// ApplyDefaults fills in unset server fields
func (c *ConfigData) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
}

// Default returns the configuration used when no config file is given
func Default() *ConfigData {
	c := &ConfigData{}
	c.ApplyDefaults()
	return c
}
