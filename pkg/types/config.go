package types

import "errors"

// Config holds backend selection and session parameters. SchemaFile runs on
// every attach, so its statements must be idempotent.
type Config struct {
	Backend      string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir      string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	CatalogFile  string `json:"catalog" yaml:"catalog" mapstructure:"catalog"`
	SchemaFile   string `json:"schema" yaml:"schema" mapstructure:"schema"`
	KeyGenerator string `json:"key_generator" yaml:"key_generator" mapstructure:"key_generator"`
	LogLevel     string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
)

// Supported key generator names. An empty name selects KeyGeneratorUUID.
const (
	KeyGeneratorUUID     = "uuid"
	KeyGeneratorULID     = "ulid"
	KeyGeneratorSequence = "sequence"
)

// Config validation errors.
var (
	ErrBackendEmpty        = errors.New("backend must not be empty")
	ErrBackendUnknown      = errors.New("unknown backend")
	ErrKeyGeneratorUnknown = errors.New("unknown key generator")
	ErrLogLevelUnknown     = errors.New("unknown log level")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
}

var knownKeyGenerators = map[string]bool{
	"":                   true,
	KeyGeneratorUUID:     true,
	KeyGeneratorULID:     true,
	KeyGeneratorSequence: true,
}

var knownLogLevels = map[string]bool{
	"": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if !knownKeyGenerators[c.KeyGenerator] {
		return ErrKeyGeneratorUnknown
	}
	if !knownLogLevels[c.LogLevel] {
		return ErrLogLevelUnknown
	}
	return nil
}
