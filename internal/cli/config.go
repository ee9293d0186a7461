package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/graphfill/internal/paths"
	"github.com/mesh-intelligence/graphfill/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"

	cfgKeyBackend      = "backend"
	cfgKeyDataDir      = "data_dir"
	cfgKeyCatalog      = "catalog"
	cfgKeySchema       = "schema"
	cfgKeyKeyGenerator = "key_generator"
	cfgKeyLogLevel     = "log_level"

	defaultCatalogFile = "catalog.yaml"
	defaultSchemaFile  = "schema.sql"
)

// configFile holds the structure init writes to config.yaml.
type configFile struct {
	Backend      string `yaml:"backend"`
	DataDir      string `yaml:"data_dir,omitempty"`
	Catalog      string `yaml:"catalog"`
	Schema       string `yaml:"schema,omitempty"`
	KeyGenerator string `yaml:"key_generator"`
	LogLevel     string `yaml:"log_level,omitempty"`
}

func resolveConfigDir(flag string) (string, error) {
	dir, err := paths.ResolveConfigDir(flag)
	if err != nil {
		return "", sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	return dir, nil
}

// loadConfig reads config.yaml from configDir using Viper. A missing file
// is not an error; defaults apply. Relative catalog and schema paths are
// taken relative to configDir, and the data directory follows
// paths.ResolveDataDir with dataDirFlag as the flag value.
func loadConfig(configDir, dataDirFlag string) (types.Config, error) {
	v := viper.New()
	v.SetDefault(cfgKeyBackend, types.BackendSQLite)
	v.SetDefault(cfgKeyCatalog, defaultCatalogFile)
	v.SetDefault(cfgKeyKeyGenerator, types.KeyGeneratorUUID)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	if err := v.BindEnv(cfgKeyLogLevel, "GRAPHFILL_LOG_LEVEL"); err != nil {
		return types.Config{}, sysError(err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return types.Config{}, userError(fmt.Errorf("read config: %w", err))
		}
	}

	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, userError(fmt.Errorf("decode config: %w", err))
	}

	dataDir, err := paths.ResolveDataDir(dataDirFlag, cfg.DataDir)
	if err != nil {
		return types.Config{}, sysError(fmt.Errorf("resolve data dir: %w", err))
	}
	cfg.DataDir = dataDir
	cfg.CatalogFile = paths.ResolveFile(configDir, cfg.CatalogFile)
	cfg.SchemaFile = paths.ResolveFile(configDir, cfg.SchemaFile)
	return cfg, nil
}

// writeConfigIfMissing creates config.yaml in configDir unless one exists.
// It reports whether it wrote the file.
func writeConfigIfMissing(configDir string, cfg configFile) (bool, error) {
	path := filepath.Join(configDir, configFileExt)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# graphfill configuration. Relative paths are relative to this directory.\n")
	return true, os.WriteFile(path, append(header, data...), 0o644)
}

// writeFileIfMissing writes data to path unless the file exists.
func writeFileIfMissing(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, err
	}
	return true, os.WriteFile(path, data, 0o644)
}
