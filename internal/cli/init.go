package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/graphfill/internal/fixture"
	"github.com/mesh-intelligence/graphfill/internal/sqlite"
	"github.com/mesh-intelligence/graphfill/pkg/types"
)

func newInitCmd(a *app) *cobra.Command {
	var sample bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize graphfill configuration and storage",
		Long: `Create the configuration and data directories, write config.yaml if it
is missing, and create the database. With --sample, also write a sample
blog catalog and its schema to the configuration directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runInit(cmd, sample)
		},
	}
	cmd.Flags().BoolVar(&sample, "sample", false, "write the sample catalog.yaml and schema.sql")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, sample bool) error {
	if err := os.MkdirAll(a.configDir, 0o755); err != nil {
		return sysError(fmt.Errorf("create config directory: %w", err))
	}

	cfg := configFile{
		Backend:      types.BackendSQLite,
		Catalog:      defaultCatalogFile,
		KeyGenerator: a.config.KeyGenerator,
	}
	if sample {
		cfg.Schema = defaultSchemaFile
		catalogPath := filepath.Join(a.configDir, defaultCatalogFile)
		if _, err := writeFileIfMissing(catalogPath, fixture.CatalogYAML); err != nil {
			return sysError(fmt.Errorf("write sample catalog: %w", err))
		}
		schemaPath := filepath.Join(a.configDir, defaultSchemaFile)
		if _, err := writeFileIfMissing(schemaPath, []byte(fixture.SchemaSQL)); err != nil {
			return sysError(fmt.Errorf("write sample schema: %w", err))
		}
		if a.config.SchemaFile == "" {
			a.config.SchemaFile = schemaPath
		}
	}
	if _, err := writeConfigIfMissing(a.configDir, cfg); err != nil {
		return sysError(fmt.Errorf("write config: %w", err))
	}

	backend := sqlite.NewBackend(nil, sqlite.WithLogger(a.logger))
	if err := backend.Attach(a.config); err != nil {
		return sysError(fmt.Errorf("initialize storage: %w", err))
	}
	if err := backend.Detach(); err != nil {
		return sysError(fmt.Errorf("finalize storage: %w", err))
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "graphfill initialized successfully")
	fmt.Fprintln(out, "  config:", a.configDir)
	fmt.Fprintln(out, "  data:  ", a.config.DataDir)
	return nil
}
