package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

type fillOptions struct {
	typeName string
	file     string
	path     string
	dryRun   bool
}

// fillResult is the --json output of fill.
type fillResult struct {
	Roots     []string `json:"roots"`
	Persisted int      `json:"persisted"`
	Destroyed int      `json:"destroyed"`
	Callbacks int      `json:"callbacks"`
	DryRun    bool     `json:"dry_run"`
}

func newFillCmd(a *app) *cobra.Command {
	var opts fillOptions
	cmd := &cobra.Command{
		Use:   "fill --type TYPE [--file FILE] [--path PATH]",
		Short: "Fill records from a JSON document",
		Long: `Read a JSON object, or an array of objects, and fill one root entity of
--type per object. Nested objects and arrays under relation keys fill the
related records. All changes are written in one transaction.

The document is read from --file, or from stdin when --file is empty or
"-". --path selects a sub-document with GJSON path syntax.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFill(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.typeName, "type", "t", "", "entity type of the root objects (required)")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "JSON input file (default: stdin)")
	cmd.Flags().StringVar(&opts.path, "path", "", "GJSON path of the sub-document to fill")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "resolve and report without writing")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func (a *app) runFill(cmd *cobra.Command, opts fillOptions) error {
	raw, err := readInput(cmd, opts.file)
	if err != nil {
		return err
	}
	docs, err := decodeDocuments(raw, opts.path)
	if err != nil {
		return userError(err)
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.close()

	f, err := a.session(s)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	result := fillResult{DryRun: opts.dryRun}
	for i, doc := range docs {
		e, err := f.Fill(ctx, opts.typeName, doc)
		if err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
		if e != nil {
			result.Roots = append(result.Roots, e.Hash())
		}
	}

	pending := f.UnitOfWork().Pending()
	result.Persisted = pending.Persists
	result.Destroyed = pending.Destroys
	result.Callbacks = pending.Callbacks
	if !opts.dryRun {
		if err := f.Flush(ctx); err != nil {
			return sysError(err)
		}
	}

	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	for _, root := range result.Roots {
		fmt.Fprintln(out, root)
	}
	verb := "wrote"
	if opts.dryRun {
		verb = "would write"
	}
	fmt.Fprintf(out, "%s %d records, deleted %d, %d join updates\n",
		verb, result.Persisted, result.Destroyed, result.Callbacks)
	return nil
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "" || file == "-" {
		raw, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, sysError(fmt.Errorf("read stdin: %w", err))
		}
		return raw, nil
	}
	raw, err := os.ReadFile(file)
	if err != nil {
		return nil, userError(fmt.Errorf("read input: %w", err))
	}
	return raw, nil
}

// decodeDocuments selects path from raw, when set, and decodes the result
// into one data map per root object. Numbers decode as json.Number so
// integer keys keep their exact value.
func decodeDocuments(raw []byte, path string) ([]map[string]any, error) {
	if path != "" {
		res := gjson.GetBytes(raw, path)
		if !res.Exists() {
			return nil, fmt.Errorf("path %q matches nothing", path)
		}
		raw = []byte(res.Raw)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}

	switch v := doc.(type) {
	case map[string]any:
		return []map[string]any{v}, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: item %d is %T, want an object", types.ErrMapping, i, item)
			}
			out = append(out, m)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: document is %T, want an object or an array of objects", types.ErrMapping, doc)
	}
}
