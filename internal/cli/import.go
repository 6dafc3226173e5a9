package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// ImportOptions holds options for the import command.
type ImportOptions struct {
	*RootOptions
}

// ImportResult is one collection's outcome.
type ImportResult struct {
	Collection string `json:"collection"`
	Imported   bool   `json:"imported"`
	Error      string `json:"error,omitempty"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import [collection...]",
		Short: "Replace collections with their dumps",
		Long: `Load each collection's dump and replace its stored rows, whether or not
the stored checksum is current. A dump that does not hash to the manifest
checksum is not imported.

With no arguments every collection in the manifest is imported. Exits 1 if
any collection could not be imported.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts, args)
		},
	}

	return cmd
}

func runImport(cmd *cobra.Command, opts *ImportOptions, collections []string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	e, err := openEnv(opts.RootOptions, cmd.ErrOrStderr(), prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer e.Close()

	collections, err = resolveCollections(e.manifest, collections)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	results := make([]ImportResult, 0, len(collections))
	failed := 0
	for _, c := range collections {
		sum, _ := e.manifest.Checksum(c)
		formatter.VerboseLog("importing %s (expected %s)", c, sum)

		ok, err := e.importer.Import(ctx, c, sum)
		r := ImportResult{Collection: c, Imported: ok}
		switch {
		case err != nil:
			r.Error = err.Error()
		case !ok:
			r.Error = "dump does not match manifest checksum"
		}
		if !r.Imported {
			failed++
		}
		results = append(results, r)
	}

	if opts.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Imported {
				fmt.Fprintf(formatter.Writer, "%-24s imported\n", r.Collection)
			} else {
				fmt.Fprintf(formatter.Writer, "%-24s failed: %s\n", r.Collection, r.Error)
			}
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d collections failed to import", failed, len(results)))
	}
	return nil
}
