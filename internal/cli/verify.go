package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/contentq/internal/integrity"
	"github.com/roach88/contentq/internal/manifest"
)

// VerifyOptions holds options for the verify command.
type VerifyOptions struct {
	*RootOptions

	// Registry receives verification metrics. Nil uses a registry private
	// to the invocation.
	Registry prometheus.Registerer
}

// VerifyResult is one collection's outcome.
type VerifyResult struct {
	Collection string `json:"collection"`
	Status     string `json:"status"`
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify [collection...]",
		Short: "Verify collections against their manifest checksums",
		Long: `Verify collections against their manifest checksums, re-importing the
dump of any collection whose stored checksum is stale.

With no arguments every collection in the manifest is verified. Exits 1 if
any collection ends up invalid.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts, args)
		},
	}

	return cmd
}

func runVerify(cmd *cobra.Command, opts *VerifyOptions, collections []string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	e, err := openEnv(opts.RootOptions, cmd.ErrOrStderr(), reg)
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

	results := make([]VerifyResult, 0, len(collections))
	failed := 0
	for _, c := range collections {
		formatter.VerboseLog("verifying %s", c)
		status, err := e.gate.Verify(ctx, c)
		if err != nil {
			return WrapExitError(ExitFailure, "verification interrupted", err)
		}
		if status != integrity.StatusValid {
			failed++
		}
		results = append(results, VerifyResult{Collection: c, Status: status.String()})
	}

	if opts.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			fmt.Fprintf(formatter.Writer, "%-24s %s\n", r.Collection, r.Status)
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d collections failed verification", failed, len(results)))
	}
	return nil
}

// resolveCollections defaults to every manifest collection and rejects
// names the manifest does not know.
func resolveCollections(m *manifest.Manifest, names []string) ([]string, error) {
	if len(names) == 0 {
		return m.Collections(), nil
	}
	for _, n := range names {
		if _, ok := m.Lookup(n); !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown collection %q", n))
		}
	}
	return names, nil
}
