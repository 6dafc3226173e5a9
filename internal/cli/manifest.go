package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/contentq/internal/store"
)

// Manifest entry states relative to the database.
const (
	StateCurrent = "current" // stored checksum equals the manifest's
	StateStale   = "stale"   // stored checksum differs
	StateMissing = "missing" // collection never imported
)

// ManifestOptions holds options for the manifest command.
type ManifestOptions struct {
	*RootOptions
}

// ManifestEntry is one row of the manifest listing.
type ManifestEntry struct {
	Collection string `json:"collection"`
	Table      string `json:"table"`
	Checksum   string `json:"checksum"`
	Stored     string `json:"stored,omitempty"`
	Rows       int64  `json:"rows"`
	State      string `json:"state"`
}

// NewManifestCommand creates the manifest command.
func NewManifestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ManifestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "List manifest collections and their stored state",
		Long: `List every manifest collection with its table, expected checksum and the
checksum currently stored in the database. Nothing is verified or imported.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runManifest(cmd, opts)
		},
	}

	return cmd
}

func runManifest(cmd *cobra.Command, opts *ManifestOptions) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	m, err := loadManifest(cfg)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	infos, err := st.Collections(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read stored collections", err)
	}
	stored := make(map[string]store.Info, len(infos))
	for _, info := range infos {
		stored[info.Collection] = info
	}

	entries := make([]ManifestEntry, 0, len(m.Collections()))
	for _, c := range m.Collections() {
		e, _ := m.Lookup(c)
		entry := ManifestEntry{Collection: c, Table: e.Table, Checksum: e.Checksum, State: StateMissing}
		if info, ok := stored[c]; ok {
			entry.Stored = info.Checksum
			entry.Rows = info.RowCount
			entry.State = StateStale
			if info.Checksum == e.Checksum {
				entry.State = StateCurrent
			}
		}
		entries = append(entries, entry)
	}

	if opts.Format == "json" {
		return formatter.Success(entries)
	}
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "%-24s %-24s %-8s %6d  %s\n", e.Collection, e.Table, e.State, e.Rows, e.Checksum)
	}
	return nil
}
