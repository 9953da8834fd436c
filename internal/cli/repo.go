package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modelkit/modelkit/internal/codec"
	"github.com/modelkit/modelkit/internal/repo"
	"github.com/modelkit/modelkit/internal/resource"
)

// SaveResult is the JSON shape of one saved document.
type SaveResult struct {
	URI     string `json:"uri"`
	Hash    string `json:"hash"`
	Changed bool   `json:"changed"`
}

// NewRepoCommand creates the repo command group.
func NewRepoCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage the document repository",
		Long: `Store and retrieve documents in a content-addressed SQLite repository.

Each save snapshots the document under its content hash and moves the
URI's head pointer; saving unchanged content is a no-op.`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "modelkit.db", "repository database file")

	cmd.AddCommand(newRepoSaveCommand(rootOpts, &dbPath))
	cmd.AddCommand(newRepoLoadCommand(rootOpts, &dbPath))
	cmd.AddCommand(newRepoListCommand(rootOpts, &dbPath))
	return cmd
}

func newRepoSaveCommand(rootOpts *RootOptions, dbPath *string) *cobra.Command {
	var metamodelPath string

	cmd := &cobra.Command{
		Use:           "save <document>...",
		Short:         "Snapshot documents into the repository",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepoSave(rootOpts, *dbPath, args, metamodelPath, cmd)
		},
	}
	cmd.Flags().StringVarP(&metamodelPath, "metamodel", "m", "", "CUE metamodel to register before decoding")
	return cmd
}

func runRepoSave(opts *RootOptions, dbPath string, paths []string, metamodelPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	r, err := repo.Open(dbPath)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}
	defer r.Close()

	set := resource.NewSet(nil)
	if err := registerMetamodel(set, metamodelPath); err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	var results []SaveResult
	for _, path := range paths {
		res, err := readDocument(set, path)
		if err != nil {
			return commandError(formatter, ErrCodeBadDocument, err.Error())
		}
		hash, changed, err := r.Save(cmd.Context(), res)
		if err != nil {
			return commandError(formatter, ErrCodeGeneric, err.Error())
		}
		results = append(results, SaveResult{URI: res.URI(), Hash: hash, Changed: changed})
	}

	if formatter.Format == "json" {
		return formatter.Success(results)
	}
	for _, s := range results {
		state := "saved"
		if !s.Changed {
			state = "unchanged"
		}
		fmt.Fprintf(formatter.Writer, "%s %s %s\n", state, s.URI, s.Hash[:12])
	}
	return nil
}

func newRepoLoadCommand(rootOpts *RootOptions, dbPath *string) *cobra.Command {
	var outputPath string
	var hash string

	cmd := &cobra.Command{
		Use:           "load <uri>",
		Short:         "Read a stored document",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepoLoad(rootOpts, *dbPath, args[0], hash, outputPath, cmd)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the document to a file instead of stdout")
	cmd.Flags().StringVar(&hash, "hash", "", "load a specific snapshot instead of the head")
	return cmd
}

func runRepoLoad(opts *RootOptions, dbPath, uri, hash, outputPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	r, err := repo.Open(dbPath)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}
	defer r.Close()

	set := resource.NewSet(nil)
	var res *resource.Resource
	if hash != "" {
		res, err = r.LoadVersion(cmd.Context(), set, uri, hash)
	} else {
		res, err = r.Load(cmd.Context(), set, uri)
	}
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return NewExitError(ExitFailure, err.Error())
		}
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	if outputPath != "" {
		data, err := encodeDocument(res, outputPath)
		if err != nil {
			return commandError(formatter, ErrCodeBadFormat, err.Error())
		}
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			return commandError(formatter, ErrCodeGeneric, fmt.Sprintf("writing %s: %v", outputPath, err))
		}
		return formatter.Success(fmt.Sprintf("loaded %s -> %s (%d objects)", uri, outputPath, res.Len()))
	}

	// Raw document bytes to stdout, both formats: the payload is already
	// machine-readable JSON.
	data, err := codec.EncodeJSON(res)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}
	_, err = formatter.Writer.Write(data)
	return err
}

func newRepoListCommand(rootOpts *RootOptions, dbPath *string) *cobra.Command {
	var history string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List stored documents",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepoList(rootOpts, *dbPath, history, cmd)
		},
	}
	cmd.Flags().StringVar(&history, "history", "", "list every snapshot of one URI instead of all heads")
	return cmd
}

func runRepoList(opts *RootOptions, dbPath, history string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	r, err := repo.Open(dbPath)
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}
	defer r.Close()

	var snapshots []repo.Snapshot
	if history != "" {
		snapshots, err = r.History(cmd.Context(), history)
	} else {
		snapshots, err = r.List(cmd.Context())
	}
	if err != nil {
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	if formatter.Format == "json" {
		return formatter.Success(snapshots)
	}
	for _, s := range snapshots {
		marker := " "
		if s.Head {
			marker = "*"
		}
		fmt.Fprintf(formatter.Writer, "%s %s %s %d bytes %s\n", marker, s.Hash[:12], s.URI, s.Size, s.SavedAt)
	}
	if len(snapshots) == 0 {
		fmt.Fprintln(formatter.Writer, "no documents stored")
	}
	return nil
}
