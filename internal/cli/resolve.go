package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/modelkit/modelkit/internal/resource"
)

// ResolveResult is the JSON shape of a resolution.
type ResolveResult struct {
	URI   string `json:"uri"`
	ID    string `json:"id"`
	Class string `json:"class,omitempty"`
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var metamodelPath string
	var docPaths []string
	var mappings []string

	cmd := &cobra.Command{
		Use:   "resolve <uri>",
		Short: "Resolve a URI fragment against loaded documents",
		Long: `Load documents into a resource set and resolve a "base#fragment" URI.

Fragments address roots by index ("#0") or walk feature paths
("#/0/items/1"). Mappings rewrite URI prefixes before lookup, so a
document loaded from disk can answer for a logical URI.`,
		Example: `  modelkit resolve --doc lib.json "lib.json#0"
  modelkit resolve -m library.cue --doc lib.json --map "logical://=." "logical:///lib.json#/0/items/1"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(rootOpts, args[0], docPaths, mappings, metamodelPath, cmd)
		},
	}

	cmd.Flags().StringArrayVar(&docPaths, "doc", nil, "document to load (repeatable)")
	cmd.Flags().StringArrayVar(&mappings, "map", nil, "URI prefix rewrite as from=to (repeatable)")
	cmd.Flags().StringVarP(&metamodelPath, "metamodel", "m", "", "CUE metamodel to register before decoding")
	return cmd
}

func runResolve(opts *RootOptions, uri string, docPaths, mappings []string, metamodelPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if len(docPaths) == 0 {
		return commandError(formatter, ErrCodeNoFiles, "at least one --doc is required")
	}

	set := resource.NewSet(nil)
	if err := registerMetamodel(set, metamodelPath); err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return commandError(formatter, loadErr.Code, loadErr.Message)
		}
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	for _, path := range docPaths {
		res, err := readDocument(set, path)
		if err != nil {
			return commandError(formatter, ErrCodeBadDocument, err.Error())
		}
		formatter.VerboseLog("Loaded %s (%d objects)", path, res.Len())
	}

	for _, m := range mappings {
		from, to, ok := strings.Cut(m, "=")
		if !ok || from == "" {
			return commandError(formatter, ErrCodeGeneric, fmt.Sprintf("bad --map %q: expect from=to", m))
		}
		set.MapURI(from, to)
	}

	o := set.ResolveByURI(uri)
	if o == nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("nothing resolves for %q", uri), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("nothing resolves for %q", uri))
	}

	result := ResolveResult{URI: uri, ID: o.ID().String()}
	if c := o.Class(); c != nil {
		result.Class = c.Name
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	if result.Class != "" {
		fmt.Fprintf(formatter.Writer, "%s %s\n", result.Class, result.ID)
	} else {
		fmt.Fprintln(formatter.Writer, result.ID)
	}
	return nil
}
