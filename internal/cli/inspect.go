package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelkit/modelkit/internal/model"
	"github.com/modelkit/modelkit/internal/resource"
)

// DocumentSummary is the JSON shape of an inspected document.
type DocumentSummary struct {
	URI     string          `json:"uri"`
	Objects int             `json:"objects"`
	Roots   []ObjectSummary `json:"roots"`
}

// ObjectSummary describes one object in a document tree.
type ObjectSummary struct {
	ID       string          `json:"id"`
	Class    string          `json:"class,omitempty"`
	Features []string        `json:"features,omitempty"`
	Children []ObjectSummary `json:"children,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var metamodelPath string

	cmd := &cobra.Command{
		Use:           "inspect <document>",
		Short:         "Show a document's object tree",
		Long:          "Decode a model document and print its root objects with their owned children.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(rootOpts, args[0], metamodelPath, cmd)
		},
	}

	cmd.Flags().StringVarP(&metamodelPath, "metamodel", "m", "", "CUE metamodel to register before decoding")
	return cmd
}

func runInspect(opts *RootOptions, path, metamodelPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	set := resource.NewSet(nil)
	if err := registerMetamodel(set, metamodelPath); err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return commandError(formatter, loadErr.Code, loadErr.Message)
		}
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	res, err := readDocument(set, path)
	if err != nil {
		return commandError(formatter, ErrCodeBadDocument, err.Error())
	}

	summary := DocumentSummary{URI: res.URI(), Objects: res.Len()}
	for _, root := range res.RootObjects() {
		summary.Roots = append(summary.Roots, summarize(root))
	}

	if formatter.Format == "json" {
		return formatter.Success(summary)
	}

	fmt.Fprintf(formatter.Writer, "%s: %d object(s), %d root(s)\n", summary.URI, summary.Objects, len(summary.Roots))
	for _, root := range summary.Roots {
		printObject(formatter, root, 1)
	}
	return nil
}

// summarize flattens one object and its owned children.
func summarize(o *model.Object) ObjectSummary {
	s := ObjectSummary{ID: o.ID().String()}
	if c := o.Class(); c != nil {
		s.Class = c.Name
	}
	store := o.Features()
	for _, k := range store.SetKeys() {
		if name, ok := k.Name(); ok {
			s.Features = append(s.Features, name)
		} else if c := o.Class(); c != nil {
			if id, ok := k.FeatureID(); ok {
				if f := c.FeatureByID(id); f != nil {
					s.Features = append(s.Features, f.Name)
				}
			}
		}
		switch v := store.Get(k).(type) {
		case model.Owned:
			if v.Object != nil {
				s.Children = append(s.Children, summarize(v.Object))
			}
		case model.OwnedList:
			for _, child := range v {
				s.Children = append(s.Children, summarize(child))
			}
		}
	}
	return s
}

func printObject(f *OutputFormatter, s ObjectSummary, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Fprint(f.Writer, "  ")
	}
	name := s.Class
	if name == "" {
		name = "object"
	}
	fmt.Fprintf(f.Writer, "%s %s", name, s.ID)
	if len(s.Features) > 0 {
		fmt.Fprintf(f.Writer, " %v", s.Features)
	}
	fmt.Fprintln(f.Writer)
	for _, child := range s.Children {
		printObject(f, child, depth+1)
	}
}
