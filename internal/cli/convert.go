package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modelkit/modelkit/internal/resource"
)

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	var metamodelPath string

	cmd := &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Convert a document between the JSON and XMI codecs",
		Long: `Decode a model document and re-encode it with the codec matching the
output file's extension (.json for JSON, .xmi/.xml for XMI).

A metamodel makes declared features decode with their schema types;
without one, objects decode with ad hoc classes and dynamic features.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(rootOpts, args[0], args[1], metamodelPath, cmd)
		},
	}

	cmd.Flags().StringVarP(&metamodelPath, "metamodel", "m", "", "CUE metamodel to register before decoding")
	return cmd
}

func runConvert(opts *RootOptions, input, output, metamodelPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	set := resource.NewSet(nil)
	if err := registerMetamodel(set, metamodelPath); err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return commandError(formatter, loadErr.Code, loadErr.Message)
		}
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	res, err := readDocument(set, input)
	if err != nil {
		return commandError(formatter, ErrCodeBadDocument, err.Error())
	}
	formatter.VerboseLog("Decoded %s (%d objects)", input, res.Len())

	data, err := encodeDocument(res, output)
	if err != nil {
		return commandError(formatter, ErrCodeBadFormat, err.Error())
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return commandError(formatter, ErrCodeGeneric, fmt.Sprintf("writing %s: %v", output, err))
	}

	return formatter.Success(fmt.Sprintf("converted %s -> %s (%d objects)", input, output, res.Len()))
}
