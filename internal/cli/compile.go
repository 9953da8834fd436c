package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modelkit/modelkit/internal/schema"
)

// PackageDescriptor is the serialised form of a compiled metamodel.
type PackageDescriptor struct {
	Name    string            `json:"name"`
	NsURI   string            `json:"nsURI"`
	Classes []ClassDescriptor `json:"classes"`
	Enums   []EnumDescriptor  `json:"enums,omitempty"`
}

// ClassDescriptor describes one compiled class.
type ClassDescriptor struct {
	Name     string              `json:"name"`
	Supers   []string            `json:"supers,omitempty"`
	Features []FeatureDescriptor `json:"features,omitempty"`
}

// FeatureDescriptor describes one compiled feature.
type FeatureDescriptor struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Lower       int    `json:"lower"`
	Upper       int    `json:"upper"`
	Containment bool   `json:"containment,omitempty"`
	Opposite    string `json:"opposite,omitempty"`
}

// EnumDescriptor describes one compiled enum.
type EnumDescriptor struct {
	Name     string   `json:"name"`
	Literals []string `json:"literals"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	var outputPath string

	cmd := &cobra.Command{
		Use:   "compile <metamodel>",
		Short: "Compile a CUE metamodel into a schema descriptor",
		Long: `Compile a CUE metamodel file or directory into a schema descriptor.

Compilation checks shape only; run "validate" for semantic checks
(unknown types, unpaired opposites, inheritance cycles).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, args[0], outputPath, cmd)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "write the descriptor to a file instead of stdout")
	return cmd
}

func runCompile(opts *RootOptions, path, outputPath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	pkg, err := LoadMetamodel(path)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return commandError(formatter, loadErr.Code, loadErr.Message)
		}
		return commandError(formatter, ErrCodeGeneric, err.Error())
	}

	desc := describePackage(pkg)
	formatter.VerboseLog("Compiled package %s (%d classes)", desc.Name, len(desc.Classes))

	if outputPath != "" {
		data, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			return commandError(formatter, ErrCodeGeneric, err.Error())
		}
		if err := os.WriteFile(outputPath, append(data, '\n'), 0644); err != nil {
			return commandError(formatter, ErrCodeGeneric, fmt.Sprintf("writing %s: %v", outputPath, err))
		}
		return formatter.Success(fmt.Sprintf("compiled %s -> %s", desc.Name, outputPath))
	}

	if formatter.Format == "json" {
		return formatter.Success(desc)
	}

	fmt.Fprintf(formatter.Writer, "package %s (%s)\n", desc.Name, desc.NsURI)
	for _, c := range desc.Classes {
		fmt.Fprintf(formatter.Writer, "  class %s", c.Name)
		if len(c.Supers) > 0 {
			fmt.Fprintf(formatter.Writer, " extends %v", c.Supers)
		}
		fmt.Fprintln(formatter.Writer)
		for _, f := range c.Features {
			card := fmt.Sprintf("[%d..%d]", f.Lower, f.Upper)
			if f.Upper < 0 {
				card = fmt.Sprintf("[%d..*]", f.Lower)
			}
			fmt.Fprintf(formatter.Writer, "    %s: %s %s", f.Name, f.Type, card)
			if f.Containment {
				fmt.Fprint(formatter.Writer, " containment")
			}
			if f.Opposite != "" {
				fmt.Fprintf(formatter.Writer, " opposite=%s", f.Opposite)
			}
			fmt.Fprintln(formatter.Writer)
		}
	}
	for _, e := range desc.Enums {
		fmt.Fprintf(formatter.Writer, "  enum %s %v\n", e.Name, e.Literals)
	}
	return nil
}

// describePackage flattens a schema package into its descriptor form.
func describePackage(pkg *schema.Package) *PackageDescriptor {
	desc := &PackageDescriptor{Name: pkg.Name, NsURI: pkg.NsURI}
	for _, c := range pkg.Classes() {
		cd := ClassDescriptor{Name: c.Name}
		for _, s := range c.Supers {
			cd.Supers = append(cd.Supers, s.Name)
		}
		for _, f := range c.Features() {
			fd := FeatureDescriptor{
				Name:        f.Name,
				Type:        f.Type,
				Lower:       f.Lower,
				Upper:       f.Upper,
				Containment: f.Containment,
			}
			if !f.Opposite.IsNil() {
				if opp := findFeatureByID(pkg, f.Opposite); opp != nil {
					fd.Opposite = opp.Name
				}
			}
			cd.Features = append(cd.Features, fd)
		}
		desc.Classes = append(desc.Classes, cd)
	}
	for _, cl := range pkg.Classifiers() {
		if e, ok := cl.(*schema.Enum); ok {
			desc.Enums = append(desc.Enums, EnumDescriptor{Name: e.Name, Literals: e.Literals})
		}
	}
	return desc
}

func findFeatureByID(pkg *schema.Package, id schema.FeatureID) *schema.Feature {
	for _, c := range pkg.Classes() {
		if f := c.FeatureByID(id); f != nil {
			return f
		}
	}
	return nil
}
