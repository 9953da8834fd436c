package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelkit/modelkit/internal/codec"
	"github.com/modelkit/modelkit/internal/resource"
)

// Document formats the CLI can read and write, selected by file
// extension.
const (
	FormatJSON = "json"
	FormatXMI  = "xmi"
)

// documentFormat maps a file path to a codec.
func documentFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".xmi", ".xml":
		return FormatXMI, nil
	default:
		return "", fmt.Errorf("cannot infer document format from %q (expect .json, .xmi or .xml)", path)
	}
}

// readDocument decodes the file at path into a resource of set,
// registered under the path itself as URI.
func readDocument(set *resource.Set, path string) (*resource.Resource, error) {
	format, err := documentFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	res := set.CreateResource(path)
	switch format {
	case FormatJSON:
		err = codec.DecodeJSON(res, data)
	case FormatXMI:
		err = codec.DecodeXMI(res, data)
	}
	if err != nil {
		set.RemoveResource(res)
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return res, nil
}

// encodeDocument serialises res with the codec matching path's
// extension.
func encodeDocument(res *resource.Resource, path string) ([]byte, error) {
	format, err := documentFormat(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXMI:
		return codec.EncodeXMI(res)
	default:
		return codec.EncodeJSON(res)
	}
}

// registerMetamodel loads an optional metamodel path into the set.
// An empty path is a no-op.
func registerMetamodel(set *resource.Set, path string) error {
	if path == "" {
		return nil
	}
	pkg, err := LoadMetamodel(path)
	if err != nil {
		return err
	}
	set.RegisterMetamodel(pkg)
	return nil
}
