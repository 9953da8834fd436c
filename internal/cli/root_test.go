package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and captures combined output.
func execute(args ...string) (string, error) {
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeLibraryMetamodel writes the shared test metamodel and returns its
// path.
func writeLibraryMetamodel(t *testing.T) string {
	t.Helper()
	content := `metamodel: {
	name:  "library"
	nsURI: "http://example.org/library"
	classes: {
		Writer: {
			attributes: {name: "string"}
			references: {
				books: {type: "Book", upper: -1, opposite: "authors"}
			}
		}
		Book: {
			attributes: {title: "string", pages: "int"}
			references: {
				authors: {type: "Writer", upper: -1, opposite: "books"}
			}
		}
	}
}
`
	path := filepath.Join(t.TempDir(), "library.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// writeLibraryDocument writes a small JSON document and returns its path.
func writeLibraryDocument(t *testing.T, dir string) string {
	t.Helper()
	content := `{
  "modelkit": 1,
  "objects": [
    {
      "id": "00000000-0000-7000-8000-000000000001",
      "class": "Book",
      "ns": "http://example.org/library",
      "features": {
        "title": "Dune",
        "pages": 412
      }
    }
  ]
}
`
	path := filepath.Join(dir, "lib.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRoot_RejectsInvalidFormat(t *testing.T) {
	_, err := execute("--format", "xml", "compile", "whatever.cue")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRoot_ListsSubcommands(t *testing.T) {
	out, err := execute("--help")
	require.NoError(t, err)
	for _, sub := range []string{"compile", "validate", "convert", "inspect", "resolve", "repo"} {
		assert.Contains(t, out, sub)
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
}
