package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_TextOutput(t *testing.T) {
	path := writeLibraryMetamodel(t)

	out, err := execute("compile", path)
	require.NoError(t, err)
	assert.Contains(t, out, "package library (http://example.org/library)")
	assert.Contains(t, out, "class Book")
	assert.Contains(t, out, "authors: Writer [0..*] opposite=books")
	assert.Contains(t, out, "title: string [0..1]")
}

func TestCompile_JSONOutput(t *testing.T) {
	path := writeLibraryMetamodel(t)

	out, err := execute("--format", "json", "compile", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var desc PackageDescriptor
	require.NoError(t, json.Unmarshal(data, &desc))
	assert.Equal(t, "library", desc.Name)
	assert.Len(t, desc.Classes, 2)
}

func TestCompile_WritesDescriptorFile(t *testing.T) {
	path := writeLibraryMetamodel(t)
	out := filepath.Join(t.TempDir(), "library.json")

	_, err := execute("compile", path, "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var desc PackageDescriptor
	require.NoError(t, json.Unmarshal(data, &desc))
	assert.Equal(t, "http://example.org/library", desc.NsURI)
}

func TestCompile_MissingFile(t *testing.T) {
	out, err := execute("compile", "/nonexistent/m.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "metamodel not found")
}

func TestCompile_LoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	content := `metamodel: {
	name:  "tiny"
	nsURI: "http://example.org/tiny"
	classes: {Thing: {}}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.cue"), []byte(content), 0644))

	out, err := execute("compile", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "class Thing")
}

func TestCompile_EmptyDirectory(t *testing.T) {
	out, err := execute("compile", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "no CUE files found")
}

func TestValidate_CleanMetamodel(t *testing.T) {
	path := writeLibraryMetamodel(t)

	out, err := execute("validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "metamodel valid")
}

func TestValidate_ReportsFindings(t *testing.T) {
	content := `metamodel: {
	name:  "broken"
	nsURI: "http://example.org/broken"
	classes: {
		Book: {
			references: {
				author: {type: "Ghost"}
			}
		}
	}
}
`
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out, err := execute("validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "validation failed")
	assert.Contains(t, out, "Book.author")
}

func TestValidate_JSONFindings(t *testing.T) {
	content := `metamodel: {
	name:  "broken"
	nsURI: ""
	classes: {Book: {}}
}
`
	path := filepath.Join(t.TempDir(), "broken.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	out, err := execute("--format", "json", "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var result ValidationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
}
