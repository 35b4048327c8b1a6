package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allfeat/massload/engine/transform"
)

func TestRootCmd(t *testing.T) {
	t.Run("Should register all subcommands", func(t *testing.T) {
		root := RootCmd()
		names := make([]string, 0, len(root.Commands()))
		for _, c := range root.Commands() {
			names = append(names, c.Name())
		}
		assert.Contains(t, names, "transform")
		assert.Contains(t, names, "templates")
		assert.Contains(t, names, "serve")
		assert.Contains(t, names, "parse")
		assert.Contains(t, names, "validate")
		assert.Contains(t, names, "group")
		assert.Contains(t, names, "example-matrix")
		assert.Contains(t, names, "operations")
	})

	t.Run("Should expose logging flags", func(t *testing.T) {
		root := RootCmd()
		assert.NotNil(t, root.PersistentFlags().Lookup("log-level"))
		assert.NotNil(t, root.PersistentFlags().Lookup("log-json"))
		assert.NotNil(t, root.PersistentFlags().Lookup("log-source"))
	})
}

func TestTransformCmd(t *testing.T) {
	t.Run("Should require exactly one file argument", func(t *testing.T) {
		cmd := TransformCmd()
		require.NotNil(t, cmd.Args)
		assert.Error(t, cmd.Args(cmd, []string{}))
		assert.NoError(t, cmd.Args(cmd, []string{"works.csv"}))
		assert.Error(t, cmd.Args(cmd, []string{"a.csv", "b.csv"}))
	})

	t.Run("Should expose pipeline options as flags", func(t *testing.T) {
		cmd := TransformCmd()
		for _, name := range []string{"matrix", "output", "preview-rows", "skip-validation", "no-cache", "no-save"} {
			assert.NotNil(t, cmd.Flags().Lookup(name), name)
		}
	})
}

func TestParseCmd(t *testing.T) {
	t.Run("Should parse a CSV file into JSON rows", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "works.csv")
		require.NoError(t, os.WriteFile(path, []byte("ISWC;Titre\nT1234567890;Ma Chanson\n"), 0o644))

		cmd := ParseCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{path})

		require.NoError(t, cmd.Execute())
		var rows []map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "Ma Chanson", rows[0]["Titre"])
	})

	t.Run("Should honor an explicit delimiter", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "works.csv")
		require.NoError(t, os.WriteFile(path, []byte("ISWC|Titre\nT1234567890|Ma Chanson\n"), 0o644))

		cmd := ParseCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{path, "--delimiter", "|"})

		require.NoError(t, cmd.Execute())
		var rows []map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
		require.Len(t, rows, 1)
		assert.Equal(t, "T1234567890", rows[0]["ISWC"])
	})
}

func TestValidateCmd(t *testing.T) {
	t.Run("Should pass a file of valid records", func(t *testing.T) {
		records := `[{"iswc":"T1234567890","title":"Ma Chanson","creatorIpi":123456789,"creatorRole":"Composer"}]`
		path := filepath.Join(t.TempDir(), "records.json")
		require.NoError(t, os.WriteFile(path, []byte(records), 0o644))

		cmd := ValidateCmd()
		cmd.SetArgs([]string{path})
		assert.NoError(t, cmd.Execute())
	})

	t.Run("Should fail when a record violates the schema", func(t *testing.T) {
		records := `[{"iswc":"bad","title":"Ma Chanson"}]`
		path := filepath.Join(t.TempDir(), "records.json")
		require.NoError(t, os.WriteFile(path, []byte(records), 0o644))

		cmd := ValidateCmd()
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		cmd.SetArgs([]string{path})

		err := cmd.Execute()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "1 of 1 records failed")
	})
}

func TestGroupCmd(t *testing.T) {
	t.Run("Should group flat records by iswc", func(t *testing.T) {
		records := `[
			{"iswc":"T1234567890","title":"Ma Chanson","creatorIpi":123456789,"creatorRole":"Composer"},
			{"iswc":"T1234567890","title":"Ma Chanson","creatorIpi":987654321,"creatorRole":"Author"}
		]`
		path := filepath.Join(t.TempDir(), "records.json")
		require.NoError(t, os.WriteFile(path, []byte(records), 0o644))

		cmd := GroupCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{path})

		require.NoError(t, cmd.Execute())
		var works []map[string]any
		require.NoError(t, json.Unmarshal(out.Bytes(), &works))
		require.Len(t, works, 1)
		assert.Len(t, works[0]["creators"], 2)
	})
}

func TestExampleMatrixCmd(t *testing.T) {
	t.Run("Should print a parseable matrix", func(t *testing.T) {
		cmd := ExampleMatrixCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{})

		require.NoError(t, cmd.Execute())
		matrix, err := transform.MatrixFromJSON(out.Bytes())
		require.NoError(t, err)
		assert.Contains(t, matrix.TargetFields(), "iswc")
	})
}

func TestOperationsCmd(t *testing.T) {
	t.Run("Should list every operation variant", func(t *testing.T) {
		cmd := OperationsCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{})

		require.NoError(t, cmd.Execute())
		for _, op := range []string{"trim", "replace", "pad_start", "extract_year", "map", "substring", "digits_only"} {
			assert.Contains(t, out.String(), op)
		}
	})
}

func TestTemplatesCmd(t *testing.T) {
	t.Run("Should register list, delete and import", func(t *testing.T) {
		cmd := TemplatesCmd()
		names := make([]string, 0, len(cmd.Commands()))
		for _, c := range cmd.Commands() {
			names = append(names, c.Name())
		}
		assert.ElementsMatch(t, []string{"list", "delete", "import"}, names)
	})
}
