package cmds

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/dwarfdb/pkg/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := New(true)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCommandTree(t *testing.T) {
	root := New(true)
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, name := range []string{"types", "vars", "funcs", "whatis", "print", "stats", "shell", "version", "gendoc", "log"} {
		require.True(t, names[name], "missing subcommand %s", name)
	}

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	gendoc, _, err := New(false).Find([]string{"gendoc"})
	require.NoError(t, err)
	require.True(t, gendoc.Hidden)
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "dwarfdb\nVersion: "), "wrong output %q", out)
}

func TestGendoc(t *testing.T) {
	out, err := execute(t, "gendoc")
	require.NoError(t, err)
	require.Contains(t, out, "# Commands")
	require.Contains(t, out, "## print\n")
	require.Contains(t, out, "## whatis\n")
}

func TestLogOutputWithoutLog(t *testing.T) {
	_, err := execute(t, "version", "--log-output", "parser")
	require.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	root := New(true)
	require.NoError(t, root.ParseFlags([]string{"--partial", "--static-base", "0x400000", "--ignore-offset", "0x10,32", "--ignore-offset", "0x99"}))

	c := config.Config{IgnoreOffsets: []uint64{1}}
	require.NoError(t, applyFlags(root.Flags(), &c))
	require.True(t, c.PartialGraph)
	require.Equal(t, uint64(0x400000), c.StaticBase)
	require.Equal(t, []uint64{1, 0x10, 32, 0x99}, c.IgnoreOffsets)

	// flags that are not set keep the configured value
	root = New(true)
	require.NoError(t, root.ParseFlags(nil))
	c = config.Config{PartialGraph: true, StaticBase: 0x1000}
	require.NoError(t, applyFlags(root.Flags(), &c))
	require.True(t, c.PartialGraph)
	require.Equal(t, uint64(0x1000), c.StaticBase)

	root = New(true)
	require.NoError(t, root.ParseFlags([]string{"--ignore-offset", "abc"}))
	require.Error(t, applyFlags(root.Flags(), &config.Config{}))
}

func TestLoadErrors(t *testing.T) {
	_, err := execute(t, "types", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(garbage, []byte("not an executable"), 0o600))
	_, err = execute(t, "print", garbage, "head")
	require.Error(t, err)

	_, err = execute(t, "print", garbage)
	require.Error(t, err, "print without an expression")
}
