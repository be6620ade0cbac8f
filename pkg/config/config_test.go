package config

import (
	"bytes"
	"debug/dwarf"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-delve/dwarfdb/pkg/dwarf/godwarf"
	"github.com/go-delve/dwarfdb/pkg/dwarfparser"
	"github.com/go-delve/dwarfdb/pkg/logflags"
	"github.com/go-delve/dwarfdb/pkg/typedb"
)

func TestLoadDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	c := LoadConfig()
	require.Equal(t, []string{"/usr/lib/debug/.build-id"}, c.DebugInfoDirectories)
	require.False(t, c.PartialGraph)
	require.Equal(t, typedb.DefaultLoadConfig, c.LoadConfig())

	_, err := os.Stat(filepath.Join(dir, "dwarfdb", "config.yml"))
	require.NoError(t, err, "default configuration file not created")

	c.PartialGraph = true
	require.NoError(t, SaveConfig(c))
	require.True(t, LoadConfig().PartialGraph)
}

func TestLoadConfigFrom(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
aliases:
  print: ["p"]
partial-graph: true
ignore-offsets: [0x99, 0x1234]
static-base: 0x555555554000
max-string-len: 10
max-struct-fields: 3
memory-cache-pages: 16
debug-info-directories: [/usr/lib/debug]
`), 0o600))

	c, err := LoadConfigFrom(path)
	require.NoError(t, err)
	require.Equal(t, []string{"p"}, c.Aliases["print"])
	require.True(t, c.PartialGraph)
	require.Equal(t, []uint64{0x99, 0x1234}, c.IgnoreOffsets)
	require.Equal(t, uint64(0x555555554000), c.StaticBase)
	require.Equal(t, 16, c.MemoryCachePages)
	require.Nil(t, c.MaxArrayValues)

	cfg := c.LoadConfig()
	require.Equal(t, 10, cfg.MaxStringLen)
	require.Equal(t, 3, cfg.MaxStructFields)
	require.Equal(t, typedb.DefaultLoadConfig.MaxArrayValues, cfg.MaxArrayValues)

	out := filepath.Join(t.TempDir(), "saved.yml")
	require.NoError(t, SaveConfigTo(c, out))
	c2, err := LoadConfigFrom(out)
	require.NoError(t, err)
	require.Equal(t, c, c2)

	require.NoError(t, os.WriteFile(path, []byte("partial-graph: [\n"), 0o600))
	_, err = LoadConfigFrom(path)
	require.Error(t, err)
}

func TestParseOptions(t *testing.T) {
	src := func() *godwarf.TreeUnits {
		return &godwarf.TreeUnits{Units: []*godwarf.Tree{
			godwarf.NewTree(0x0b, dwarf.TagCompileUnit, godwarf.Attrs{dwarf.AttrName: "a.c"},
				godwarf.NewTree(0x10, dwarf.TagPointerType, godwarf.Attrs{dwarf.AttrByteSize: int64(8), dwarf.AttrType: dwarf.Offset(0x99)})),
		}}
	}
	parse := func(c *Config) error {
		opts := append(c.ParseOptions(), dwarfparser.WithLogger(logflags.Discard()))
		_, _, err := dwarfparser.Parse(src(), opts...)
		return err
	}

	require.Error(t, parse(&Config{}))
	require.NoError(t, parse(&Config{IgnoreOffsets: []uint64{0x99}}))
	require.NoError(t, parse(&Config{PartialGraph: true}))
}

func TestConfigureSetSimple(t *testing.T) {
	c := &Config{}
	set := func(name, value string) error {
		field := ConfigureFindFieldByName(c, name, "cfgName")
		require.True(t, field.IsValid(), name)
		return ConfigureSetSimple(value, name, field)
	}

	require.NoError(t, set("max-string-len", "100"))
	require.Equal(t, 100, *c.MaxStringLen)
	require.NoError(t, set("partial-graph", "true"))
	require.True(t, c.PartialGraph)
	require.NoError(t, set("static-base", "0x400000"))
	require.Equal(t, uint64(0x400000), c.StaticBase)
	require.NoError(t, set("ignore-offsets", "0x10 32"))
	require.Equal(t, []uint64{0x10, 32}, c.IgnoreOffsets)
	require.NoError(t, set("debug-info-directories", `/a "/b c"`))
	require.Equal(t, []string{"/a", "/b c"}, c.DebugInfoDirectories)

	require.Error(t, set("max-array-values", "many"))
	require.Error(t, set("max-array-values", "-2"))
	require.Error(t, set("partial-graph", "yes"))
	require.False(t, ConfigureFindFieldByName(c, "aliases", "cfgName").IsValid())

	var buf bytes.Buffer
	ConfigureList(&buf, c, "cfgName")
	out := buf.String()
	for _, line := range []string{
		"max-string-len\t100\n",
		"max-array-values\t<not defined>\n",
		"static-base\t0x400000\n",
		"partial-graph\ttrue\n",
	} {
		require.True(t, strings.Contains(out, line), "missing %q in:\n%s", line, out)
	}
}
