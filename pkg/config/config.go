package config

import (
	"debug/dwarf"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/go-delve/dwarfdb/pkg/dwarfparser"
	"github.com/go-delve/dwarfdb/pkg/typedb"
)

const (
	configDir  string = ".dwarfdb"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// Commands aliases.
	Aliases map[string][]string `yaml:"aliases"`

	// PartialGraph finalizes the type graph even if some references are
	// dangling.
	PartialGraph bool `yaml:"partial-graph" cfgName:"partial-graph"`
	// IgnoreOffsets are dangling offsets that are known to be harmless.
	IgnoreOffsets []uint64 `yaml:"ignore-offsets" cfgName:"ignore-offsets"`
	// StaticBase is the address the executable is loaded at, it is added
	// to every static address.
	StaticBase uint64 `yaml:"static-base" cfgName:"static-base"`

	// MaxStringLen is the maximum string length that the print command
	// reads.
	MaxStringLen *int `yaml:"max-string-len,omitempty" cfgName:"max-string-len"`
	// MaxArrayValues is the maximum number of array items that the print
	// command reads.
	MaxArrayValues *int `yaml:"max-array-values,omitempty" cfgName:"max-array-values"`
	// MaxStructFields is the maximum number of struct members that the
	// print command reads, -1 reads all of them.
	MaxStructFields *int `yaml:"max-struct-fields,omitempty" cfgName:"max-struct-fields"`
	// MaxVariableRecurse is how far the print command follows pointers
	// and nested structs.
	MaxVariableRecurse *int `yaml:"max-variable-recurse,omitempty" cfgName:"max-variable-recurse"`

	// MemoryCachePages is the number of pages cached in front of process
	// memory, 0 disables the cache.
	MemoryCachePages int `yaml:"memory-cache-pages" cfgName:"memory-cache-pages"`

	// If ShowLocationExpr is true whatis will print the DWARF location
	// expression for its argument.
	ShowLocationExpr bool `yaml:"show-location-expr" cfgName:"show-location-expr"`

	// DebugInfoDirectories is the list of directories dwarfdb will use
	// in order to resolve external debug info files.
	DebugInfoDirectories []string `yaml:"debug-info-directories" cfgName:"debug-info-directories"`
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}

	if _, err := os.Stat(fullConfigFile); os.IsNotExist(err) {
		if err := createDefaultConfig(fullConfigFile); err != nil {
			fmt.Printf("Error creating default config file: %v", err)
			return &Config{}
		}
	}

	c, err := LoadConfigFrom(fullConfigFile)
	if err != nil {
		fmt.Printf("%v.", err)
		return &Config{}
	}
	return c
}

// LoadConfigFrom reads the configuration file at path.
func LoadConfigFrom(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config file: %v", err)
	}
	return &c, nil
}

// SaveConfig will marshal and save the config struct
// to disk.
func SaveConfig(conf *Config) error {
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		return err
	}
	return SaveConfigTo(conf, fullConfigFile)
}

// SaveConfigTo writes conf to path.
func SaveConfigTo(conf *Config, path string) error {
	out, err := yaml.Marshal(*conf)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(out)
	return err
}

// LoadConfig returns the load limits used to print values, starting from
// typedb.DefaultLoadConfig.
func (c *Config) LoadConfig() typedb.LoadConfig {
	cfg := typedb.DefaultLoadConfig
	if c.MaxStringLen != nil {
		cfg.MaxStringLen = *c.MaxStringLen
	}
	if c.MaxArrayValues != nil {
		cfg.MaxArrayValues = *c.MaxArrayValues
	}
	if c.MaxStructFields != nil {
		cfg.MaxStructFields = *c.MaxStructFields
	}
	if c.MaxVariableRecurse != nil {
		cfg.MaxVariableRecurse = *c.MaxVariableRecurse
	}
	return cfg
}

// ParseOptions returns the parser options selected by c.
func (c *Config) ParseOptions() []dwarfparser.Option {
	opts := []dwarfparser.Option{dwarfparser.WithStaticBase(c.StaticBase)}
	if c.PartialGraph {
		opts = append(opts, dwarfparser.AllowPartial())
	}
	if len(c.IgnoreOffsets) > 0 {
		offs := make([]dwarf.Offset, len(c.IgnoreOffsets))
		for i := range c.IgnoreOffsets {
			offs[i] = dwarf.Offset(c.IgnoreOffsets[i])
		}
		opts = append(opts, dwarfparser.IgnoreOffsets(offs...))
	}
	return opts
}

func createDefaultConfig(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create config file: %v", err)
	}
	defer f.Close()
	err = writeDefaultConfig(f)
	if err != nil {
		return fmt.Errorf("unable to write default configuration: %v", err)
	}
	return nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for dwarfdb.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# Provided aliases will be added to the default aliases for a given command.
aliases:
  # command: ["alias1", "alias2"]

# Uncomment the following line to query the type graph even if some
# references can not be resolved.
# partial-graph: true

# Dangling offsets that should not stop the parse.
# ignore-offsets: [0x1234]

# Address the executable is loaded at (position independent executables).
# static-base: 0x555555554000

# Maximum number of elements loaded from an array.
# max-array-values: 64

# Maximum loaded string length.
# max-string-len: 64

# Maximum number of struct members loaded, -1 loads all of them.
# max-struct-fields: -1

# How many pointers and nested structs are followed by print.
# max-variable-recurse: 1

# Number of 4KiB pages of process memory kept in the cache.
# memory-cache-pages: 256

# Uncomment the following line to make the whatis command also print the DWARF location expression of its argument.
# show-location-expr: true

# List of directories to use when searching for separate debug info files.
debug-info-directories: ["/usr/lib/debug/.build-id"]
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
// $XDG_CONFIG_HOME/dwarfdb is used if XDG_CONFIG_HOME is set, otherwise
// the .dwarfdb directory in the home directory of the user.
func GetConfigFilePath(file string) (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dwarfdb", file), nil
	}

	userHomeDir := "."
	usr, err := user.Current()
	if err == nil {
		userHomeDir = usr.HomeDir
	}
	return filepath.Join(userHomeDir, configDir, file), nil
}
