package cmds

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/go-delve/dwarfdb/pkg/config"
	"github.com/go-delve/dwarfdb/pkg/dwarf/godwarf"
	"github.com/go-delve/dwarfdb/pkg/dwarfparser"
	"github.com/go-delve/dwarfdb/pkg/logflags"
	"github.com/go-delve/dwarfdb/pkg/memory"
	"github.com/go-delve/dwarfdb/pkg/terminal"
	"github.com/go-delve/dwarfdb/pkg/typedb"
	"github.com/go-delve/dwarfdb/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// logDest is the file path or file descriptor where logs should go.
	logDest string

	// partial finalizes the type graph even if references are dangling.
	partial bool
	// staticBase is added to every static address of the executable.
	staticBase uint64
	// ignoreOffsets are dangling offsets that do not stop the parse.
	ignoreOffsets []string

	// dumpFile is a raw memory dump used instead of the executable image.
	dumpFile string
	// dumpBase is the address of the first byte of dumpFile.
	dumpBase uint64
	// pid is the process whose memory is read.
	pid int
	// noData disables reading the initialized data of the executable.
	noData bool

	verbose bool

	conf *config.Config
)

const dwarfdbCommandLongDesc = `dwarfdb loads the DWARF debugging information of an executable into a
queryable type database.

Types, global variables and functions can be listed and described, and
global variables can be decoded from the initialized data of the
executable, from a raw memory dump or from the memory of a running
process.

Expressions are passed after the executable, quote them to keep the shell
from interpreting "->" and "*", for example:

` + "`dwarfdb print --pid 1234 ./a.out 'head->next'`" + `
`

// New returns an initialized command tree.
func New(docCall bool) *cobra.Command {
	// Config setup and load.
	if docCall {
		conf = &config.Config{}
	} else {
		conf = config.LoadConfig()
	}

	// Main dwarfdb root command.
	rootCommand := &cobra.Command{
		Use:           "dwarfdb",
		Short:         "dwarfdb is a DWARF type database.",
		Long:          dwarfdbCommandLongDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logflags.Setup(log, logOutput, logDest)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logflags.Close()
		},
	}

	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debug logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output (see 'dwarfdb help log')")
	rootCommand.PersistentFlags().StringVarP(&logDest, "log-dest", "", "", "Writes logs to the specified file or file descriptor (see 'dwarfdb help log').")
	rootCommand.PersistentFlags().BoolVarP(&partial, "partial", "", false, "Query the type graph even if some references can not be resolved.")
	rootCommand.PersistentFlags().Uint64VarP(&staticBase, "static-base", "", 0, "Address the executable is loaded at.")
	rootCommand.PersistentFlags().StringSliceVarP(&ignoreOffsets, "ignore-offset", "", nil, "Dangling DIE offset that should not stop the parse, can be repeated.")
	rootCommand.PersistentFlags().StringVarP(&dumpFile, "dump", "", "", "Read values from a raw memory dump.")
	rootCommand.PersistentFlags().Uint64VarP(&dumpBase, "dump-base", "", 0, "Address of the first byte of the memory dump.")
	rootCommand.PersistentFlags().IntVarP(&pid, "pid", "p", 0, "Read values from the memory of a running process.")
	rootCommand.PersistentFlags().BoolVarP(&noData, "no-data", "", false, "Do not read values from the initialized data of the executable.")

	// 'types' subcommand.
	typesCommand := &cobra.Command{
		Use:   "types <executable> [regexp]",
		Short: "List types.",
		Long:  "List the named types of the executable, optionally filtered by a regular expression.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  listCmd("types"),
	}
	rootCommand.AddCommand(typesCommand)

	// 'vars' subcommand.
	varsCommand := &cobra.Command{
		Use:   "vars <executable> [regexp]",
		Short: "List global variables.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  listCmd("vars"),
	}
	rootCommand.AddCommand(varsCommand)

	// 'funcs' subcommand.
	funcsCommand := &cobra.Command{
		Use:   "funcs <executable> [regexp]",
		Short: "List functions.",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  listCmd("funcs"),
	}
	rootCommand.AddCommand(funcsCommand)

	// 'whatis' subcommand.
	whatisCommand := &cobra.Command{
		Use:   "whatis <executable> <type or expression>",
		Short: "Describe a type or the type of an expression.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callCmd(cmd, args[0], "whatis "+strings.Join(args[1:], " "))
		},
	}
	rootCommand.AddCommand(whatisCommand)

	// 'print' subcommand.
	printCommand := &cobra.Command{
		Use:   "print <executable> <expression>",
		Short: "Decode the value of an expression.",
		Long: `Decode the value of an expression.

Values are read from the initialized data of the executable unless --dump or
--pid select another source of memory.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return callCmd(cmd, args[0], "print "+strings.Join(args[1:], " "))
		},
	}
	rootCommand.AddCommand(printCommand)

	// 'stats' subcommand.
	statsCommand := &cobra.Command{
		Use:   "stats <executable>",
		Short: "Print a summary of the loaded debug information.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()
			s.report.Fprint(cmd.OutOrStdout(), verbose)
			term := s.terminal(cmd.OutOrStdout())
			if verbose {
				return term.Call("stats -v")
			}
			return term.Call("stats")
		},
	}
	statsCommand.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print every unit and every issue.")
	rootCommand.AddCommand(statsCommand)

	// 'shell' subcommand.
	shellCommand := &cobra.Command{
		Use:   "shell <executable>",
		Short: "Start an interactive session.",
		Long:  "Load the executable and start an interactive session, type 'help' at the prompt for the list of commands.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			defer s.close()
			_, err = terminal.New(s.m, s.mem, conf).Run()
			return err
		},
	}
	rootCommand.AddCommand(shellCommand)

	// 'version' subcommand.
	var buildInfo bool
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dwarfdb\n%s\n", version.DwarfdbVersion)
			if buildInfo {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", version.BuildInfo())
			}
		},
	}
	versionCommand.Flags().BoolVarP(&buildInfo, "build-info", "", false, "Print build info.")
	rootCommand.AddCommand(versionCommand)

	// 'gendoc' subcommand.
	rootCommand.AddCommand(&cobra.Command{
		Use:    "gendoc",
		Short:  "Writes the documentation of the shell commands.",
		Hidden: !docCall,
		Args:   cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			terminal.DebugCommands().WriteMarkdown(cmd.OutOrStdout())
		},
	})

	rootCommand.AddCommand(&cobra.Command{
		Use:   "log",
		Short: "Help about logging flags.",
		Long: `Logging can be enabled by specifying the --log flag and using the
--log-output flag to select which components should produce logs.

The argument of --log-output must be a comma separated list of component
names selected from this list:


	parser		Log the DIEs that are skipped and the units that are read
	registry	Log registration and finalization of the type graph
	instance	Log the values that are decoded
	memory		Log memory reads and the page cache
	terminal	Log the commands that are executed

Additionally --log-dest can be used to specify where the logs should be
written.
If the argument is a number it will be interpreted as a file descriptor,
otherwise as a file path.
`,
	})

	rootCommand.DisableAutoGenTag = true

	return rootCommand
}

func listCmd(name string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cmdstr := name
		if len(args) > 1 {
			cmdstr += " " + args[1]
		}
		return callCmd(cmd, args[0], cmdstr)
	}
}

// callCmd loads path and runs a single shell command on it.
func callCmd(cmd *cobra.Command, path, cmdstr string) error {
	s, err := load(cmd, path)
	if err != nil {
		return err
	}
	defer s.close()
	return s.terminal(cmd.OutOrStdout()).Call(cmdstr)
}

// session is a loaded executable with the memory its values are read
// from.
type session struct {
	file    *godwarf.File
	m       *typedb.SymbolManager
	report  *dwarfparser.Report
	mem     typedb.MemoryReader
	closers []io.Closer
}

func (s *session) terminal(stdout io.Writer) *terminal.Term {
	term := terminal.New(s.m, s.mem, conf)
	term.SetStdout(stdout)
	return term
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i].Close()
	}
}

// applyFlags copies the command line flags that were set over the
// configuration file.
func applyFlags(flags *pflag.FlagSet, c *config.Config) error {
	if flags.Changed("partial") {
		c.PartialGraph = partial
	}
	if flags.Changed("static-base") {
		c.StaticBase = staticBase
	}
	for _, s := range ignoreOffsets {
		off, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid offset %q: %v", s, err)
		}
		c.IgnoreOffsets = append(c.IgnoreOffsets, off)
	}
	return nil
}

// load opens the executable at path, parses its debug information and
// opens the memory selected by the flags of cmd. Issues found by the
// parser are summarized on stderr.
func load(cmd *cobra.Command, path string) (*session, error) {
	stderr := cmd.ErrOrStderr()
	c := *conf
	c.IgnoreOffsets = append([]uint64(nil), conf.IgnoreOffsets...)
	if err := applyFlags(cmd.Flags(), &c); err != nil {
		return nil, err
	}

	f, err := godwarf.Open(path)
	if err != nil {
		return nil, err
	}
	s := &session{file: f, closers: []io.Closer{f}}

	m, report, err := dwarfparser.Parse(f.Units(c.StaticBase), c.ParseOptions()...)
	if err != nil {
		s.close()
		if report != nil && len(report.Issues()) > 0 {
			report.Fprint(stderr, false)
		}
		var uerr *typedb.UnresolvedReferenceError
		if errors.As(err, &uerr) {
			return nil, fmt.Errorf("%v\nuse --partial to load the type graph anyway", err)
		}
		return nil, err
	}
	if issues := report.Issues(); len(issues) > 0 {
		fmt.Fprintf(stderr, "%d issues found while loading %s, run 'dwarfdb stats -v' for details\n", len(issues), path)
	}
	s.m, s.report = m, report

	if err := s.openMemory(&c); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *session) openMemory(c *config.Config) error {
	switch {
	case pid != 0:
		p, err := memory.OpenProcess(pid)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, p)
		if c.MemoryCachePages <= 0 {
			s.mem = p
			return nil
		}
		cached, err := memory.NewCached(p, c.MemoryCachePages, memory.DefaultPageSize)
		if err != nil {
			return err
		}
		s.mem = cached
	case dumpFile != "":
		df, err := memory.OpenFile(dumpFile, dumpBase)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, df)
		s.mem = df
	case !noData && s.file.ELF != nil:
		img, err := memory.NewELFImage(s.file.ELF, c.StaticBase)
		if err != nil {
			return err
		}
		s.mem = img
	}
	return nil
}
