package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-delve/liner"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"

	"github.com/go-delve/dwarfdb/pkg/config"
	"github.com/go-delve/dwarfdb/pkg/logflags"
	"github.com/go-delve/dwarfdb/pkg/typedb"
)

const historyFile string = ".dwarfdb_history"

// Term represents the dwarfdb shell.
type Term struct {
	m      *typedb.SymbolManager
	mem    typedb.MemoryReader
	conf   *config.Config
	prompt string
	line   *liner.State
	cmds   *Commands
	dumb   bool
	stdout io.Writer
	log    logflags.Logger
}

// New returns a new Term querying m. Values are read from mem, which can
// be nil if only the symbol commands are used.
func New(m *typedb.SymbolManager, mem typedb.MemoryReader, conf *config.Config) *Term {
	cmds := DebugCommands()
	if conf != nil && conf.Aliases != nil {
		cmds.Merge(conf.Aliases)
	}

	if conf == nil {
		conf = &config.Config{}
	}
	if mem == nil {
		mem = noMemory{}
	}

	var w io.Writer

	dumb := strings.ToLower(os.Getenv("TERM")) == "dumb"
	if dumb {
		w = os.Stdout
	} else {
		w = getColorableWriter()
	}

	return &Term{
		m:      m,
		mem:    mem,
		conf:   conf,
		prompt: "(dwarfdb) ",
		cmds:   cmds,
		dumb:   dumb,
		stdout: w,
		log:    logflags.TerminalLogger(),
	}
}

func getColorableWriter() io.Writer {
	if isatty.IsTerminal(os.Stdout.Fd()) {
		return colorable.NewColorableStdout()
	}
	return os.Stdout
}

type noMemory struct{}

func (noMemory) ReadMemory(buf []byte, addr uint64) (int, error) {
	return 0, fmt.Errorf("no memory source, can not read %#x", addr)
}

// SetStdout redirects the output of all commands to w.
func (t *Term) SetStdout(w io.Writer) {
	t.stdout = w
}

// Commands returns the commands understood by t.
func (t *Term) Commands() *Commands {
	return t.cmds
}

// Call executes a single command line.
func (t *Term) Call(cmdstr string) error {
	return t.cmds.Call(cmdstr, t)
}

// Close returns the terminal to its previous mode.
func (t *Term) Close() {
	if t.line != nil {
		t.line.Close()
	}
}

// Run begins running the shell, it returns when the user exits.
func (t *Term) Run() (int, error) {
	t.line = liner.NewLiner()
	defer t.Close()

	t.line.SetCtrlCAborts(true)
	t.line.SetCompleter(t.complete)

	fullHistoryFile, err := config.GetConfigFilePath(historyFile)
	if err != nil {
		fmt.Printf("Unable to load history file: %v.", err)
	}

	f, err := os.Open(fullHistoryFile)
	if err != nil {
		f, err = os.Create(fullHistoryFile)
		if err != nil {
			fmt.Printf("Unable to open history file: %v. History will not be saved for this session.", err)
		}
	}

	if f != nil {
		t.line.ReadHistory(f)
		f.Close()
	}
	fmt.Fprintln(t.stdout, "Type 'help' for list of commands.")

	defer t.saveHistory(fullHistoryFile)

	for {
		cmdstr, err := t.promptForInput()
		if err != nil {
			if err == io.EOF {
				fmt.Fprintln(t.stdout, "exit")
				return 0, nil
			}
			if err == liner.ErrPromptAborted {
				continue
			}
			return 1, fmt.Errorf("Prompt for input failed.\n")
		}

		if err := t.cmds.Call(cmdstr, t); err != nil {
			if _, ok := err.(ExitRequestError); ok {
				return 0, nil
			}
			fmt.Fprintf(os.Stderr, "Command failed: %s\n", err)
		}
	}
}

// complete offers command names for the first word of line and symbol
// names for the last one.
func (t *Term) complete(line string) (c []string) {
	idx := strings.LastIndexAny(line, " .>*([")
	if idx < 0 {
		for _, cmd := range t.cmds.cmds {
			for _, alias := range cmd.aliases {
				if strings.HasPrefix(alias, strings.ToLower(line)) {
					c = append(c, alias)
				}
			}
		}
		return
	}
	head, prefix := line[:idx+1], line[idx+1:]
	if prefix == "" {
		return nil
	}
	for _, name := range t.m.Complete(prefix) {
		c = append(c, head+name)
	}
	return
}

func (t *Term) saveHistory(path string) {
	f, err := os.Create(path)
	if err != nil {
		t.log.Warnf("could not save history: %v", err)
		return
	}
	defer f.Close()
	if _, err := t.line.WriteHistory(f); err != nil {
		t.log.Warnf("could not save history: %v", err)
	}
}

func (t *Term) promptForInput() (string, error) {
	l, err := t.line.Prompt(t.prompt)
	if err != nil {
		return "", err
	}

	l = strings.TrimSuffix(l, "\n")
	if l != "" {
		t.line.AppendHistory(l)
	}

	return l, nil
}

func (t *Term) loadConfig() typedb.LoadConfig {
	return t.conf.LoadConfig()
}
