// Package terminal implements functions for responding to user
// input and dispatching to the type database.
package terminal

import (
	"bytes"
	"debug/dwarf"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/cosiner/argv"

	"github.com/go-delve/dwarfdb/pkg/dwarf/op"
	"github.com/go-delve/dwarfdb/pkg/typedb"
)

type cmdfunc func(t *Term, args string) error

type command struct {
	aliases        []string
	builtinAliases []string
	group          commandGroup
	helpMsg        string
	cmdFn          cmdfunc
}

// Returns true if the command string matches one of the aliases for this command
func (c command) match(cmdstr string) bool {
	for _, v := range c.aliases {
		if v == cmdstr {
			return true
		}
	}
	return false
}

// Commands represents the commands of the dwarfdb shell.
type Commands struct {
	cmds []command
}

// byFirstAlias will sort by the first
// alias of a command.
type byFirstAlias []command

func (a byFirstAlias) Len() int           { return len(a) }
func (a byFirstAlias) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byFirstAlias) Less(i, j int) bool { return a[i].aliases[0] < a[j].aliases[0] }

// DebugCommands returns a Commands struct with default commands defined.
func DebugCommands() *Commands {
	c := &Commands{}

	c.cmds = []command{
		{aliases: []string{"help", "h"}, cmdFn: c.help, helpMsg: `Prints the help message.

	help [command]

Type "help" followed by the name of a command for more information about it.`},
		{aliases: []string{"types"}, group: symbolCmds, cmdFn: types, helpMsg: `Print list of types.

	types [<regex>]

If regex is specified only the types matching it will be returned.`},
		{aliases: []string{"vars"}, group: symbolCmds, cmdFn: vars, helpMsg: `Print global variables.

	vars [<regex>]

If regex is specified only the variables matching it will be returned.`},
		{aliases: []string{"funcs"}, group: symbolCmds, cmdFn: funcs, helpMsg: `Print list of functions.

	funcs [<regex>]

If regex is specified only the functions matching it will be returned.`},
		{aliases: []string{"whatis"}, group: symbolCmds, cmdFn: whatisCommand, helpMsg: `Prints the definition of a type or the type of an expression.

	whatis <type>
	whatis <expression>

A type can be prefixed by struct, union, enum or class. If show-location-expr is set the DWARF location expression of global variables is also printed.`},
		{aliases: []string{"node"}, group: symbolCmds, cmdFn: nodeCommand, helpMsg: `Prints the node registered at a DIE offset.

	node <offset>`},
		{aliases: []string{"stats"}, group: symbolCmds, cmdFn: statsCommand, helpMsg: `Prints the number of nodes of each kind and the issues found while loading.

	stats [-v]

With -v every issue is printed.`},
		{aliases: []string{"print", "p"}, group: dataCmds, cmdFn: printVar, helpMsg: `Evaluate an expression.

	print <expression>

Expressions are access paths starting at a global variable or at a cast of an address:

	print head->next->value
	print table[3].name
	print matrix[1][2]
	print *(struct node)0xc000010000

See also: "help config" for the limits on how much of a value is loaded.`},
		{aliases: []string{"examinemem", "x"}, group: dataCmds, cmdFn: examineMemoryCmd, helpMsg: `Examine raw memory at the given address.

Examine memory:

	examinemem [-fmt <format>] [-count|-len <count>] [-size <size>] <address>
	examinemem [-fmt <format>] [-count|-len <count>] [-size <size>] -x <expression>

Format represents the data format and the value is one of this list (default hex): bin(binary), oct(octal), dec(decimal), hex(hexadecimal).
Length is the number of bytes (default 1) and must be less than or equal to 1000.
Size is the size of each value in bytes (default 1), at most 8.
The address can be a number or, with -x, an expression whose address is used.

For example:

    x -fmt hex -count 20 -size 1 0xc00008af38
    x -fmt hex -count 4 -size 8 -x table[0]`},
		{aliases: []string{"disassemble", "disass"}, group: dataCmds, cmdFn: disassCommand, helpMsg: `Disassembler.

	disassemble [-f <flavour>] <function>
	disassemble [-f <flavour>] <address>
	disassemble [-f <flavour>] -a <start> <end>

With an address the function containing it is disassembled. The flavour is one of intel (default), gnu or go.`},
		{aliases: []string{"config"}, cmdFn: configureCmd, helpMsg: `Changes configuration parameters.

	config -list

Show all configuration parameters.

	config -save

Saves the configuration file to disk, overwriting the current configuration file.

	config <parameter> [value]

Changes the value of a configuration parameter, without a value the current one is printed.

	config alias <command> <alias>
	config alias <alias>

Defines <alias> as an alias to <command> or removes an alias.`},
		{aliases: []string{"exit", "quit", "q"}, cmdFn: exitCommand, helpMsg: `Exit the shell.

	exit`},
	}

	sort.Sort(byFirstAlias(c.cmds))
	return c
}

// Register custom commands. Expects cf to be a func of type cmdfunc,
// returning only an error.
func (c *Commands) Register(cmdstr string, cf cmdfunc, helpMsg string) {
	for i := range c.cmds {
		if c.cmds[i].match(cmdstr) {
			c.cmds[i].cmdFn = cf
			return
		}
	}

	c.cmds = append(c.cmds, command{aliases: []string{cmdstr}, cmdFn: cf, helpMsg: helpMsg})
}

// Find will look up the command function for the given command input.
// If it cannot find the command it will default to noCmdAvailable().
// If the command is an empty string it will do nothing.
func (c *Commands) Find(cmdstr string) cmdfunc {
	if cmdstr == "" {
		return nullCommand
	}

	for _, v := range c.cmds {
		if v.match(cmdstr) {
			return v.cmdFn
		}
	}

	return noCmdAvailable
}

// Call takes a command to execute.
func (c *Commands) Call(cmdstr string, t *Term) error {
	vals := strings.SplitN(strings.TrimSpace(cmdstr), " ", 2)
	cmdname := vals[0]
	var args string
	if len(vals) > 1 {
		args = strings.TrimSpace(vals[1])
	}
	t.log.Debugf("command %q args %q", cmdname, args)
	return c.Find(cmdname)(t, args)
}

// Merge takes aliases defined in the config struct and merges them with the default aliases.
func (c *Commands) Merge(allAliases map[string][]string) {
	for i := range c.cmds {
		if c.cmds[i].builtinAliases != nil {
			c.cmds[i].aliases = append(c.cmds[i].aliases[:0], c.cmds[i].builtinAliases...)
		}
	}
	for i := range c.cmds {
		if aliases, ok := allAliases[c.cmds[i].aliases[0]]; ok {
			if c.cmds[i].builtinAliases == nil {
				c.cmds[i].builtinAliases = make([]string, len(c.cmds[i].aliases))
				copy(c.cmds[i].builtinAliases, c.cmds[i].aliases)
			}
			c.cmds[i].aliases = append(c.cmds[i].aliases, aliases...)
		}
	}
}

var errNoCmd = errors.New("command not available")

func noCmdAvailable(t *Term, args string) error {
	return errNoCmd
}

func nullCommand(t *Term, args string) error {
	return nil
}

func (c *Commands) help(t *Term, args string) error {
	if args != "" {
		for _, cmd := range c.cmds {
			for _, alias := range cmd.aliases {
				if alias == args {
					fmt.Fprintln(t.stdout, cmd.helpMsg)
					return nil
				}
			}
		}
		return errNoCmd
	}

	fmt.Fprintln(t.stdout, "The following commands are available:")

	for _, cgd := range commandGroupDescriptions {
		fmt.Fprintf(t.stdout, "\n%s:\n", cgd.description)
		w := new(tabwriter.Writer)
		w.Init(t.stdout, 0, 8, 0, '-', 0)
		for _, cmd := range c.cmds {
			if cmd.group != cgd.group {
				continue
			}
			h := firstLine(cmd.helpMsg)
			if len(cmd.aliases) > 1 {
				fmt.Fprintf(w, "    %s (alias: %s) \t %s\n", cmd.aliases[0], strings.Join(cmd.aliases[1:], " | "), h)
			} else {
				fmt.Fprintf(w, "    %s \t %s\n", cmd.aliases[0], h)
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintln(t.stdout)
	fmt.Fprintln(t.stdout, "Type help followed by a command for full documentation.")
	return nil
}

// ExitRequestError is returned by the exit command.
type ExitRequestError struct{}

func (ere ExitRequestError) Error() string {
	return ""
}

func exitCommand(t *Term, args string) error {
	return ExitRequestError{}
}

func filterSortAndOutput(t *Term, filter string, names []string) error {
	var re *regexp.Regexp
	if filter != "" {
		var err error
		re, err = regexp.Compile(filter)
		if err != nil {
			return fmt.Errorf("invalid filter argument: %s", err.Error())
		}
	}
	var data []string
	for _, name := range names {
		if re == nil || re.MatchString(name) {
			data = append(data, name)
		}
	}
	sort.Strings(data)
	for i, d := range data {
		// dedup, the same type is often defined by every unit that uses it
		if i > 0 && data[i-1] == d {
			continue
		}
		fmt.Fprintln(t.stdout, d)
	}
	return nil
}

func types(t *Term, args string) error {
	var names []string
	for _, typ := range t.m.Types() {
		if typ.Common().Name == "" {
			continue
		}
		names = append(names, t.m.TypeName(typ))
	}
	return filterSortAndOutput(t, args, names)
}

func vars(t *Term, args string) error {
	var names []string
	for _, v := range t.m.Variables() {
		if v.Name == "" || v.Declaration {
			continue
		}
		typ := "void"
		if vt, err := v.Resolve(t.m); err == nil && vt != nil {
			typ = t.m.TypeName(vt)
		}
		line := fmt.Sprintf("%s %s", v.Name, typ)
		if v.HasLocation {
			line += fmt.Sprintf(" @ %#x", v.Location)
		}
		names = append(names, line)
	}
	return filterSortAndOutput(t, args, names)
}

func funcs(t *Term, args string) error {
	var names []string
	for _, fn := range t.m.Functions() {
		if fn.Name == "" || !fn.HasCode() {
			continue
		}
		names = append(names, fn.Name)
	}
	return filterSortAndOutput(t, args, names)
}

// typeFromString returns the type named by s, which is a type name
// optionally prefixed by struct, union, enum or class. A bare identifier
// that is also the name of a variable is not a type.
func (t *Term) typeFromString(s string) (typedb.Type, bool) {
	fields := strings.Fields(s)
	switch {
	case len(fields) == 2 && isTypeKeyword(fields[0]):
		typ, err := lookupType(t.m, fields[0], fields[1])
		return typ, err == nil
	case len(fields) == 1:
		if _, err := t.m.FindVariable(fields[0]); err == nil {
			return nil, false
		}
		typ, err := lookupType(t.m, "", fields[0])
		return typ, err == nil
	}
	return nil, false
}

func whatisCommand(t *Term, args string) error {
	if len(args) == 0 {
		return fmt.Errorf("not enough arguments")
	}
	if typ, ok := t.typeFromString(args); ok {
		fmt.Fprintln(t.stdout, typeDefinition(t.m, typ))
		return nil
	}
	if fn, err := t.m.LookupFunction(args); err == nil {
		fmt.Fprintln(t.stdout, t.m.TypeName(fn))
		if fn.HasCode() {
			fmt.Fprintf(t.stdout, "Code: [%#x, %#x)\n", fn.LowPC, fn.HighPC)
		}
		return nil
	}
	inst, err := evalExpr(t.m, t.mem, args)
	if err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, inst.TypeName())
	if sz, err := inst.Size(); err == nil {
		fmt.Fprintf(t.stdout, "Size: %d\n", sz)
	}
	fmt.Fprintf(t.stdout, "Address: %#x\n", inst.Address)
	if t.conf.ShowLocationExpr {
		if v, err := t.m.LookupVariable(args); err == nil && len(v.LocationExpr) > 0 {
			fmt.Fprint(t.stdout, "Location: ")
			op.PrettyPrint(t.stdout, v.LocationExpr, t.m.PtrSize())
			fmt.Fprintln(t.stdout)
		}
	}
	return nil
}

// typeDefinition returns the C declaration of typ. Struct, union and enum
// types are written with their members.
func typeDefinition(m *typedb.SymbolManager, typ typedb.Type) string {
	var buf bytes.Buffer
	name := m.TypeName(typ)
	switch x := typ.(type) {
	case *typedb.Struct:
		writeMembers(&buf, m, name, &x.Structured)
	case *typedb.Union:
		writeMembers(&buf, m, name, &x.Structured)
	case *typedb.Enum:
		if x.Declaration {
			fmt.Fprintf(&buf, "%s (declaration)", name)
			break
		}
		fmt.Fprintf(&buf, "%s {\n", name)
		for _, e := range x.Enumerators {
			fmt.Fprintf(&buf, "\t%s = %d,\n", e.Name, e.Value)
		}
		buf.WriteString("}")
	case *typedb.Typedef:
		target := "void"
		if tt, err := x.Resolve(m); err == nil && tt != nil {
			target = m.TypeName(tt)
		}
		fmt.Fprintf(&buf, "typedef %s %s", target, x.Name)
	default:
		buf.WriteString(name)
	}
	if sz, err := m.SizeOf(typ); err == nil {
		fmt.Fprintf(&buf, "\nSize: %d", sz)
	}
	return buf.String()
}

func writeMembers(buf *bytes.Buffer, m *typedb.SymbolManager, name string, s *typedb.Structured) {
	if s.Declaration {
		fmt.Fprintf(buf, "%s (declaration)", name)
		return
	}
	fmt.Fprintf(buf, "%s {\n", name)
	w := tabwriter.NewWriter(buf, 0, 8, 1, ' ', 0)
	for _, mb := range s.Members {
		typ := "void"
		if mt, err := mb.Resolve(m); err == nil && mt != nil {
			typ = m.TypeName(mt)
		}
		decl := typ
		if mb.Name != "" {
			decl += " " + mb.Name
		}
		if mb.IsBitfield() {
			decl += fmt.Sprintf(" : %d", mb.BitSize)
		}
		comment := fmt.Sprintf("offset %d", mb.ByteOffset)
		if mb.IsBitfield() {
			comment += fmt.Sprintf(" bit %d", mb.BitOffset)
		}
		if mb.Inherited {
			comment += " base class"
		}
		fmt.Fprintf(w, "\t%s;\t// %s\n", decl, comment)
	}
	w.Flush()
	buf.WriteString("}")
}

func nodeCommand(t *Term, args string) error {
	off, err := strconv.ParseUint(args, 0, 64)
	if err != nil {
		return fmt.Errorf("invalid offset %q: %v", args, err)
	}
	sym, err := t.m.LookupByOffset(dwarf.Offset(off))
	if err != nil {
		return err
	}
	c := sym.Common()
	name := c.Name
	if name == "" {
		name = "<anonymous>"
	}
	fmt.Fprintf(t.stdout, "%#x %s %s (unit %d)\n", c.Offset, sym.Kind(), name, c.Unit)
	if typ, ok := sym.(typedb.Type); ok {
		fmt.Fprintf(t.stdout, "Type: %s\n", t.m.TypeName(typ))
		if sz, err := t.m.SizeOf(typ); err == nil {
			fmt.Fprintf(t.stdout, "Size: %d\n", sz)
		}
	}
	if refs := sym.References(); len(refs) > 0 {
		fmt.Fprint(t.stdout, "References:")
		for _, ref := range refs {
			fmt.Fprintf(t.stdout, " %#x", ref)
		}
		fmt.Fprintln(t.stdout)
	}
	return nil
}

func statsCommand(t *Term, args string) error {
	verbose := args == "-v"
	if args != "" && !verbose {
		return fmt.Errorf("unknown option %q", args)
	}
	stats := t.m.Stats()
	kinds := make([]typedb.Kind, 0, len(stats))
	for k := range stats {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	w := tabwriter.NewWriter(t.stdout, 0, 8, 1, ' ', 0)
	for _, k := range kinds {
		fmt.Fprintf(w, "%s\t%d\n", k, stats[k])
	}
	fmt.Fprintf(w, "total\t%d\n", t.m.Len())
	w.Flush()

	issues := t.m.Issues()
	fmt.Fprintf(t.stdout, "%d issues\n", len(issues))
	if verbose {
		for _, issue := range issues {
			fmt.Fprintf(t.stdout, "\t%v\n", issue)
		}
	}
	return nil
}

func printVar(t *Term, args string) error {
	if len(args) == 0 {
		return fmt.Errorf("not enough arguments")
	}
	inst, err := evalExpr(t.m, t.mem, args)
	if err != nil {
		return err
	}
	fmt.Fprintln(t.stdout, inst.Load(t.loadConfig()).String())
	return nil
}

// splitArgs splits args the way a shell would.
func splitArgs(args string) ([]string, error) {
	v, err := argv.Argv(args,
		func(s string) (string, error) {
			return "", fmt.Errorf("Backtick not supported in '%s'", s)
		},
		nil)
	if err != nil {
		return nil, err
	}
	if len(v) != 1 {
		return nil, fmt.Errorf("illegal command line '%s'", args)
	}
	return v[0], nil
}

func examineMemoryCmd(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}

	var (
		address uint64
		isExpr  bool
		ok      bool
	)

	// Default value
	priFmt := byte('x')
	count := 1
	size := 1

	for i := 0; i < len(v); i++ {
		switch v[i] {
		case "-fmt":
			i++
			if i >= len(v) {
				return fmt.Errorf("expected argument after -fmt")
			}
			fmtMapToPriFmt := map[string]byte{
				"oct":         'o',
				"octal":       'o',
				"hex":         'x',
				"hexadecimal": 'x',
				"dec":         'd',
				"decimal":     'd',
				"bin":         'b',
				"binary":      'b',
			}
			priFmt, ok = fmtMapToPriFmt[v[i]]
			if !ok {
				return fmt.Errorf("%q is not a valid format", v[i])
			}
		case "-count", "-len":
			i++
			if i >= len(v) {
				return fmt.Errorf("expected argument after -count/-len")
			}
			var err error
			count, err = strconv.Atoi(v[i])
			if err != nil || count <= 0 {
				return fmt.Errorf("count/len must be a positive integer")
			}
		case "-size":
			i++
			if i >= len(v) {
				return fmt.Errorf("expected argument after -size")
			}
			var err error
			size, err = strconv.Atoi(v[i])
			if err != nil || size <= 0 || size > 8 {
				return fmt.Errorf("size must be a positive integer (<=8)")
			}
		case "-x":
			isExpr = true
		default:
			if i != len(v)-1 {
				return fmt.Errorf("unknown option %q", v[i])
			}
			if isExpr {
				inst, err := evalExpr(t.m, t.mem, v[i])
				if err != nil {
					return err
				}
				address = inst.Address
				break
			}
			address, err = strconv.ParseUint(v[i], 0, 64)
			if err != nil {
				return fmt.Errorf("convert address into uintptr type failed, %s", err)
			}
		}
	}

	if count*size > 1000 {
		return fmt.Errorf("read memory range (count*size) must be less than or equal to 1000 bytes")
	}

	if address == 0 {
		return fmt.Errorf("no address specified")
	}

	memArea := make([]byte, count*size)
	n, err := t.mem.ReadMemory(memArea, address)
	if err != nil {
		return err
	}
	fmt.Fprint(t.stdout, prettyExamineMemory(address, memArea[:n], t.m.ByteOrder(), priFmt, size))
	return nil
}

func disassCommand(t *Term, args string) error {
	v, err := splitArgs(args)
	if err != nil {
		return err
	}

	flavour := IntelFlavour
	if len(v) >= 2 && v[0] == "-f" {
		flavour, err = parseFlavour(v[1])
		if err != nil {
			return err
		}
		v = v[2:]
	}

	var (
		fn         *typedb.Function
		start, end uint64
	)
	switch {
	case len(v) == 3 && v[0] == "-a":
		if start, err = strconv.ParseUint(v[1], 0, 64); err != nil {
			return fmt.Errorf("wrong argument: %q is not a number", v[1])
		}
		if end, err = strconv.ParseUint(v[2], 0, 64); err != nil {
			return fmt.Errorf("wrong argument: %q is not a number", v[2])
		}
		if end <= start || end-start > 1<<20 {
			return fmt.Errorf("invalid address range [%#x, %#x)", start, end)
		}
	case len(v) == 1:
		if pc, err := strconv.ParseUint(v[0], 0, 64); err == nil {
			fn, err = t.m.FunctionAt(pc)
			if err != nil {
				return err
			}
		} else {
			fn, err = t.m.LookupFunction(v[0])
			if err != nil {
				return err
			}
		}
		if !fn.HasCode() {
			return fmt.Errorf("function %s has no code", fn.Name)
		}
		start, end = fn.LowPC, fn.HighPC
	default:
		return errors.New("wrong number of arguments")
	}

	disasm, err := disassemble(t.m, t.mem, start, end, flavour)
	if err != nil {
		return err
	}
	disasmPrint(disasm, t.stdout, fn)
	return nil
}
