package logflags

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

var parser = false
var registry = false
var instance = false
var memory = false
var terminal = false

var logOut io.WriteCloser

var textFormatterInstance = &logrus.TextFormatter{
	DisableColors:   true,
	FullTimestamp:   true,
	TimestampFormat: "2006-01-02T15:04:05Z07:00",
}

func makeLogger(level logrus.Level, fields Fields) Logger {
	if lf := loggerFactory; lf != nil {
		return lf(level, fields, logOut)
	}
	logger := logrus.New().WithFields(logrus.Fields(fields))
	logger.Logger.Formatter = textFormatterInstance
	if logOut != nil {
		logger.Logger.Out = logOut
	}
	logger.Logger.Level = level
	return &logrusLogger{logger}
}

// makeFlaggableLogger returns a logger that logs at debug level if flag is
// set and only errors otherwise.
func makeFlaggableLogger(flag bool, fields Fields) Logger {
	if flag {
		return makeLogger(logrus.DebugLevel, fields)
	}
	return makeLogger(logrus.ErrorLevel, fields)
}

// Parser returns true if the DWARF parser should log.
func Parser() bool {
	return parser
}

// ParserLogger returns a logger for the DWARF parser.
func ParserLogger() Logger {
	return makeFlaggableLogger(parser, Fields{"layer": "parser"})
}

// Registry returns true if the symbol registry should log.
func Registry() bool {
	return registry
}

// RegistryLogger returns a logger for the symbol registry.
func RegistryLogger() Logger {
	return makeFlaggableLogger(registry, Fields{"layer": "registry"})
}

// Instance returns true if memory decoding should log.
func Instance() bool {
	return instance
}

// InstanceLogger returns a logger for memory decoding.
func InstanceLogger() Logger {
	return makeFlaggableLogger(instance, Fields{"layer": "instance"})
}

// Memory returns true if the memory readers should log every read.
func Memory() bool {
	return memory
}

// MemoryLogger returns a logger for the memory readers.
func MemoryLogger() Logger {
	return makeFlaggableLogger(memory, Fields{"layer": "memory"})
}

// Terminal returns true if the interactive shell should log.
func Terminal() bool {
	return terminal
}

// TerminalLogger returns a logger for the interactive shell.
func TerminalLogger() Logger {
	return makeFlaggableLogger(terminal, Fields{"layer": "terminal"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets the logging flags based on the contents of logstr.
// If logDest is not empty logs will be redirected to the file descriptor or
// file path specified by logDest.
func Setup(logFlag bool, logstr, logDest string) error {
	if logDest != "" {
		n, err := strconv.Atoi(logDest)
		if err == nil {
			logOut = os.NewFile(uintptr(n), "dwarfdb-logs")
		} else {
			fh, err := os.Create(logDest)
			if err != nil {
				return fmt.Errorf("could not create log file: %v", err)
			}
			logOut = fh
		}
	}
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	if !logFlag {
		log.SetOutput(io.Discard)
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "parser"
	}
	v := strings.Split(logstr, ",")
	for _, logcmd := range v {
		switch logcmd {
		case "parser":
			parser = true
		case "registry":
			registry = true
		case "instance":
			instance = true
		case "memory":
			memory = true
		case "terminal":
			terminal = true
		default:
			return fmt.Errorf("unknown log output %q", logcmd)
		}
	}
	return nil
}

// Close closes the logger output.
func Close() {
	if logOut != nil {
		logOut.Close()
	}
}
