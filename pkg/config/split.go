package config

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// Like strings.Fields but ignores spaces inside areas surrounded
// by the specified quote character.
// To specify a single quote use backslash to escape it: '\''
func SplitQuotedFields(in string, quote rune) []string {
	type stateEnum int
	const (
		inSpace stateEnum = iota
		inField
		inQuote
		inQuoteEscaped
	)
	state := inSpace
	r := []string{}
	var buf bytes.Buffer

	for _, ch := range in {
		switch state {
		case inSpace:
			if ch == quote {
				state = inQuote
			} else if !unicode.IsSpace(ch) {
				buf.WriteRune(ch)
				state = inField
			}

		case inField:
			if ch == quote {
				state = inQuote
			} else if unicode.IsSpace(ch) {
				r = append(r, buf.String())
				buf.Reset()
				state = inSpace
			} else {
				buf.WriteRune(ch)
			}

		case inQuote:
			if ch == quote {
				state = inField
			} else if ch == '\\' {
				state = inQuoteEscaped
			} else {
				buf.WriteRune(ch)
			}

		case inQuoteEscaped:
			buf.WriteRune(ch)
			state = inQuote
		}
	}

	if buf.Len() != 0 {
		r = append(r, buf.String())
	}

	return r
}

// Split2PartsBySpace splits s at the first whitespace character.
func Split2PartsBySpace(s string) []string {
	v := strings.SplitN(strings.TrimSpace(s), " ", 2)
	for i := range v {
		v[i] = strings.TrimSpace(v[i])
	}
	return v
}

// ConfigureFindFieldByName returns the field of conf whose tag is name.
func ConfigureFindFieldByName(conf interface{}, name, tag string) reflect.Value {
	rv := reflect.ValueOf(conf).Elem()
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		if rt.Field(i).Tag.Get(tag) == name {
			return rv.Field(i)
		}
	}
	return reflect.Value{}
}

// ConfigureList writes every field of conf that has a tag.
func ConfigureList(w io.Writer, conf interface{}, tag string) {
	rv := reflect.ValueOf(conf).Elem()
	rt := rv.Type()
	for i := 0; i < rv.NumField(); i++ {
		name := rt.Field(i).Tag.Get(tag)
		if name == "" {
			continue
		}
		writeField(w, rv.Field(i), name)
	}
}

// ConfigureListByName returns the line ConfigureList would write for the
// field called name, or the empty string.
func ConfigureListByName(conf interface{}, name, tag string) string {
	if name == "" {
		return ""
	}
	field := ConfigureFindFieldByName(conf, name, tag)
	if !field.IsValid() {
		return ""
	}
	var buf bytes.Buffer
	writeField(&buf, field, name)
	return buf.String()
}

func writeField(w io.Writer, field reflect.Value, name string) {
	switch field.Kind() {
	case reflect.Ptr:
		if field.IsNil() {
			fmt.Fprintf(w, "%s\t<not defined>\n", name)
		} else {
			fmt.Fprintf(w, "%s\t%v\n", name, field.Elem())
		}
	case reflect.String:
		fmt.Fprintf(w, "%s\t%q\n", name, field)
	case reflect.Uint64:
		fmt.Fprintf(w, "%s\t%#x\n", name, field.Uint())
	default:
		fmt.Fprintf(w, "%s\t%v\n", name, field)
	}
}

// ConfigureSetSimple parses rest and stores it in field. Integers, bools,
// strings and lists of them are supported, pointers are allocated as
// needed.
func ConfigureSetSimple(rest string, cfgname string, field reflect.Value) error {
	simpleArg := func(typ reflect.Type, arg string) (reflect.Value, error) {
		switch typ.Kind() {
		case reflect.Int:
			n, err := strconv.Atoi(arg)
			if err != nil {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number", cfgname)
			}
			if n < -1 {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be a number greater than or equal to -1", cfgname)
			}
			return reflect.ValueOf(&n), nil
		case reflect.Uint64:
			n, err := strconv.ParseUint(arg, 0, 64)
			if err != nil {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be an unsigned number", cfgname)
			}
			return reflect.ValueOf(&n), nil
		case reflect.Bool:
			if arg != "true" && arg != "false" {
				return reflect.ValueOf(nil), fmt.Errorf("argument to %q must be true or false", cfgname)
			}
			v := arg == "true"
			return reflect.ValueOf(&v), nil
		case reflect.String:
			return reflect.ValueOf(&arg), nil
		default:
			return reflect.ValueOf(nil), fmt.Errorf("unsupported type for configuration key %q", cfgname)
		}
	}

	switch field.Kind() {
	case reflect.Ptr:
		val, err := simpleArg(field.Type().Elem(), rest)
		if err != nil {
			return err
		}
		field.Set(val)
	case reflect.Slice:
		args := SplitQuotedFields(rest, '"')
		s := reflect.MakeSlice(field.Type(), 0, len(args))
		for _, arg := range args {
			val, err := simpleArg(field.Type().Elem(), arg)
			if err != nil {
				return err
			}
			s = reflect.Append(s, val.Elem())
		}
		field.Set(s)
	default:
		val, err := simpleArg(field.Type(), rest)
		if err != nil {
			return err
		}
		field.Set(val.Elem())
	}
	return nil
}
