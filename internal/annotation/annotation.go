package annotation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Annotation is one declarative marker parsed from a breeze struct tag.
type Annotation struct {
	Kind   string
	Params []Param
}

// Param is a single annotation argument. Name is empty for positional arguments.
type Param struct {
	Name  string
	Value string
}

// Parse splits a breeze tag value into its annotations.
// Entries are comma separated; each entry is one of
//
//	kind
//	kind=value
//	kind(value, Name=value, ...)
//
// Commas inside parentheses or quotes do not split entries. Surrounding
// single or double quotes are stripped from values.
func Parse(tag string) ([]Annotation, error) {
	var anns []Annotation
	for _, entry := range splitTop(tag, ',') {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ann, err := parseEntry(entry)
		if err != nil {
			return nil, err
		}
		anns = append(anns, ann)
	}
	return anns, nil
}

func parseEntry(entry string) (Annotation, error) {
	if open := strings.IndexByte(entry, '('); open >= 0 {
		if !strings.HasSuffix(entry, ")") {
			return Annotation{}, fmt.Errorf("annotation %q: missing closing parenthesis", entry)
		}
		kind := strings.TrimSpace(entry[:open])
		if kind == "" {
			return Annotation{}, fmt.Errorf("annotation %q: missing kind before arguments", entry)
		}
		ann := Annotation{Kind: kind}
		for _, arg := range splitTop(entry[open+1:len(entry)-1], ',') {
			arg = strings.TrimSpace(arg)
			if arg == "" {
				continue
			}
			ann.Params = append(ann.Params, parseParam(arg))
		}
		return ann, nil
	}
	if eq := strings.IndexByte(entry, '='); eq >= 0 {
		kind := strings.TrimSpace(entry[:eq])
		if kind == "" {
			return Annotation{}, fmt.Errorf("annotation %q: missing kind before value", entry)
		}
		return Annotation{
			Kind:   kind,
			Params: []Param{{Value: unquote(strings.TrimSpace(entry[eq+1:]))}},
		}, nil
	}
	return Annotation{Kind: entry}, nil
}

// parseParam reads one argument. "Name=value" yields a named parameter;
// anything else (including quoted values containing '=') is positional.
func parseParam(arg string) Param {
	if eq := strings.IndexByte(arg, '='); eq >= 0 {
		name := strings.TrimSpace(arg[:eq])
		if name != "" && !strings.ContainsAny(name, `'"`) {
			return Param{Name: name, Value: unquote(strings.TrimSpace(arg[eq+1:]))}
		}
	}
	return Param{Value: unquote(arg)}
}

// splitTop splits s on sep at nesting depth zero, honoring parentheses and quotes.
func splitTop(s string, sep byte) []string {
	var (
		parts []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Get returns the value of the named argument. The name match ignores case.
func (a Annotation) Get(name string) (string, bool) {
	for _, p := range a.Params {
		if p.Name != "" && strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return "", false
}

// Positional returns the i-th unnamed argument.
func (a Annotation) Positional(i int) (string, bool) {
	n := 0
	for _, p := range a.Params {
		if p.Name != "" {
			continue
		}
		if n == i {
			return p.Value, true
		}
		n++
	}
	return "", false
}

// Arg resolves an argument by name first, then by position, so both
// maxLength(50) and maxLength(Length=50) bind the same way.
func (a Annotation) Arg(name string, pos int) (string, bool) {
	if v, ok := a.Get(name); ok {
		return v, true
	}
	return a.Positional(pos)
}

// LowerCamel lowercases the leading rune: "MaximumLength" becomes "maximumLength".
func LowerCamel(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsUpper(r) {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

// Literal interprets a raw argument value as the closest Go literal:
// bool, then integer, then float, falling back to the string itself.
func Literal(s string) interface{} {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
