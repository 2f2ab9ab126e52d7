package graphql

import (
	"fmt"
	"strings"
	"unicode"
)

// description writes text as a block string description at the given
// indentation. Empty text writes nothing.
func description(b *strings.Builder, indent, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	text = strings.ReplaceAll(text, `"""`, `\"""`)
	b.WriteString(indent + `"""` + "\n")
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(indent + strings.TrimRight(line, " \t\r") + "\n")
	}
	b.WriteString(indent + `"""` + "\n")
}

// deprecated returns the @deprecated directive for a non-empty reason.
func deprecated(reason string) string {
	if strings.TrimSpace(reason) == "" {
		return ""
	}
	return " @deprecated(reason: " + quote(reason) + ")"
}

// quote returns s as a GraphQL string literal.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// arguments renders an argument list, or nothing when there are none.
func arguments(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return "(" + strings.Join(args, ", ") + ")"
}

// EnumValueName turns an enum option into a valid GraphQL enum value name.
// Characters outside [_A-Za-z0-9] become underscores; names that would
// start with a digit, or clash with true, false or null, get a leading
// underscore.
func EnumValueName(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	name := b.String()
	switch {
	case name == "":
		return "_"
	case name[0] >= '0' && name[0] <= '9', name == "true", name == "false", name == "null":
		return "_" + name
	}
	return name
}
