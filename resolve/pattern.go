package resolve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
)

// StringValidator is a compiled string pattern.
type StringValidator struct {
	Name   string // pattern name in the schema
	Source string // regular expression source
	Flags  string // flags as written in the schema
	re     *regexp.Regexp
}

// MatchString reports whether s matches the pattern.
func (v *StringValidator) MatchString(s string) bool {
	return v.re.MatchString(s)
}

// String renders the pattern as /source/flags.
func (v *StringValidator) String() string {
	return "/" + v.Source + "/" + v.Flags
}

var lengthQuantifier = regexp.MustCompile(`\{\d*,(\d+)\}`)

// MaxLength returns N when the pattern encodes a {min,N} length quantifier.
func (v *StringValidator) MaxLength() (int, bool) {
	m := lengthQuantifier.FindStringSubmatch(v.Source)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}

// compilePattern compiles a schema pattern. Flags i, m and s map to inline
// RE2 flags; g, u and y have no meaning for a whole-value match and are
// ignored.
func compilePattern(name string, p *schema.StringPattern) (*StringValidator, error) {
	var inline strings.Builder
	for _, f := range p.Flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		case 'g', 'u', 'y':
		default:
			return nil, fmt.Errorf("%w: string pattern `%s` has unsupported flag %q", strata.ErrUserInput, name, f)
		}
	}
	src := p.Pattern
	if inline.Len() > 0 {
		src = "(?" + inline.String() + ")" + src
	}
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("%w: string pattern `%s`: %v", strata.ErrUserInput, name, err)
	}
	return &StringValidator{Name: name, Source: p.Pattern, Flags: p.Flags, re: re}, nil
}

func resolveStringValidator(snap *schema.Snapshot, name string) (*StringValidator, error) {
	p, ok := snap.StringPatterns.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: invalid string pattern `%s`", strata.ErrUserInput, name)
	}
	return compilePattern(name, p)
}
