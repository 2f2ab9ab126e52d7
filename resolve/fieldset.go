package resolve

import (
	"slices"
	"strings"
	"unicode"

	"github.com/syssam/strata/schema"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Reserved fieldset names.
const (
	SelfFieldset                = "self"
	MiscFieldset                = "misc"
	MinimumViableRecordFieldset = "minimumViableRecord"
)

// Fieldset is a named, ordered group of properties.
type Fieldset struct {
	Name        string
	Heading     string
	Description string
	// IsSingleField marks a fieldset holding exactly one property declared
	// with fieldset "self".
	IsSingleField bool
	Properties    *schema.OrderedMap[*Property]
}

var titler = cases.Title(language.English, cases.NoLower)

// heading derives a display heading from a camelCase name.
func heading(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return titler.String(b.String())
}

// groupFieldsets buckets properties. The order is: minimum viable record
// (when requested), declared fieldsets in declaration order, undeclared and
// single-field fieldsets in order of first use, misc, then meta. Empty
// fieldsets are dropped.
func groupFieldsets(def *schema.TypeDefinition, props *schema.OrderedMap[*Property], opts Options) *schema.OrderedMap[*Fieldset] {
	buckets := schema.NewOrderedMap[*Fieldset]()
	add := func(name, head, description string) *Fieldset {
		if fs, ok := buckets.Get(name); ok {
			return fs
		}
		if head == "" {
			head = heading(name)
		}
		fs := &Fieldset{Name: name, Heading: head, Description: description, Properties: schema.NewOrderedMap[*Property]()}
		buckets.Set(name, fs)
		return fs
	}

	if opts.UseMinimumViableRecord {
		add(MinimumViableRecordFieldset, "Minimum viable record", "The minimum information needed to create a record")
	}
	for name, fs := range def.Fieldsets.All() {
		if name == MiscFieldset || name == MetaFieldset || name == MinimumViableRecordFieldset {
			continue
		}
		add(name, fs.Heading, fs.Description)
	}

	misc := &Fieldset{Name: MiscFieldset, Properties: schema.NewOrderedMap[*Property]()}
	metaSet := &Fieldset{Name: MetaFieldset, Heading: "Metadata", Properties: schema.NewOrderedMap[*Property]()}
	for name, p := range props.All() {
		switch {
		case opts.UseMinimumViableRecord && slices.Contains(def.MinimumViableRecord, name):
			add(MinimumViableRecordFieldset, "", "").Properties.Set(name, p)
		case p.IsMetaField || p.Fieldset == MetaFieldset:
			metaSet.Properties.Set(name, p)
		case p.Fieldset == SelfFieldset:
			head := p.Label
			if head == "" {
				head = heading(name)
			}
			fs := add(name, head, p.Description)
			fs.IsSingleField = true
			fs.Properties.Set(name, p)
		case p.Fieldset == "" || p.Fieldset == MiscFieldset:
			misc.Properties.Set(name, p)
		default:
			add(p.Fieldset, "", "").Properties.Set(name, p)
		}
	}

	out := schema.NewOrderedMap[*Fieldset]()
	for name, fs := range buckets.All() {
		if fs.Properties.Len() > 0 {
			out.Set(name, fs)
		}
	}
	if misc.Properties.Len() > 0 {
		if def.Fieldsets.Has(MiscFieldset) {
			declared, _ := def.Fieldsets.Get(MiscFieldset)
			misc.Heading, misc.Description = declared.Heading, declared.Description
		}
		if misc.Heading == "" {
			misc.Heading = "General"
			n := out.Len()
			if out.Has(MinimumViableRecordFieldset) {
				n--
			}
			if n > 0 {
				misc.Heading = "Miscellaneous"
			}
		}
		out.Set(MiscFieldset, misc)
	}
	if metaSet.Properties.Len() > 0 {
		out.Set(MetaFieldset, metaSet)
	}
	return out
}
