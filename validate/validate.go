// Package validate checks runtime values against resolved type metadata.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/strata"
	"github.com/syssam/strata/resolve"
	"github.com/syssam/strata/schema"
)

// legacyPropertyName predates the camelCase rule and stays accepted.
const legacyPropertyName = "SF_ID"

var propertyNameRule = regexp.MustCompile(`^[a-z][a-zA-Z0-9]+$`)

// Date-like layouts accepted for the built-in temporal scalars.
var layouts = map[string]string{
	"Date":     "2006-01-02",
	"DateTime": time.RFC3339Nano,
	"Time":     "15:04:05.999999999",
}

// Validator validates values for the types served by a resolver.
type Validator struct {
	resolver *resolve.Resolver
}

// New returns a validator over r.
func New(r *resolve.Resolver) *Validator {
	return &Validator{resolver: r}
}

func (v *Validator) resolveType(name string) (*resolve.Type, error) {
	return v.resolver.Type(name,
		resolve.PrimitiveTypes(resolve.GraphQL),
		resolve.IncludeMetaFields(true),
	)
}

// ValidateTypeName fails if name is not a known type.
func (v *Validator) ValidateTypeName(name string) error {
	_, err := v.resolveType(name)
	return err
}

// ValidateCode validates code as the code of a record of the given type.
func (v *Validator) ValidateCode(typeName string, code any) error {
	return v.ValidateProperty(typeName, "code", code)
}

// ValidatePropertyName enforces camelCase property names.
func ValidatePropertyName(name string) error {
	if name == legacyPropertyName || propertyNameRule.MatchString(name) {
		return nil
	}
	return fmt.Errorf("%w: Invalid property name `%s`. Must be a camelCase string starting with a lower case letter",
		strata.ErrUserInput, name)
}

// ValidateProperty validates value for property on typeName. A nil value is
// always accepted.
func (v *Validator) ValidateProperty(typeName, property string, value any) error {
	return v.ValidatePropertyAs(typeName, property, value, "")
}

// ValidatePropertyAs is ValidateProperty reporting alias, when not empty, as
// the property name in errors.
func (v *Validator) ValidatePropertyAs(typeName, property string, value any, alias string) error {
	if value == nil {
		return nil
	}
	t, err := v.resolveType(typeName)
	if err != nil {
		return err
	}
	p, ok := t.Property(property)
	if !ok {
		return strata.NewUnknownPropertyError(typeName, property)
	}
	name := property
	if alias != "" {
		name = alias
	}
	if p.IsRelationship() {
		return v.relationship(typeName, name, p, value)
	}
	return v.value(typeName, name, p, value)
}

// =============================================================================
// Relationships
// =============================================================================

func (v *Validator) relationship(typeName, name string, p *resolve.Property, value any) error {
	fail := func(reason string) error {
		return strata.NewValidationError(typeName, name, value, reason)
	}
	rel := p.Relationship
	if !rel.Writable() {
		return fail("Cannot write a relationship derived from a cypher query")
	}
	entries, ok := normalize(value)
	if !ok {
		return fail("Must be a code, an object with a code, or a list of them")
	}
	if len(entries) > 1 && !rel.HasMany {
		return fail("Can only have one " + rel.EndType)
	}
	for _, entry := range entries {
		code, ok := entry["code"]
		if !ok || code == nil {
			return fail("Each related record must have a code")
		}
		if err := v.ValidatePropertyAs(rel.EndType, "code", code, name); err != nil {
			return err
		}
		for key, val := range entry {
			if key == "code" {
				continue
			}
			if rel.Kind != schema.KindRichRelationship {
				return fail(fmt.Sprintf("`%s` does not accept relationship properties", name))
			}
			edge, ok := rel.Properties.Get(key)
			if !ok {
				return strata.NewUnknownPropertyError(rel.Name, key)
			}
			if val == nil {
				continue
			}
			if err := v.value(rel.Name, key, edge, val); err != nil {
				return err
			}
		}
	}
	return nil
}

// normalize turns a relationship value into a list of {code, ...props}
// entries. Bare codes become {code}.
func normalize(value any) ([]map[string]any, bool) {
	switch val := value.(type) {
	case string:
		return []map[string]any{{"code": val}}, true
	case map[string]any:
		return []map[string]any{val}, true
	case []string:
		out := make([]map[string]any, len(val))
		for i, code := range val {
			out[i] = map[string]any{"code": code}
		}
		return out, true
	case []any:
		out := make([]map[string]any, 0, len(val))
		for _, item := range val {
			entries, ok := normalize(item)
			if !ok || len(entries) != 1 {
				return nil, false
			}
			out = append(out, entries[0])
		}
		return out, true
	case []map[string]any:
		return val, true
	}
	return nil, false
}

// =============================================================================
// Values
// =============================================================================

func (v *Validator) value(typeName, name string, p *resolve.Property, value any) error {
	fail := func(reason string) error {
		return strata.NewValidationError(typeName, name, value, reason)
	}
	if p.Kind == schema.KindEnum {
		e, err := v.resolver.Enum(p.Type)
		if err != nil {
			return err
		}
		s, ok := value.(string)
		if !ok || !e.Contains(s) {
			return fail("Must be a valid enum: " + strings.Join(e.Values(), ", "))
		}
		return nil
	}

	switch p.Type {
	case "Boolean":
		if _, ok := value.(bool); !ok {
			return fail("Must be a Boolean")
		}
	case "Float":
		if _, ok := finite(value); !ok {
			return fail("Must be a finite floating point number")
		}
	case "Int":
		f, ok := finite(value)
		if !ok || f != math.Trunc(f) {
			return fail("Must be a finite integer")
		}
	case "Date", "DateTime", "Time":
		s, ok := value.(string)
		if !ok {
			return fail("Must be a string")
		}
		if _, err := time.Parse(layouts[p.Type], s); err != nil {
			return fail(fmt.Sprintf("Must be a valid %s", p.Type))
		}
	case "String":
		s, ok := value.(string)
		if !ok {
			return fail("Must be a string")
		}
		if p.Validator != nil && !p.Validator.MatchString(s) {
			reason := "Must match pattern " + p.Validator.String()
			if n, ok := p.Validator.MaxLength(); ok {
				reason += fmt.Sprintf(" and be no more than %d characters", n)
			}
			return fail(reason)
		}
	}
	return nil
}

// finite returns value as a float64 if it is a finite number.
func finite(value any) (float64, bool) {
	var f float64
	switch n := value.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	return f, !math.IsInf(f, 0) && !math.IsNaN(f)
}
