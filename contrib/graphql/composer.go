package graphql

import (
	"fmt"
	"strings"

	"github.com/syssam/strata/resolve"
	"github.com/syssam/strata/schema"

	"github.com/go-openapi/inflect"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// SchemaHook is called with the composed SDL before it is checked. It can
// modify the document or append definitions.
type SchemaHook func(sdl string) (string, error)

// Composer builds a GraphQL SDL document from resolved schema metadata.
//
// Usage:
//
//	c, err := graphql.NewComposer(resolver,
//	    graphql.WithSchemaHook(func(sdl string) (string, error) {
//	        return sdl + "\ndirective @auth on FIELD_DEFINITION\n", nil
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	sdl, err := c.Compose()
type Composer struct {
	resolver *resolve.Resolver

	// metaFields exposes the audit meta-fields on object and join types.
	metaFields bool
	// syntheticFields exposes cypher-derived and recursive fields.
	syntheticFields bool
	// pagination adds first/offset arguments to list fields.
	pagination bool

	hooks []SchemaHook
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer) error

// NewComposer returns a composer reading from r.
func NewComposer(r *resolve.Resolver, opts ...ComposerOption) (*Composer, error) {
	if r == nil {
		return nil, fmt.Errorf("graphql: nil resolver")
	}
	c := &Composer{
		resolver:        r,
		metaFields:      true,
		syntheticFields: true,
		pagination:      true,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// =============================================================================
// Composer options
// =============================================================================

// WithMetaFields toggles the audit meta-fields. Default is true.
func WithMetaFields(enabled bool) ComposerOption {
	return func(c *Composer) error {
		c.metaFields = enabled
		return nil
	}
}

// WithSyntheticFields toggles cypher-derived fields. Default is true.
func WithSyntheticFields(enabled bool) ComposerOption {
	return func(c *Composer) error {
		c.syntheticFields = enabled
		return nil
	}
}

// WithPagination toggles first/offset arguments on list fields. Default is true.
func WithPagination(enabled bool) ComposerOption {
	return func(c *Composer) error {
		c.pagination = enabled
		return nil
	}
}

// WithSchemaHook adds hooks run, in order, on the composed document.
func WithSchemaHook(hooks ...SchemaHook) ComposerOption {
	return func(c *Composer) error {
		for _, h := range hooks {
			if h == nil {
				return fmt.Errorf("graphql: nil schema hook")
			}
		}
		c.hooks = append(c.hooks, hooks...)
		return nil
	}
}

// =============================================================================
// Composition
// =============================================================================

// staticDefs open every document.
var staticDefs = []string{
	"scalar DateTime",
	"scalar Date",
	"scalar Time",
	`directive @deprecated(
  reason: String = "No longer supported"
) on FIELD_DEFINITION | ENUM_VALUE | ARGUMENT_DEFINITION`,
}

// Definitions returns the SDL document as fragments, one per definition.
func (c *Composer) Definitions() ([]string, error) {
	opts := []resolve.Option{
		resolve.PrimitiveTypes(resolve.GraphQL),
		resolve.IncludeMetaFields(c.metaFields),
		resolve.IncludeSyntheticFields(c.syntheticFields),
	}
	types, err := c.resolver.Types(opts...)
	if err != nil {
		return nil, err
	}
	enums, err := c.resolver.Enums()
	if err != nil {
		return nil, err
	}

	defs := append([]string(nil), staticDefs...)
	for _, t := range types {
		defs = append(defs, c.objectType(t))
	}
	for _, j := range joinTypes(types) {
		defs = append(defs, c.joinType(j))
	}
	if len(types) > 0 {
		defs = append(defs, c.queryType(types))
	}
	for _, e := range enums.All() {
		def, err := enumType(e)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

// Compose returns the SDL document. The document is parsed before it is
// returned; a document that does not parse is an error.
func (c *Composer) Compose() (string, error) {
	defs, err := c.Definitions()
	if err != nil {
		return "", err
	}
	sdl := strings.Join(defs, "\n\n") + "\n"
	for _, h := range c.hooks {
		if sdl, err = h(sdl); err != nil {
			return "", fmt.Errorf("graphql: schema hook: %w", err)
		}
	}
	if _, err := Parse(sdl); err != nil {
		return "", err
	}
	return sdl, nil
}

// Parse parses an SDL document without validating it against the built-in
// directives, which the document redeclares.
func Parse(sdl string) (*ast.SchemaDocument, error) {
	doc, err := parser.ParseSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, fmt.Errorf("graphql: composed schema does not parse: %w", err)
	}
	return doc, nil
}

func (c *Composer) objectType(t *resolve.Type) string {
	var b strings.Builder
	description(&b, "", t.Description)
	fmt.Fprintf(&b, "type %s {\n", t.Name)
	for _, p := range t.Properties.All() {
		c.field(&b, p)
	}
	b.WriteString("}")
	return b.String()
}

func (c *Composer) field(b *strings.Builder, p *resolve.Property) {
	description(b, "  ", p.Description)
	rel := p.Relationship
	if rel == nil {
		fmt.Fprintf(b, "  %s: %s%s\n", p.Name, p.Type, deprecated(p.DeprecationReason))
		return
	}

	typ, args := rel.EndType, ""
	if rel.HasMany {
		typ = "[" + typ + "]"
		args = c.paginationArgs()
	}
	var directive string
	if rel.Cypher != "" {
		directive = fmt.Sprintf(" @cypher(statement: %s)", quote(rel.Cypher))
	} else {
		directive = fmt.Sprintf(" @relation(name: %s, direction: %s)", quote(rel.Relationship), quote(rel.Direction.Neo4j()))
	}
	fmt.Fprintf(b, "  %s%s: %s%s%s\n", p.Name, args, typ, directive, deprecated(p.DeprecationReason))

	if rel.Writable() {
		relType := joinTypeName(rel.From, rel.Relationship, rel.To)
		if rel.HasMany {
			relType = "[" + relType + "]"
		}
		description(b, "  ", "Relationship records for "+p.Name)
		fmt.Fprintf(b, "  %s_rel%s: %s%s\n", p.Name, args, relType, deprecated(p.DeprecationReason))
	}
}

func (c *Composer) paginationArgs() string {
	if !c.pagination {
		return ""
	}
	return "(first: Int, offset: Int)"
}

func (c *Composer) queryType(types []*resolve.Type) string {
	var b strings.Builder
	b.WriteString("type Query {\n")
	for _, t := range types {
		var identifying, filters []string
		for _, p := range t.Properties.All() {
			if p.IsRelationship() {
				continue
			}
			arg := fmt.Sprintf("%s: %s", p.Name, p.Type)
			if p.CanIdentify {
				identifying = append(identifying, arg)
			}
			filters = append(filters, arg)
		}
		if c.pagination {
			filters = append([]string{"first: Int", "offset: Int"}, filters...)
		}
		description(&b, "  ", t.Description)
		fmt.Fprintf(&b, "  %s%s: %s\n", t.Name, arguments(identifying), t.Name)
		description(&b, "  ", t.Description)
		fmt.Fprintf(&b, "  %s%s: [%s]\n", t.PluralName, arguments(filters), t.Name)
	}
	b.WriteString("}")
	return b.String()
}

// =============================================================================
// Join types
// =============================================================================

// join is one distinct (from, relationship, to) triple.
type join struct {
	from, relationship, to string
	properties             *schema.OrderedMap[*resolve.Property]
}

// joinTypeName concatenates from, relationship and to in camel case, for
// example Team + HAS_MEMBER + Person gives TeamHasMemberPerson.
func joinTypeName(from, relationship, to string) string {
	return from + inflect.Camelize(strings.ToLower(relationship)) + to
}

// joinTypes collects the distinct writable relationships in first-seen
// order. Edge properties seen from either end are merged.
func joinTypes(types []*resolve.Type) []*join {
	var joins []*join
	byName := make(map[string]*join)
	for _, t := range types {
		for _, p := range t.Properties.All() {
			rel := p.Relationship
			if rel == nil || !rel.Writable() {
				continue
			}
			name := joinTypeName(rel.From, rel.Relationship, rel.To)
			j, ok := byName[name]
			if !ok {
				j = &join{from: rel.From, relationship: rel.Relationship, to: rel.To, properties: schema.NewOrderedMap[*resolve.Property]()}
				byName[name] = j
				joins = append(joins, j)
			}
			for pname, prop := range rel.Properties.All() {
				if !j.properties.Has(pname) {
					j.properties.Set(pname, prop)
				}
			}
		}
	}
	return joins
}

func (c *Composer) joinType(j *join) string {
	var b strings.Builder
	fmt.Fprintf(&b, "type %s @relation(name: %s) {\n", joinTypeName(j.from, j.relationship, j.to), quote(j.relationship))
	fmt.Fprintf(&b, "  from: %s\n", j.from)
	fmt.Fprintf(&b, "  to: %s\n", j.to)
	for _, p := range j.properties.All() {
		description(&b, "  ", p.Description)
		fmt.Fprintf(&b, "  %s: %s%s\n", p.Name, p.Type, deprecated(p.DeprecationReason))
	}
	b.WriteString("}")
	return b.String()
}

// =============================================================================
// Enums
// =============================================================================

// enumType fails when two options map to the same GraphQL value name.
func enumType(e *resolve.Enum) (string, error) {
	var b strings.Builder
	description(&b, "", e.Description)
	if len(e.Options) == 0 {
		b.WriteString("enum " + e.Name)
		return b.String(), nil
	}
	fmt.Fprintf(&b, "enum %s {\n", e.Name)
	seen := make(map[string]string, len(e.Options))
	for _, o := range e.Options {
		name := EnumValueName(o.Value)
		if prev, ok := seen[name]; ok {
			return "", fmt.Errorf("graphql: enum %s: options %q and %q both map to value %s", e.Name, prev, o.Value, name)
		}
		seen[name] = o.Value
		description(&b, "  ", o.Description)
		fmt.Fprintf(&b, "  %s\n", name)
	}
	b.WriteString("}")
	return b.String(), nil
}
