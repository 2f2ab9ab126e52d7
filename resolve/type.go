package resolve

import (
	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
)

// Type is a resolved type.
type Type struct {
	Name                string
	Description         string
	PluralName          string
	MinimumViableRecord []string
	InactiveRule        map[string]any

	// Properties holds every resolved property in declaration order,
	// followed by meta-fields when requested.
	Properties *schema.OrderedMap[*Property]
	// Fieldsets is set only when properties are grouped.
	Fieldsets *schema.OrderedMap[*Fieldset]
}

// Property returns the named property.
func (t *Type) Property(name string) (*Property, bool) {
	return t.Properties.Get(name)
}

// Property is a resolved property.
type Property struct {
	Name string
	// Type is the primitive, enum or end type name. Primitive names are
	// reported in the requested vocabulary.
	Type string
	Kind schema.PropertyKind

	Label             string
	Description       string
	Fieldset          string
	DeprecationReason string
	Required          bool
	Unique            bool
	CanIdentify       bool
	CanFilter         bool
	UseInSummary      bool
	HasMany           bool
	Examples          []any
	TrueLabel         string
	FalseLabel        string
	ShowInactive      bool
	AutoPopulated     bool
	IsMetaField       bool

	// Pattern names the string pattern and Validator is its compiled form.
	Pattern   string
	Validator *StringValidator

	// Relationship is set for relationship kinds.
	Relationship *Relationship
}

// IsRelationship reports whether the property points at another type.
func (p *Property) IsRelationship() bool {
	return p.Kind.IsRelationship()
}

// IsSynthetic reports whether the property is read-only and query-derived.
func (p *Property) IsSynthetic() bool {
	return p.Kind == schema.KindSyntheticRelationship
}

func (r *Resolver) resolveType(a typeArgs) (*Type, error) {
	def, ok := a.snap.Type(a.name)
	if !ok {
		return nil, strata.NewUnknownTypeError(a.name)
	}
	t := &Type{
		Name:                def.Name,
		Description:         def.Description,
		PluralName:          def.PluralName,
		MinimumViableRecord: def.MinimumViableRecord,
		InactiveRule:        def.InactiveRule,
		Properties:          schema.NewOrderedMap[*Property](),
	}
	if t.PluralName == "" {
		t.PluralName = t.Name + "s"
	}
	primitives, err := r.primitivesFn(a.snap)
	if err != nil {
		return nil, err
	}

	if !def.Properties.Has("code") {
		p, err := r.property(a.snap, "code", &schema.PropertyDef{Type: "String"}, a.opts, primitives)
		if err != nil {
			return nil, err
		}
		forceCode(p)
		t.Properties.Set("code", p)
	}
	for name, pd := range def.Properties.All() {
		switch {
		case pd.Hidden && name != "code":
			continue
		case pd.Kind == schema.KindSyntheticRelationship && !a.opts.IncludeSyntheticFields:
			continue
		case pd.Kind.IsRelationship() && !a.opts.WithRelationships:
			continue
		}
		p, err := r.property(a.snap, name, pd, a.opts, primitives)
		if err != nil {
			return nil, err
		}
		if pd.Kind.IsRelationship() {
			rel, err := r.relFn(relArgs{snap: a.snap, root: def.Name, property: name, opts: a.opts})
			if err != nil {
				return nil, err
			}
			p.Type = rel.EndType
			p.HasMany = rel.HasMany
			p.Relationship = rel
		}
		if name == "code" {
			forceCode(p)
		}
		t.Properties.Set(name, p)
	}

	if a.opts.IncludeMetaFields {
		for _, m := range metaFields {
			if t.Properties.Has(m.name) {
				continue
			}
			p, err := r.property(a.snap, m.name, m.def, a.opts, primitives)
			if err != nil {
				return nil, err
			}
			p.IsMetaField = true
			t.Properties.Set(m.name, p)
		}
	}

	if a.opts.GroupProperties {
		t.Fieldsets = groupFieldsets(def, t.Properties, a.opts)
	}
	return t, nil
}

func forceCode(p *Property) {
	p.Required = true
	p.Unique = true
	p.CanIdentify = true
	p.UseInSummary = true
}

// property resolves the parts of a property shared by node and edge
// properties: copied attributes, primitive translation and pattern.
func (r *Resolver) property(snap *schema.Snapshot, name string, def *schema.PropertyDef, opts Options, primitives *schema.OrderedMap[*schema.PrimitiveType]) (*Property, error) {
	p := &Property{
		Name:              name,
		Type:              def.Type,
		Kind:              def.Kind,
		Label:             def.Label,
		Description:       def.Description,
		Fieldset:          def.Fieldset,
		DeprecationReason: def.DeprecationReason,
		Required:          def.Required,
		Unique:            def.Unique,
		CanIdentify:       def.CanIdentify,
		CanFilter:         def.CanFilter,
		UseInSummary:      def.UseInSummary,
		HasMany:           def.HasMany,
		Examples:          def.Examples,
		TrueLabel:         def.TrueLabel,
		FalseLabel:        def.FalseLabel,
		ShowInactive:      def.ShowInactive,
		AutoPopulated:     def.AutoPopulated,
		Pattern:           def.Pattern,
	}
	if p.Kind == schema.KindPrimitive && opts.PrimitiveTypes == GraphQL {
		if prim, ok := primitives.Get(def.Type); ok {
			p.Type = prim.GraphQL
		}
	}
	if def.Pattern != "" {
		v, err := r.patternFn(patternArgs{snap: snap, name: def.Pattern})
		if err != nil {
			return nil, err
		}
		p.Validator = v
	}
	return p, nil
}
