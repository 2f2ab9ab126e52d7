package schema

// Payload is the transport envelope served at <base>/schema.json.
type Payload struct {
	Version string    `json:"version" yaml:"version"`
	Schema  *Snapshot `json:"schema" yaml:"schema"`
}

// Snapshot returns the snapshot carried by the payload, stamped with the
// payload version. The payload is not modified.
func (p *Payload) Snapshot() *Snapshot {
	if p == nil || p.Schema == nil {
		return nil
	}
	s := *p.Schema
	if p.Version != "" {
		s.Version = p.Version
	}
	return &s
}

// Snapshot is one immutable, versioned copy of the entire schema.
type Snapshot struct {
	Version           string                       `json:"version,omitempty" yaml:"version,omitempty"`
	Types             []*TypeDefinition            `json:"types" yaml:"types"`
	RelationshipTypes []*RelationshipType          `json:"relationshipTypes,omitempty" yaml:"relationshipTypes,omitempty"`
	Enums             *OrderedMap[*EnumDefinition] `json:"enums,omitempty" yaml:"enums,omitempty"`
	StringPatterns    *OrderedMap[*StringPattern]  `json:"stringPatterns,omitempty" yaml:"stringPatterns,omitempty"`
	PrimitiveTypes    *OrderedMap[*PrimitiveType]  `json:"primitiveTypes,omitempty" yaml:"primitiveTypes,omitempty"`
	TypeHierarchy     *OrderedMap[*Category]       `json:"typeHierarchy,omitempty" yaml:"typeHierarchy,omitempty"`

	// Revision is stamped by the store that holds the snapshot and increases
	// with every replacement. Derived results are keyed by it.
	Revision uint64 `json:"-" yaml:"-"`
}

// Type returns the type definition with the given name.
func (s *Snapshot) Type(name string) (*TypeDefinition, bool) {
	if s == nil {
		return nil, false
	}
	for _, t := range s.Types {
		if t.Name == name {
			return t, true
		}
	}
	return nil, false
}

// RelationshipType returns the relationship type with the given name.
func (s *Snapshot) RelationshipType(name string) (*RelationshipType, bool) {
	if s == nil {
		return nil, false
	}
	for _, rt := range s.RelationshipTypes {
		if rt.Name == name {
			return rt, true
		}
	}
	return nil, false
}

// TypeDefinition describes one entity type.
type TypeDefinition struct {
	Name                string                    `json:"name" yaml:"name"`
	Description         string                    `json:"description,omitempty" yaml:"description,omitempty"`
	PluralName          string                    `json:"pluralName,omitempty" yaml:"pluralName,omitempty"`
	Properties          *OrderedMap[*PropertyDef] `json:"properties,omitempty" yaml:"properties,omitempty"`
	Fieldsets           *OrderedMap[*FieldsetDef] `json:"fieldsets,omitempty" yaml:"fieldsets,omitempty"`
	MinimumViableRecord []string                  `json:"minimumViableRecord,omitempty" yaml:"minimumViableRecord,omitempty"`
	InactiveRule        map[string]any            `json:"inactiveRule,omitempty" yaml:"inactiveRule,omitempty"`
	IsTest              bool                      `json:"isTest,omitempty" yaml:"isTest,omitempty"`
}

// FieldsetDef declares a named group of properties on a type.
type FieldsetDef struct {
	Heading     string `json:"heading,omitempty" yaml:"heading,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// PropertyDef is a property as written in the schema source.
type PropertyDef struct {
	Type              string `json:"type" yaml:"type"`
	Label             string `json:"label,omitempty" yaml:"label,omitempty"`
	Description       string `json:"description,omitempty" yaml:"description,omitempty"`
	Fieldset          string `json:"fieldset,omitempty" yaml:"fieldset,omitempty"`
	Required          bool   `json:"required,omitempty" yaml:"required,omitempty"`
	Unique            bool   `json:"unique,omitempty" yaml:"unique,omitempty"`
	CanIdentify       bool   `json:"canIdentify,omitempty" yaml:"canIdentify,omitempty"`
	CanFilter         bool   `json:"canFilter,omitempty" yaml:"canFilter,omitempty"`
	UseInSummary      bool   `json:"useInSummary,omitempty" yaml:"useInSummary,omitempty"`
	Relationship      string `json:"relationship,omitempty" yaml:"relationship,omitempty"`
	Direction         string `json:"direction,omitempty" yaml:"direction,omitempty"`
	HasMany           bool   `json:"hasMany,omitempty" yaml:"hasMany,omitempty"`
	Cypher            string `json:"cypher,omitempty" yaml:"cypher,omitempty"`
	IsRecursive       bool   `json:"isRecursive,omitempty" yaml:"isRecursive,omitempty"`
	Pattern           string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	DeprecationReason string `json:"deprecationReason,omitempty" yaml:"deprecationReason,omitempty"`
	Examples          []any  `json:"examples,omitempty" yaml:"examples,omitempty"`
	TrueLabel         string `json:"trueLabel,omitempty" yaml:"trueLabel,omitempty"`
	FalseLabel        string `json:"falseLabel,omitempty" yaml:"falseLabel,omitempty"`
	ShowInactive      bool   `json:"showInactive,omitempty" yaml:"showInactive,omitempty"`
	AutoPopulated     bool   `json:"autoPopulated,omitempty" yaml:"autoPopulated,omitempty"`
	Hidden            bool   `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	IsTest            bool   `json:"isTest,omitempty" yaml:"isTest,omitempty"`

	// Kind is assigned by Classify when the snapshot is stored.
	Kind PropertyKind `json:"-" yaml:"-"`
}

// RelationshipType is a named relationship with its own edge properties,
// referenced symmetrically from both endpoint types.
type RelationshipType struct {
	Name         string                    `json:"name" yaml:"name"`
	Relationship string                    `json:"relationship" yaml:"relationship"`
	Description  string                    `json:"description,omitempty" yaml:"description,omitempty"`
	From         Endpoint                  `json:"from" yaml:"from"`
	To           Endpoint                  `json:"to" yaml:"to"`
	Properties   *OrderedMap[*PropertyDef] `json:"properties,omitempty" yaml:"properties,omitempty"`
	IsTest       bool                      `json:"isTest,omitempty" yaml:"isTest,omitempty"`
}

// Endpoint is one end of a RelationshipType.
type Endpoint struct {
	Type    string `json:"type" yaml:"type"`
	HasMany bool   `json:"hasMany,omitempty" yaml:"hasMany,omitempty"`
}

// EnumDefinition is a closed set of values.
type EnumDefinition struct {
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Options     *EnumOptions `json:"options" yaml:"options"`
	IsTest      bool         `json:"isTest,omitempty" yaml:"isTest,omitempty"`
}

// EnumOption is a normalized enum value.
type EnumOption struct {
	Value       string `json:"value" yaml:"value"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// StringPattern is a regular expression source plus optional flags.
// It decodes from either a bare string or a {pattern, flags} object.
type StringPattern struct {
	Pattern string `json:"pattern" yaml:"pattern"`
	Flags   string `json:"flags,omitempty" yaml:"flags,omitempty"`
}

// PrimitiveType maps a schema primitive to its GraphQL scalar and the UI
// component that edits it.
type PrimitiveType struct {
	GraphQL   string `json:"graphql" yaml:"graphql"`
	Component string `json:"component,omitempty" yaml:"component,omitempty"`
}

// Category groups types for presentation.
type Category struct {
	Label       string   `json:"label,omitempty" yaml:"label,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Types       []string `json:"types" yaml:"types"`
}
