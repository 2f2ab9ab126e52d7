package resolve

import (
	"fmt"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
)

// recursionDepth bounds the path length of generated recursive queries.
const recursionDepth = 20

// Relationship is a relationship property resolved from one of its ends.
type Relationship struct {
	// RootType owns PropertyName; EndType is the type at the other end.
	RootType     string
	PropertyName string
	EndType      string

	// Name is the relationship type name for rich relationships.
	Name string
	// Relationship is the underlying edge label. Empty for cypher properties.
	Relationship string
	Direction    schema.Direction
	From         string
	To           string
	HasMany      bool
	Kind         schema.PropertyKind
	Description  string

	// Cypher is the read query of a synthetic relationship. For recursive
	// relationships it is generated from the edge label.
	Cypher      string
	IsRecursive bool

	// Properties holds edge properties of rich relationships.
	Properties *schema.OrderedMap[*Property]
}

// Writable reports whether clients may write the relationship.
func (r *Relationship) Writable() bool {
	return r.Kind.IsWritable()
}

// HasProperties reports whether the relationship carries edge properties.
func (r *Relationship) HasProperties() bool {
	return r.Properties.Len() > 0
}

func (r *Resolver) resolveRelationship(a relArgs) (*Relationship, error) {
	root, ok := a.snap.Type(a.root)
	if !ok {
		return nil, strata.NewUnknownTypeError(a.root)
	}
	def, ok := root.Properties.Get(a.property)
	if !ok {
		return nil, strata.NewUnknownPropertyError(a.root, a.property)
	}
	rel := &Relationship{
		RootType:     a.root,
		PropertyName: a.property,
		Kind:         def.Kind,
		HasMany:      def.HasMany,
		Description:  def.Description,
	}

	switch def.Kind {
	case schema.KindLegacyRelationship:
		if err := legacy(rel, def); err != nil {
			return nil, err
		}
	case schema.KindSyntheticRelationship:
		if err := synthetic(rel, def); err != nil {
			return nil, err
		}
	case schema.KindRichRelationship:
		rt, _ := a.snap.RelationshipType(def.Type)
		if err := rich(rel, def, rt); err != nil {
			return nil, err
		}
		props, err := r.edgeProperties(a, rt)
		if err != nil {
			return nil, err
		}
		rel.Properties = props
	default:
		return nil, strata.NewUnknownRelationshipError(a.root, a.property, "not a relationship property")
	}
	return rel, nil
}

func parseDirection(rel *Relationship, raw string) (schema.Direction, error) {
	if raw == "" {
		return schema.Outgoing, nil
	}
	d, ok := schema.ParseDirection(raw)
	if !ok {
		return "", strata.NewUnknownRelationshipError(rel.RootType, rel.PropertyName,
			fmt.Sprintf("invalid direction %q", raw))
	}
	return d, nil
}

// orient places the root type on the side given by the direction.
func orient(rel *Relationship, end string) {
	rel.EndType = end
	if rel.Direction == schema.Incoming {
		rel.From, rel.To = end, rel.RootType
	} else {
		rel.From, rel.To = rel.RootType, end
	}
}

func legacy(rel *Relationship, def *schema.PropertyDef) error {
	d, err := parseDirection(rel, def.Direction)
	if err != nil {
		return err
	}
	rel.Relationship = def.Relationship
	rel.Direction = d
	orient(rel, def.Type)
	return nil
}

func synthetic(rel *Relationship, def *schema.PropertyDef) error {
	rel.Cypher = def.Cypher
	if def.Relationship == "" {
		rel.Direction = schema.Outgoing
		orient(rel, def.Type)
		return nil
	}
	if err := legacy(rel, def); err != nil {
		return err
	}
	rel.IsRecursive = def.IsRecursive
	if rel.Cypher == "" {
		rel.Cypher = recursiveCypher(rel.Relationship, rel.Direction, rel.EndType)
	}
	return nil
}

// recursiveCypher returns the query reaching every node connected by one or
// more edges labelled rel.
func recursiveCypher(rel string, d schema.Direction, end string) string {
	left, right := "-", "->"
	if d == schema.Incoming {
		left, right = "<-", "-"
	}
	return fmt.Sprintf("MATCH (this)%s[:%s*1..%d]%s(related:%s) RETURN DISTINCT related",
		left, rel, recursionDepth, right, end)
}

func rich(rel *Relationship, def *schema.PropertyDef, rt *schema.RelationshipType) error {
	rel.Name = rt.Name
	rel.Relationship = rt.Relationship
	if rel.Description == "" {
		rel.Description = rt.Description
	}
	atFrom := rt.From.Type == rel.RootType
	atTo := rt.To.Type == rel.RootType
	if !atFrom && !atTo {
		return strata.NewUnknownRelationshipError(rel.RootType, rel.PropertyName,
			fmt.Sprintf("relationship type `%s` does not join `%s`", rt.Name, rel.RootType))
	}

	switch {
	case def.Direction != "":
		d, err := parseDirection(rel, def.Direction)
		if err != nil {
			return err
		}
		if (d == schema.Outgoing && !atFrom) || (d == schema.Incoming && !atTo) {
			return strata.NewUnknownRelationshipError(rel.RootType, rel.PropertyName,
				fmt.Sprintf("direction %s contradicts relationship type `%s`", d, rt.Name))
		}
		rel.Direction = d
	case atFrom && atTo:
		return strata.NewAmbiguousRelationshipError(rel.RootType, rel.PropertyName, rt.Name)
	case atFrom:
		rel.Direction = schema.Outgoing
	default:
		rel.Direction = schema.Incoming
	}

	// Cardinality comes from the end that is not the root.
	if rel.Direction == schema.Outgoing {
		rel.HasMany = rt.To.HasMany
		orient(rel, rt.To.Type)
	} else {
		rel.HasMany = rt.From.HasMany
		orient(rel, rt.From.Type)
	}
	return nil
}

func (r *Resolver) edgeProperties(a relArgs, rt *schema.RelationshipType) (*schema.OrderedMap[*Property], error) {
	primitives, err := r.primitivesFn(a.snap)
	if err != nil {
		return nil, err
	}
	props := schema.NewOrderedMap[*Property]()
	for name, def := range rt.Properties.All() {
		if def.Hidden {
			continue
		}
		p, err := r.property(a.snap, name, def, a.opts, primitives)
		if err != nil {
			return nil, err
		}
		props.Set(name, p)
	}
	if a.opts.IncludeMetaFields {
		for _, m := range metaFields {
			if m.nodeOnly || props.Has(m.name) {
				continue
			}
			p, err := r.property(a.snap, m.name, m.def, a.opts, primitives)
			if err != nil {
				return nil, err
			}
			p.IsMetaField = true
			props.Set(m.name, p)
		}
	}
	return props, nil
}
