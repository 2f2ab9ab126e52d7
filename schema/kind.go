package schema

import "strings"

// PropertyKind discriminates how a property is stored and resolved.
type PropertyKind uint8

// Property kinds, assigned once by Classify.
const (
	KindPrimitive PropertyKind = iota
	KindEnum
	KindLegacyRelationship
	KindRichRelationship
	KindSyntheticRelationship
)

var kindNames = [...]string{
	KindPrimitive:             "primitive",
	KindEnum:                  "enum",
	KindLegacyRelationship:    "legacy-relationship",
	KindRichRelationship:      "rich-relationship",
	KindSyntheticRelationship: "synthetic-relationship",
}

// String returns the kind name.
func (k PropertyKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsRelationship reports whether the kind points at another type.
func (k PropertyKind) IsRelationship() bool {
	return k >= KindLegacyRelationship
}

// IsWritable reports whether values of this kind may be written by clients.
func (k PropertyKind) IsWritable() bool {
	return k != KindSyntheticRelationship
}

// Classify determines the kind of a property within a snapshot.
func Classify(def *PropertyDef, s *Snapshot) PropertyKind {
	switch {
	case def.Cypher != "":
		return KindSyntheticRelationship
	case def.Relationship != "" && def.IsRecursive:
		return KindSyntheticRelationship
	case def.Relationship != "":
		return KindLegacyRelationship
	}
	if _, ok := s.RelationshipType(def.Type); ok {
		return KindRichRelationship
	}
	if s != nil && s.Enums.Has(def.Type) {
		return KindEnum
	}
	return KindPrimitive
}

// Direction is the direction of a relationship seen from its root type.
type Direction string

// Relationship directions.
const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// ParseDirection parses a direction as written on a property. Besides the
// canonical names it accepts the endpoint names "from" and "to".
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outgoing", "from", "out":
		return Outgoing, true
	case "incoming", "to", "in":
		return Incoming, true
	}
	return "", false
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Outgoing {
		return Incoming
	}
	return Outgoing
}

// Neo4j returns the direction keyword used by the @relation directive.
func (d Direction) Neo4j() string {
	if d == Incoming {
		return "IN"
	}
	return "OUT"
}
