// Package schema defines the raw, versioned schema snapshot that every other
// package reads from: entity types and their properties, rich relationship
// types, enums, string patterns, primitive type mappings and the type
// hierarchy.
//
// A snapshot arrives as one atomic document, either JSON (the fetch endpoint
// contract), msgpack, or YAML assembled by the load package:
//
//	{
//	    "version": "b1c2...",
//	    "schema": {
//	        "types": [{"name": "System", "properties": {"code": {"type": "Code"}}}],
//	        "relationshipTypes": [{"name": "Owns", "relationship": "OWNS",
//	            "from": {"type": "Team", "hasMany": true}, "to": {"type": "System"}}],
//	        "enums": {"Lifecycle": {"options": ["Production", "Retired"]}},
//	        "stringPatterns": {"CODE": "^[a-z-]+$"},
//	        "primitiveTypes": {"Code": {"graphql": "String", "component": "Text"}},
//	        "typeHierarchy": {"infra": {"label": "Infrastructure", "types": ["System"]}}
//	    }
//	}
//
// # Ordering
//
// Property, fieldset, enum and category order is significant for layout and
// for deterministic GraphQL output, so every object-valued collection is an
// [OrderedMap] that keeps document order regardless of the wire encoding.
//
// # Property kinds
//
// Historically a property became a relationship in one of three ways. The
// kind is determined once, by [Classify], when a snapshot is stored:
//
//	KindPrimitive             type is a primitive name
//	KindEnum                  type is an enum name
//	KindLegacyRelationship    relationship + direction declared on the property
//	KindRichRelationship      type names a RelationshipType
//	KindSyntheticRelationship cypher statement, or a recursive relationship
//
// Snapshots are never mutated after they are stored. Consumers receive shared
// pointers and must treat them as read-only.
package schema
