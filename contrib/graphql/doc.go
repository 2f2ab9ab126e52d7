// Package graphql composes a GraphQL SDL document from strata schema
// metadata.
//
// # Output
//
// The composed document contains, in order:
//   - the DateTime, Date and Time scalars and a @deprecated directive
//   - one object type per schema type, in type hierarchy order
//   - one join type per distinct (from, relationship, to) triple, named by
//     camel-casing the three parts (Team + HAS_MEMBER + Person gives
//     TeamHasMemberPerson), with from/to fields and any edge properties
//   - a Query type with a singular lookup per type, taking the identifying
//     fields, and a plural lookup taking every stored field plus pagination
//   - one enum type per schema enum, option descriptions included
//
// Relationship fields carry @relation(name, direction) directives and are
// paired with a <field>_rel field returning the join type. Cypher-derived
// fields carry @cypher(statement) and have no _rel pair. List fields take
// first/offset pagination arguments.
//
// # Usage
//
//	c, err := graphql.NewComposer(resolver)
//	if err != nil {
//	    log.Fatalf("creating composer: %v", err)
//	}
//	sdl, err := c.Compose()
//	if err != nil {
//	    log.Fatalf("composing schema: %v", err)
//	}
//
// Compose parses its own output and fails rather than return a document a
// GraphQL parser would reject. Descriptions are written as block strings and
// directive arguments as escaped string literals.
package graphql
