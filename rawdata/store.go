// Package rawdata holds the current schema snapshot.
//
// The Store is the single owner of the snapshot. Set replaces it wholesale;
// readers always observe one complete snapshot and never a partially applied
// one. Entries flagged isTest are dropped on Set unless the store was built
// with IncludeTestDefinitions.
package rawdata

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
)

// Store is the RawDataStore. The zero value is not usable; use New.
type Store struct {
	includeTest bool
	current     atomic.Pointer[schema.Snapshot]
	revision    atomic.Uint64
}

// Option configures a Store.
type Option func(*Store)

// IncludeTestDefinitions keeps entries flagged isTest.
func IncludeTestDefinitions(include bool) Option {
	return func(s *Store) {
		s.includeTest = include
	}
}

// New returns an empty, unhydrated store.
func New(opts ...Option) *Store {
	s := &Store{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set atomically replaces the held snapshot. The given snapshot is not
// modified: a filtered, classified copy is stored instead. A snapshot that
// fails integrity checks is rejected and the previous one stays in place.
func (s *Store) Set(snap *schema.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("rawdata: nil snapshot")
	}
	prepared, err := prepare(snap, s.includeTest)
	if err != nil {
		return err
	}
	prepared.Revision = s.revision.Add(1)
	s.current.Store(prepared)
	return nil
}

// IsHydrated reports whether a snapshot has been set.
func (s *Store) IsHydrated() bool {
	return s.current.Load() != nil
}

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() (*schema.Snapshot, error) {
	return s.load("Snapshot")
}

func (s *Store) load(accessor string) (*schema.Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, strata.NewSchemaNotLoadedError(accessor)
	}
	return snap, nil
}

// Version returns the version of the current snapshot.
func (s *Store) Version() (string, error) {
	snap, err := s.load("Version")
	if err != nil {
		return "", err
	}
	return snap.Version, nil
}

// Types returns all type definitions.
func (s *Store) Types() ([]*schema.TypeDefinition, error) {
	snap, err := s.load("Types")
	if err != nil {
		return nil, err
	}
	return snap.Types, nil
}

// RelationshipTypes returns all rich relationship types.
func (s *Store) RelationshipTypes() ([]*schema.RelationshipType, error) {
	snap, err := s.load("RelationshipTypes")
	if err != nil {
		return nil, err
	}
	return snap.RelationshipTypes, nil
}

// Enums returns all enum definitions.
func (s *Store) Enums() (*schema.OrderedMap[*schema.EnumDefinition], error) {
	snap, err := s.load("Enums")
	if err != nil {
		return nil, err
	}
	return snap.Enums, nil
}

// StringPatterns returns all named string patterns.
func (s *Store) StringPatterns() (*schema.OrderedMap[*schema.StringPattern], error) {
	snap, err := s.load("StringPatterns")
	if err != nil {
		return nil, err
	}
	return snap.StringPatterns, nil
}

// PrimitiveTypes returns the primitive type mapping.
func (s *Store) PrimitiveTypes() (*schema.OrderedMap[*schema.PrimitiveType], error) {
	snap, err := s.load("PrimitiveTypes")
	if err != nil {
		return nil, err
	}
	return snap.PrimitiveTypes, nil
}

// TypeHierarchy returns the type hierarchy, or nil if the schema has none.
func (s *Store) TypeHierarchy() (*schema.OrderedMap[*schema.Category], error) {
	snap, err := s.load("TypeHierarchy")
	if err != nil {
		return nil, err
	}
	return snap.TypeHierarchy, nil
}

// =============================================================================
// Preparation
// =============================================================================

// prepare filters test definitions, classifies every property and checks
// snapshot integrity. It returns a new snapshot sharing unchanged leaves
// with the input.
func prepare(in *schema.Snapshot, includeTest bool) (*schema.Snapshot, error) {
	if err := checkEntries(in); err != nil {
		return nil, err
	}
	out := &schema.Snapshot{
		Version:        in.Version,
		StringPatterns: in.StringPatterns,
		PrimitiveTypes: in.PrimitiveTypes,
	}
	keep := func(isTest bool) bool { return includeTest || !isTest }

	typeNames := make(map[string]struct{}, len(in.Types))
	for _, t := range in.Types {
		if !keep(t.IsTest) {
			continue
		}
		if _, dup := typeNames[t.Name]; dup {
			return nil, fmt.Errorf("rawdata: type %q declared more than once", t.Name)
		}
		typeNames[t.Name] = struct{}{}
	}

	for _, rt := range in.RelationshipTypes {
		if !keep(rt.IsTest) {
			continue
		}
		_, fromOK := typeNames[rt.From.Type]
		_, toOK := typeNames[rt.To.Type]
		if !fromOK || !toOK {
			if !includeTest && (isTestType(in, rt.From.Type) || isTestType(in, rt.To.Type)) {
				continue
			}
			return nil, fmt.Errorf("rawdata: relationship type %q joins unknown types %q and %q",
				rt.Name, rt.From.Type, rt.To.Type)
		}
		c := *rt
		c.Properties = filterProperties(rt.Properties, keep)
		out.RelationshipTypes = append(out.RelationshipTypes, &c)
	}

	if in.Enums.Len() > 0 {
		out.Enums = schema.NewOrderedMap[*schema.EnumDefinition]()
		for name, e := range in.Enums.All() {
			if keep(e.IsTest) {
				out.Enums.Set(name, e)
			}
		}
	}

	removed := func(typeName string) bool {
		if _, ok := typeNames[typeName]; ok {
			return false
		}
		return isTestType(in, typeName) && !includeTest
	}
	for _, t := range in.Types {
		if !keep(t.IsTest) {
			continue
		}
		c := *t
		c.Properties = schema.NewOrderedMap[*schema.PropertyDef]()
		for name, def := range t.Properties.All() {
			if !keep(def.IsTest) || removed(def.Type) {
				continue
			}
			if _, ok := out.RelationshipType(def.Type); !ok && isTestRelationshipType(in, def.Type) && !includeTest {
				continue
			}
			c.Properties.Set(name, def)
		}
		out.Types = append(out.Types, &c)
	}

	if in.TypeHierarchy.Len() > 0 {
		out.TypeHierarchy = schema.NewOrderedMap[*schema.Category]()
		for name, cat := range in.TypeHierarchy.All() {
			c := *cat
			c.Types = slices.DeleteFunc(slices.Clone(cat.Types), removed)
			for _, typeName := range c.Types {
				if _, ok := typeNames[typeName]; !ok {
					return nil, fmt.Errorf("rawdata: type hierarchy category %q names unknown type %q", name, typeName)
				}
			}
			out.TypeHierarchy.Set(name, &c)
		}
	}

	classify(out)
	return out, nil
}

// checkEntries rejects snapshots holding null definitions. Decoders accept
// `null` for pointer values, so a corrupt document can reach Set.
func checkEntries(in *schema.Snapshot) error {
	for i, t := range in.Types {
		if t == nil {
			return fmt.Errorf("rawdata: types[%d] is null", i)
		}
		if err := nullEntry(t.Properties, "type "+t.Name+" property"); err != nil {
			return err
		}
		if err := nullEntry(t.Fieldsets, "type "+t.Name+" fieldset"); err != nil {
			return err
		}
	}
	for i, rt := range in.RelationshipTypes {
		if rt == nil {
			return fmt.Errorf("rawdata: relationshipTypes[%d] is null", i)
		}
		if err := nullEntry(rt.Properties, "relationship type "+rt.Name+" property"); err != nil {
			return err
		}
	}
	if err := nullEntry(in.Enums, "enum"); err != nil {
		return err
	}
	if err := nullEntry(in.StringPatterns, "string pattern"); err != nil {
		return err
	}
	if err := nullEntry(in.PrimitiveTypes, "primitive type"); err != nil {
		return err
	}
	return nullEntry(in.TypeHierarchy, "type hierarchy category")
}

func nullEntry[V any](m *schema.OrderedMap[*V], what string) error {
	for name, v := range m.All() {
		if v == nil {
			return fmt.Errorf("rawdata: %s %q is null", what, name)
		}
	}
	return nil
}

// classify assigns property kinds on copies so the input stays untouched.
func classify(snap *schema.Snapshot) {
	for _, t := range snap.Types {
		t.Properties = classified(t.Properties, snap)
	}
	for _, rt := range snap.RelationshipTypes {
		rt.Properties = classified(rt.Properties, snap)
	}
}

func classified(props *schema.OrderedMap[*schema.PropertyDef], snap *schema.Snapshot) *schema.OrderedMap[*schema.PropertyDef] {
	if props == nil {
		return nil
	}
	out := schema.NewOrderedMap[*schema.PropertyDef]()
	for name, def := range props.All() {
		c := *def
		c.Kind = schema.Classify(&c, snap)
		out.Set(name, &c)
	}
	return out
}

func filterProperties(props *schema.OrderedMap[*schema.PropertyDef], keep func(bool) bool) *schema.OrderedMap[*schema.PropertyDef] {
	if props == nil {
		return nil
	}
	out := schema.NewOrderedMap[*schema.PropertyDef]()
	for name, def := range props.All() {
		if keep(def.IsTest) {
			out.Set(name, def)
		}
	}
	return out
}

func isTestType(snap *schema.Snapshot, name string) bool {
	t, ok := snap.Type(name)
	return ok && t.IsTest
}

func isTestRelationshipType(snap *schema.Snapshot, name string) bool {
	rt, ok := snap.RelationshipType(name)
	if !ok {
		return false
	}
	return rt.IsTest || isTestType(snap, rt.From.Type) || isTestType(snap, rt.To.Type)
}
