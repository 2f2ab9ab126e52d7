// Package resolve turns the raw snapshot into enriched, cached type
// metadata: resolved types with relationship details, meta-fields,
// fieldset grouping, primitive translation and compiled string patterns.
//
// Every accessor is a pure function of (snapshot, arguments) memoized in a
// shared strata.Cache. Cache keys embed the snapshot revision, so a result
// derived from one snapshot is never served for another, and one call never
// mixes data from two snapshots. Results are shared between callers and must
// be treated as read-only.
package resolve

import (
	"fmt"
	"strconv"

	"github.com/syssam/strata"
	"github.com/syssam/strata/schema"
)

// Backend provides the current snapshot.
type Backend interface {
	Snapshot() (*schema.Snapshot, error)
}

// Resolver is the accessor layer over a Backend.
type Resolver struct {
	backend Backend
	cache   *strata.Cache

	typeFn       func(typeArgs) (*Type, error)
	relFn        func(relArgs) (*Relationship, error)
	enumsFn      func(*schema.Snapshot) (*schema.OrderedMap[*Enum], error)
	primitivesFn func(*schema.Snapshot) (*schema.OrderedMap[*schema.PrimitiveType], error)
	patternFn    func(patternArgs) (*StringValidator, error)
}

type typeArgs struct {
	snap *schema.Snapshot
	name string
	opts Options
}

type relArgs struct {
	snap     *schema.Snapshot
	root     string
	property string
	opts     Options
}

type patternArgs struct {
	snap *schema.Snapshot
	name string
}

func revision(s *schema.Snapshot) string {
	return strconv.FormatUint(s.Revision, 10)
}

// New returns a resolver reading from backend and memoizing into cache.
// A nil cache gets a private one.
func New(backend Backend, cache *strata.Cache) *Resolver {
	if cache == nil {
		cache = strata.NewCache()
	}
	r := &Resolver{backend: backend, cache: cache}
	r.typeFn = strata.Memoize(cache, "type", r.resolveType, func(a typeArgs) string {
		return revision(a.snap) + ":" + a.name + ":" + a.opts.Key()
	})
	r.relFn = strata.Memoize(cache, "relationship", r.resolveRelationship, func(a relArgs) string {
		return revision(a.snap) + ":" + a.root + "." + a.property + ":" + a.opts.relationshipKey()
	})
	r.enumsFn = strata.Memoize(cache, "enums", resolveEnums, revision)
	r.primitivesFn = strata.Memoize(cache, "primitive-types", resolvePrimitiveTypes, revision)
	r.patternFn = strata.Memoize(cache, "string-validator", func(a patternArgs) (*StringValidator, error) {
		return resolveStringValidator(a.snap, a.name)
	}, func(a patternArgs) string {
		return revision(a.snap) + ":" + a.name
	})
	return r
}

// Cache returns the cache the resolver memoizes into.
func (r *Resolver) Cache() *strata.Cache {
	return r.cache
}

// snapshot loads the current snapshot, naming accessor in the not-loaded
// error.
func (r *Resolver) snapshot(accessor string) (*schema.Snapshot, error) {
	snap, err := r.backend.Snapshot()
	if err != nil {
		if strata.IsSchemaNotLoaded(err) {
			return nil, strata.NewSchemaNotLoadedError(accessor)
		}
		return nil, err
	}
	return snap, nil
}

// Version returns the version of the current snapshot.
func (r *Resolver) Version() (string, error) {
	snap, err := r.snapshot("Version")
	if err != nil {
		return "", err
	}
	return snap.Version, nil
}

// Type resolves the named type.
func (r *Resolver) Type(name string, opts ...Option) (*Type, error) {
	snap, err := r.snapshot("Type")
	if err != nil {
		return nil, err
	}
	return r.typeFn(typeArgs{snap: snap, name: name, opts: buildOptions(opts)})
}

// Types resolves every type. Types listed in the type hierarchy come first,
// in hierarchy order, followed by the remaining types in declaration order.
func (r *Resolver) Types(opts ...Option) ([]*Type, error) {
	snap, err := r.snapshot("Types")
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	names := orderedTypeNames(snap)
	types := make([]*Type, 0, len(names))
	for _, name := range names {
		t, err := r.typeFn(typeArgs{snap: snap, name: name, opts: o})
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func orderedTypeNames(snap *schema.Snapshot) []string {
	seen := make(map[string]bool, len(snap.Types))
	names := make([]string, 0, len(snap.Types))
	for _, cat := range snap.TypeHierarchy.All() {
		for _, name := range cat.Types {
			if _, ok := snap.Type(name); ok && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	for _, t := range snap.Types {
		if !seen[t.Name] {
			names = append(names, t.Name)
		}
	}
	return names
}

// Category is a type hierarchy category with its resolved types.
type Category struct {
	Name        string
	Label       string
	Description string
	Types       []*Type
}

// TypeHierarchy resolves the type hierarchy. It returns nil when the schema
// declares none.
func (r *Resolver) TypeHierarchy(opts ...Option) ([]*Category, error) {
	snap, err := r.snapshot("TypeHierarchy")
	if err != nil {
		return nil, err
	}
	if snap.TypeHierarchy.Len() == 0 {
		return nil, nil
	}
	o := buildOptions(opts)
	cats := make([]*Category, 0, snap.TypeHierarchy.Len())
	for name, c := range snap.TypeHierarchy.All() {
		cat := &Category{Name: name, Label: c.Label, Description: c.Description}
		for _, typeName := range c.Types {
			t, err := r.typeFn(typeArgs{snap: snap, name: typeName, opts: o})
			if err != nil {
				return nil, fmt.Errorf("resolve: category %q: %w", name, err)
			}
			cat.Types = append(cat.Types, t)
		}
		cats = append(cats, cat)
	}
	return cats, nil
}

// RelationshipType resolves the relationship carried by property on root.
func (r *Resolver) RelationshipType(root, property string, opts ...Option) (*Relationship, error) {
	snap, err := r.snapshot("RelationshipType")
	if err != nil {
		return nil, err
	}
	return r.relFn(relArgs{snap: snap, root: root, property: property, opts: buildOptions(opts)})
}

// RelationshipTypes resolves every relationship property of every type.
// Reciprocal pairs are both returned, once from each end. Synthetic
// relationships are skipped when IncludeSyntheticFields is false.
func (r *Resolver) RelationshipTypes(opts ...Option) ([]*Relationship, error) {
	snap, err := r.snapshot("RelationshipTypes")
	if err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	var rels []*Relationship
	for _, t := range snap.Types {
		for name, def := range t.Properties.All() {
			if !def.Kind.IsRelationship() || def.Hidden {
				continue
			}
			if def.Kind == schema.KindSyntheticRelationship && !o.IncludeSyntheticFields {
				continue
			}
			rel, err := r.relFn(relArgs{snap: snap, root: t.Name, property: name, opts: o})
			if err != nil {
				return nil, err
			}
			rels = append(rels, rel)
		}
	}
	return rels, nil
}

// Enum is a resolved enum with normalized options.
type Enum struct {
	Name        string
	Description string
	Options     []schema.EnumOption
}

// Values returns the option values in order.
func (e *Enum) Values() []string {
	values := make([]string, len(e.Options))
	for i, o := range e.Options {
		values[i] = o.Value
	}
	return values
}

// Contains reports whether value is one of the options.
func (e *Enum) Contains(value string) bool {
	for _, o := range e.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}

// Enums returns all enums in declaration order.
func (r *Resolver) Enums() (*schema.OrderedMap[*Enum], error) {
	snap, err := r.snapshot("Enums")
	if err != nil {
		return nil, err
	}
	return r.enumsFn(snap)
}

// Enum returns the named enum.
func (r *Resolver) Enum(name string) (*Enum, error) {
	enums, err := r.Enums()
	if err != nil {
		return nil, err
	}
	e, ok := enums.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: invalid enum `%s`", strata.ErrUserInput, name)
	}
	return e, nil
}

func resolveEnums(snap *schema.Snapshot) (*schema.OrderedMap[*Enum], error) {
	out := schema.NewOrderedMap[*Enum]()
	for name, def := range snap.Enums.All() {
		e := &Enum{Name: name, Description: def.Description}
		if def.Options != nil {
			e.Options = def.Options.Options()
		}
		out.Set(name, e)
	}
	return out, nil
}

// StringValidator returns the compiled string pattern with the given name.
func (r *Resolver) StringValidator(name string) (*StringValidator, error) {
	snap, err := r.snapshot("StringValidator")
	if err != nil {
		return nil, err
	}
	return r.patternFn(patternArgs{snap: snap, name: name})
}

// builtinPrimitives map to themselves unless the schema says otherwise.
var builtinPrimitives = []string{"Boolean", "Int", "Float", "String", "Date", "DateTime", "Time"}

// PrimitiveTypes returns the primitive type mapping, including the built-in
// scalars.
func (r *Resolver) PrimitiveTypes() (*schema.OrderedMap[*schema.PrimitiveType], error) {
	snap, err := r.snapshot("PrimitiveTypes")
	if err != nil {
		return nil, err
	}
	return r.primitivesFn(snap)
}

func resolvePrimitiveTypes(snap *schema.Snapshot) (*schema.OrderedMap[*schema.PrimitiveType], error) {
	out := schema.NewOrderedMap[*schema.PrimitiveType]()
	for _, name := range builtinPrimitives {
		out.Set(name, &schema.PrimitiveType{GraphQL: name})
	}
	for name, p := range snap.PrimitiveTypes.All() {
		if p.GraphQL == "" {
			return nil, fmt.Errorf("%w: primitive type `%s` has no graphql scalar", strata.ErrUserInput, name)
		}
		out.Set(name, p)
	}
	return out, nil
}
