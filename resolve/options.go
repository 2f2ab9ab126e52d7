package resolve

import "strconv"

// PrimitiveMode selects the vocabulary property types are reported in.
type PrimitiveMode string

// Primitive vocabularies.
const (
	// BizOps keeps the schema's own primitive names (e.g. Word, Paragraph).
	BizOps PrimitiveMode = "biz-ops"
	// GraphQL translates primitive names to GraphQL scalars (e.g. String).
	GraphQL PrimitiveMode = "graphql"
)

// Options control how a type is resolved. Every field takes part in the
// cache key, so two calls with different options never share a result.
type Options struct {
	WithRelationships      bool
	GroupProperties        bool
	IncludeMetaFields      bool
	IncludeSyntheticFields bool
	UseMinimumViableRecord bool
	PrimitiveTypes         PrimitiveMode
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		WithRelationships:      true,
		IncludeSyntheticFields: true,
		PrimitiveTypes:         BizOps,
	}
}

// Key returns the cache key fragment for the options.
func (o Options) Key() string {
	b := make([]byte, 0, 32)
	for _, f := range []bool{
		o.WithRelationships,
		o.GroupProperties,
		o.IncludeMetaFields,
		o.IncludeSyntheticFields,
		o.UseMinimumViableRecord,
	} {
		b = strconv.AppendBool(b, f)
		b = append(b, ',')
	}
	return string(append(b, o.PrimitiveTypes...))
}

// relationshipKey is the key fragment for options that affect relationships.
func (o Options) relationshipKey() string {
	return strconv.FormatBool(o.IncludeMetaFields) + "," + string(o.PrimitiveTypes)
}

// Option configures Options.
type Option func(*Options)

func buildOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.PrimitiveTypes == "" {
		o.PrimitiveTypes = BizOps
	}
	return o
}

// WithRelationships keeps (true, the default) or drops relationship properties.
func WithRelationships(b bool) Option {
	return func(o *Options) { o.WithRelationships = b }
}

// GroupProperties buckets properties into fieldsets.
func GroupProperties(b bool) Option {
	return func(o *Options) { o.GroupProperties = b }
}

// IncludeMetaFields injects the audit meta-properties.
func IncludeMetaFields(b bool) Option {
	return func(o *Options) { o.IncludeMetaFields = b }
}

// IncludeSyntheticFields keeps (true, the default) or strips cypher-derived
// and recursive properties.
func IncludeSyntheticFields(b bool) Option {
	return func(o *Options) { o.IncludeSyntheticFields = b }
}

// UseMinimumViableRecord pulls the minimum viable record into a leading
// fieldset when grouping.
func UseMinimumViableRecord(b bool) Option {
	return func(o *Options) { o.UseMinimumViableRecord = b }
}

// PrimitiveTypes selects the output vocabulary for primitive types.
func PrimitiveTypes(mode PrimitiveMode) Option {
	return func(o *Options) { o.PrimitiveTypes = mode }
}

// WithOptions replaces all options at once.
func WithOptions(v Options) Option {
	return func(o *Options) { *o = v }
}
