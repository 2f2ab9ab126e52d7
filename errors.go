package strata

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common failure classes.
var (
	// ErrSchemaNotLoaded is returned when an accessor is used before any
	// snapshot has been set.
	ErrSchemaNotLoaded = errors.New("strata: schema not loaded")

	// ErrUserInput is matched by every error caused by malformed input data:
	// unknown types, properties or relationships, ambiguous relationship
	// definitions and failed value validation.
	ErrUserInput = errors.New("strata: invalid input")

	// ErrTransport is matched by errors raised while fetching or decoding a
	// remote schema snapshot.
	ErrTransport = errors.New("strata: transport failure")
)

// SchemaNotLoadedError is returned by accessors called before hydration.
type SchemaNotLoadedError struct {
	Accessor string // accessor that was called
}

// Error returns the error string.
func (e *SchemaNotLoadedError) Error() string {
	if e.Accessor != "" {
		return fmt.Sprintf("strata: cannot call %s: schema data has not been loaded", e.Accessor)
	}
	return ErrSchemaNotLoaded.Error()
}

// Is reports whether the target error matches ErrSchemaNotLoaded.
func (e *SchemaNotLoadedError) Is(err error) bool {
	return err == ErrSchemaNotLoaded
}

// NewSchemaNotLoadedError returns a new SchemaNotLoadedError for the accessor.
func NewSchemaNotLoadedError(accessor string) *SchemaNotLoadedError {
	return &SchemaNotLoadedError{Accessor: accessor}
}

// IsSchemaNotLoaded returns true if the error means no snapshot is present.
func IsSchemaNotLoaded(err error) bool {
	return err != nil && errors.Is(err, ErrSchemaNotLoaded)
}

// UnknownTypeError is returned when a type name is not part of the schema.
type UnknownTypeError struct {
	Type string
}

// Error returns the error string.
func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("Invalid type `%s`", e.Type)
}

// Is reports whether the target error matches ErrUserInput.
func (e *UnknownTypeError) Is(err error) bool {
	return err == ErrUserInput
}

// NewUnknownTypeError returns a new UnknownTypeError.
func NewUnknownTypeError(typeName string) *UnknownTypeError {
	return &UnknownTypeError{Type: typeName}
}

// IsUnknownType returns true if the error is an UnknownTypeError.
func IsUnknownType(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownTypeError
	return errors.As(err, &e)
}

// UnknownPropertyError is returned when a property is not defined on a type.
type UnknownPropertyError struct {
	Type     string
	Property string
}

// Error returns the error string.
func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("Invalid property `%s` on type `%s`", e.Property, e.Type)
}

// Is reports whether the target error matches ErrUserInput.
func (e *UnknownPropertyError) Is(err error) bool {
	return err == ErrUserInput
}

// NewUnknownPropertyError returns a new UnknownPropertyError.
func NewUnknownPropertyError(typeName, property string) *UnknownPropertyError {
	return &UnknownPropertyError{Type: typeName, Property: property}
}

// IsUnknownProperty returns true if the error is an UnknownPropertyError.
func IsUnknownProperty(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownPropertyError
	return errors.As(err, &e)
}

// UnknownRelationshipError is returned when a property cannot be resolved as
// a relationship from the given root type.
type UnknownRelationshipError struct {
	Type     string
	Property string
	Reason   string
}

// Error returns the error string.
func (e *UnknownRelationshipError) Error() string {
	msg := fmt.Sprintf("Invalid relationship `%s` on type `%s`", e.Property, e.Type)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is reports whether the target error matches ErrUserInput.
func (e *UnknownRelationshipError) Is(err error) bool {
	return err == ErrUserInput
}

// NewUnknownRelationshipError returns a new UnknownRelationshipError.
func NewUnknownRelationshipError(typeName, property, reason string) *UnknownRelationshipError {
	return &UnknownRelationshipError{Type: typeName, Property: property, Reason: reason}
}

// IsUnknownRelationship returns true if the error is an UnknownRelationshipError.
func IsUnknownRelationship(err error) bool {
	if err == nil {
		return false
	}
	var e *UnknownRelationshipError
	return errors.As(err, &e)
}

// AmbiguousRelationshipError is returned when a rich relationship joins a
// type to itself and the referencing property gives no direction.
type AmbiguousRelationshipError struct {
	Type             string
	Property         string
	RelationshipType string
}

// Error returns the error string.
func (e *AmbiguousRelationshipError) Error() string {
	return fmt.Sprintf(
		"Ambiguous relationship `%s` on type `%s`: relationship type `%s` starts and ends at the same type, so the property must declare a direction",
		e.Property, e.Type, e.RelationshipType,
	)
}

// Is reports whether the target error matches ErrUserInput.
func (e *AmbiguousRelationshipError) Is(err error) bool {
	return err == ErrUserInput
}

// NewAmbiguousRelationshipError returns a new AmbiguousRelationshipError.
func NewAmbiguousRelationshipError(typeName, property, relType string) *AmbiguousRelationshipError {
	return &AmbiguousRelationshipError{Type: typeName, Property: property, RelationshipType: relType}
}

// IsAmbiguousRelationship returns true if the error is an AmbiguousRelationshipError.
func IsAmbiguousRelationship(err error) bool {
	if err == nil {
		return false
	}
	var e *AmbiguousRelationshipError
	return errors.As(err, &e)
}

// ValidationError is returned when a value fails a type, pattern, enum or
// cardinality check.
type ValidationError struct {
	Type     string // Type the property belongs to
	Property string // Property (or alias) being validated
	Value    any    // Offending value
	Reason   string // Human readable reason
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("Invalid value `%s` for property `%s` on type `%s`: %s",
		FormatValue(e.Value), e.Property, e.Type, e.Reason)
}

// Is reports whether the target error matches ErrUserInput.
func (e *ValidationError) Is(err error) bool {
	return err == ErrUserInput
}

// NewValidationError returns a new ValidationError.
func NewValidationError(typeName, property string, value any, reason string) *ValidationError {
	return &ValidationError{Type: typeName, Property: property, Value: value, Reason: reason}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// IsUserError returns true if the error was caused by malformed input data
// and should be surfaced to the caller verbatim.
func IsUserError(err error) bool {
	return err != nil && errors.Is(err, ErrUserInput)
}

// TransportError wraps a failure to fetch or decode a schema snapshot.
type TransportError struct {
	Op  string // Operation (e.g., "fetch", "decode", "apply")
	URL string // Resource location, if any
	Err error  // Underlying error
}

// Error returns the error string.
func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("strata: ")
	b.WriteString(e.Op)
	if e.URL != "" {
		b.WriteString(" ")
		b.WriteString(e.URL)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches ErrTransport.
func (e *TransportError) Is(err error) bool {
	return err == ErrTransport
}

// NewTransportError returns a new TransportError.
func NewTransportError(op, url string, err error) *TransportError {
	return &TransportError{Op: op, URL: url, Err: err}
}

// IsTransportError returns true if the error is a TransportError.
func IsTransportError(err error) bool {
	return err != nil && errors.Is(err, ErrTransport)
}

// FormatValue renders a runtime value the way it appears in error messages.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case []any:
		parts := make([]string, len(v))
		for i := range v {
			parts[i] = FormatValue(v[i])
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(v)
	}
}
