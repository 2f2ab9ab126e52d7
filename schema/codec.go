package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
	"gopkg.in/yaml.v3"
)

// structTag is the tag msgpack reuses so the wire names match JSON.
const structTag = "json"

// DecodeJSON decodes a transport payload from JSON.
func DecodeJSON(r io.Reader) (*Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, fmt.Errorf("schema: decode json payload: %w", err)
	}
	if p.Schema == nil {
		return nil, fmt.Errorf("schema: payload %q has no schema", p.Version)
	}
	return &p, nil
}

// DecodeMsgpack decodes a transport payload from msgpack.
func DecodeMsgpack(r io.Reader) (*Payload, error) {
	dec := msgpack.NewDecoder(r)
	dec.SetCustomStructTag(structTag)
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("schema: decode msgpack payload: %w", err)
	}
	if p.Schema == nil {
		return nil, fmt.Errorf("schema: payload %q has no schema", p.Version)
	}
	return &p, nil
}

// EncodeMsgpack writes a payload as msgpack using the JSON field names.
func EncodeMsgpack(w io.Writer, p *Payload) error {
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag(structTag)
	return enc.Encode(p)
}

// =============================================================================
// EnumOptions
// =============================================================================

// EnumOptions holds enum values either as a plain ordered list or as an
// ordered value to description map. Both forms normalize to []EnumOption.
type EnumOptions struct {
	options   []EnumOption
	described bool
}

// NewEnumOptions returns options from plain values.
func NewEnumOptions(values ...string) *EnumOptions {
	o := &EnumOptions{}
	for _, v := range values {
		o.options = append(o.options, EnumOption{Value: v})
	}
	return o
}

// NewDescribedEnumOptions returns options from a value to description map.
func NewDescribedEnumOptions(m *OrderedMap[string]) *EnumOptions {
	o := &EnumOptions{described: true}
	for v, d := range m.All() {
		o.options = append(o.options, EnumOption{Value: v, Description: d})
	}
	return o
}

// Options returns the normalized options in order.
func (o *EnumOptions) Options() []EnumOption {
	if o == nil {
		return nil
	}
	return o.options
}

// Values returns the option values in order.
func (o *EnumOptions) Values() []string {
	if o == nil {
		return nil
	}
	vs := make([]string, len(o.options))
	for i, opt := range o.options {
		vs[i] = opt.Value
	}
	return vs
}

// Contains reports whether v is one of the option values.
func (o *EnumOptions) Contains(v string) bool {
	return slices.Contains(o.Values(), v)
}

func (o *EnumOptions) fromList(list []string) {
	*o = *NewEnumOptions(list...)
}

func (o *EnumOptions) fromMap(m *OrderedMap[string]) {
	*o = *NewDescribedEnumOptions(m)
}

func (o *EnumOptions) asMap() *OrderedMap[string] {
	m := NewOrderedMap[string]()
	for _, opt := range o.options {
		m.Set(opt.Value, opt.Description)
	}
	return m
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *EnumOptions) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("schema: enum options: %w", err)
		}
		o.fromList(list)
		return nil
	}
	m := NewOrderedMap[string]()
	if err := m.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("schema: enum options: %w", err)
	}
	o.fromMap(m)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o *EnumOptions) MarshalJSON() ([]byte, error) {
	if o.described {
		return o.asMap().MarshalJSON()
	}
	return json.Marshal(o.Values())
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *EnumOptions) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		o.fromList(list)
		return nil
	}
	m := NewOrderedMap[string]()
	if err := m.UnmarshalYAML(node); err != nil {
		return err
	}
	o.fromMap(m)
	return nil
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (o *EnumOptions) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	if msgpcode.IsFixedMap(code) || code == msgpcode.Map16 || code == msgpcode.Map32 {
		m := NewOrderedMap[string]()
		if err := m.DecodeMsgpack(dec); err != nil {
			return err
		}
		o.fromMap(m)
		return nil
	}
	var list []string
	if err := dec.Decode(&list); err != nil {
		return err
	}
	o.fromList(list)
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (o *EnumOptions) EncodeMsgpack(enc *msgpack.Encoder) error {
	if o.described {
		return o.asMap().EncodeMsgpack(enc)
	}
	return enc.Encode(o.Values())
}

// =============================================================================
// StringPattern
// =============================================================================

type plainPattern StringPattern

// UnmarshalJSON implements json.Unmarshaler.
func (p *StringPattern) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		p.Flags = ""
		return json.Unmarshal(data, &p.Pattern)
	}
	return json.Unmarshal(data, (*plainPattern)(p))
}

// MarshalJSON implements json.Marshaler.
func (p *StringPattern) MarshalJSON() ([]byte, error) {
	if p.Flags == "" {
		return json.Marshal(p.Pattern)
	}
	return json.Marshal((*plainPattern)(p))
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *StringPattern) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		p.Pattern, p.Flags = node.Value, ""
		return nil
	}
	return node.Decode((*plainPattern)(p))
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (p *StringPattern) DecodeMsgpack(dec *msgpack.Decoder) error {
	code, err := dec.PeekCode()
	if err != nil {
		return err
	}
	if msgpcode.IsString(code) {
		s, err := dec.DecodeString()
		if err != nil {
			return err
		}
		p.Pattern, p.Flags = s, ""
		return nil
	}
	return dec.Decode((*plainPattern)(p))
}

// EncodeMsgpack implements msgpack.CustomEncoder.
func (p *StringPattern) EncodeMsgpack(enc *msgpack.Encoder) error {
	if p.Flags == "" {
		return enc.EncodeString(p.Pattern)
	}
	return enc.Encode((*plainPattern)(p))
}
