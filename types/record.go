package types

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// RecordKind names an extensible record type that plugins may extend.
type RecordKind string

const (
	KindAgentConfig      RecordKind = "AgentConfig"
	KindGenerateRequest  RecordKind = "GenerateRequest"
	KindGenerateResponse RecordKind = "GenerateResponse"
	KindChatMessage      RecordKind = "ChatMessage"
)

// FieldType is the declared type of a record field.
type FieldType string

const (
	FieldString FieldType = "string"
	FieldInt    FieldType = "int"
	FieldFloat  FieldType = "float"
	FieldBool   FieldType = "bool"
	FieldList   FieldType = "list"
	FieldMap    FieldType = "map"
	FieldAny    FieldType = "any"
)

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldString, FieldInt, FieldFloat, FieldBool, FieldList, FieldMap, FieldAny:
		return true
	}
	return false
}

// Normalize converts v to the canonical Go representation of t:
// string, int, float64, bool, []any or map[string]any.
// Decoded JSON numbers (float64) are accepted for int fields when integral.
func (t FieldType) Normalize(v any) (any, error) {
	if t == FieldAny {
		return v, nil
	}
	if v == nil {
		return nil, fmt.Errorf("nil is not a valid %s value", t)
	}

	switch t {
	case FieldString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case FieldBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case FieldInt:
		if i, ok := toInt(v); ok {
			return i, nil
		}
	case FieldFloat:
		if f, ok := toFloat(v); ok {
			return f, nil
		}
	case FieldList:
		if l, ok := toList(v); ok {
			return l, nil
		}
	case FieldMap:
		if m, ok := toMap(v); ok {
			return m, nil
		}
	default:
		return nil, fmt.Errorf("unknown field type %q", t)
	}
	return nil, fmt.Errorf("value of type %T is not a valid %s", v, t)
}

// FieldSpec declares a record field: its type, default value and description.
type FieldSpec struct {
	Type        FieldType `json:"type" yaml:"type"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// Schema maps field names to their declarations.
type Schema map[string]FieldSpec

// Names returns the field names in sorted order.
func (s Schema) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a copy of s. Defaults are deep-copied.
func (s Schema) Clone() Schema {
	out := make(Schema, len(s))
	for name, spec := range s {
		spec.Default = cloneValue(spec.Default)
		out[name] = spec
	}
	return out
}

// Extensions holds plugin-contributed fields of a record, keyed by field name.
type Extensions map[string]any

// Get returns the raw value of a field.
func (e Extensions) Get(name string) (any, bool) {
	v, ok := e[name]
	return v, ok
}

// Has reports whether the field is present.
func (e Extensions) Has(name string) bool {
	_, ok := e[name]
	return ok
}

// String returns the field as a string, or "" when absent or not a string.
func (e Extensions) String(name string) string {
	s, _ := e[name].(string)
	return s
}

// Int returns the field as an int.
func (e Extensions) Int(name string) (int, bool) {
	v, ok := e[name]
	if !ok {
		return 0, false
	}
	return toInt(v)
}

// Float returns the field as a float64.
func (e Extensions) Float(name string) (float64, bool) {
	v, ok := e[name]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}

// Bool returns the field as a bool.
func (e Extensions) Bool(name string) (bool, bool) {
	b, ok := e[name].(bool)
	return b, ok
}

// Map returns the field as a map.
func (e Extensions) Map(name string) (map[string]any, bool) {
	v, ok := e[name]
	if !ok {
		return nil, false
	}
	return toMap(v)
}

// List returns the field as a list.
func (e Extensions) List(name string) ([]any, bool) {
	v, ok := e[name]
	if !ok {
		return nil, false
	}
	return toList(v)
}

// Clone returns a deep copy of e. Nested maps and slices are copied.
func (e Extensions) Clone() Extensions {
	if e == nil {
		return nil
	}
	out := make(Extensions, len(e))
	for k, v := range e {
		out[k] = cloneValue(v)
	}
	return out
}

// Record is implemented by every record type plugins may extend.
type Record interface {
	Kind() RecordKind
	Ext() Extensions
	Set(name string, value any)
	Delete(name string)
}

// Extensible carries the plugin-contributed fields of a record.
// Record structs embed it next to their base fields.
type Extensible struct {
	Extensions Extensions `json:"-" yaml:"-"`
}

// Ext returns the extension side-map. It may be nil.
func (x *Extensible) Ext() Extensions {
	return x.Extensions
}

// Set assigns an extension field.
func (x *Extensible) Set(name string, value any) {
	if x.Extensions == nil {
		x.Extensions = make(Extensions)
	}
	x.Extensions[name] = value
}

// Delete removes an extension field.
func (x *Extensible) Delete(name string) {
	delete(x.Extensions, name)
}

// BaseSchema returns the statically declared fields of a record kind.
// Unknown kinds have an empty base schema.
func BaseSchema(kind RecordKind) Schema {
	switch kind {
	case KindAgentConfig:
		return Schema{
			"name":          {Type: FieldString, Description: "Agent name"},
			"role":          {Type: FieldString, Description: "Agent role"},
			"system_prompt": {Type: FieldString, Description: "System prompt"},
			"model":         {Type: FieldString, Default: "llama3.2", Description: "Model name"},
			"temperature":   {Type: FieldFloat, Default: 0.7, Description: "Sampling temperature"},
			"top_p":         {Type: FieldFloat, Description: "Nucleus sampling"},
			"max_tokens":    {Type: FieldInt, Description: "Maximum tokens to predict"},
			"metadata":      {Type: FieldMap, Description: "Free-form metadata"},
		}
	case KindGenerateRequest:
		return Schema{
			"model":   {Type: FieldString, Description: "Model name"},
			"prompt":  {Type: FieldString, Description: "Prompt text"},
			"system":  {Type: FieldString, Description: "System prompt"},
			"stream":  {Type: FieldBool, Default: false, Description: "Stream the response"},
			"options": {Type: FieldMap, Description: "Model options"},
		}
	case KindGenerateResponse:
		return Schema{
			"model":             {Type: FieldString, Description: "Model name"},
			"response":          {Type: FieldString, Description: "Generated text"},
			"done":              {Type: FieldBool, Description: "Generation finished"},
			"total_duration":    {Type: FieldInt, Description: "Total duration in nanoseconds"},
			"prompt_eval_count": {Type: FieldInt, Description: "Prompt tokens evaluated"},
			"eval_count":        {Type: FieldInt, Description: "Tokens generated"},
		}
	case KindChatMessage:
		return Schema{
			"role":    {Type: FieldString, Description: "Message role"},
			"content": {Type: FieldString, Description: "Message content"},
		}
	}
	return Schema{}
}

// ToMap flattens a record, base fields and extensions, into a map.
func ToMap(r Record) (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", r.Kind(), err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", r.Kind(), err)
	}
	return m, nil
}

// FromMap replaces the content of dst with the fields in m.
// Keys that are not base fields of dst become extensions.
func FromMap(m map[string]any, dst Record) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal %s fields: %w", dst.Kind(), err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode %s: %w", dst.Kind(), err)
	}
	return nil
}

// marshalRecord encodes base (a methodless alias of the record struct) and
// inlines the extensions that do not shadow a base field.
func marshalRecord(kind RecordKind, base any, ext Extensions) ([]byte, error) {
	data, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	if len(ext) == 0 {
		return data, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	baseSchema := BaseSchema(kind)
	for name, v := range ext {
		if _, isBase := baseSchema[name]; isBase {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("extension %q: %w", name, err)
		}
		fields[name] = raw
	}
	return json.Marshal(fields)
}

// unmarshalExtensions returns the fields of data that are not base fields of kind.
func unmarshalExtensions(kind RecordKind, data []byte) (Extensions, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	baseSchema := BaseSchema(kind)
	var ext Extensions
	for name, v := range fields {
		if _, isBase := baseSchema[name]; isBase {
			continue
		}
		if ext == nil {
			ext = make(Extensions)
		}
		ext[name] = v
	}
	return ext, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

func toList(v any) ([]any, bool) {
	if l, ok := v.([]any); ok {
		return l, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func toMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Extensions:
		return map[string]any(m), true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case Extensions:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return cloneValue(m).(map[string]any)
}
