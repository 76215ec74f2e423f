package plugins

import (
	"fmt"
	"sort"

	"github.com/BaSui01/aicli/types"
)

// SchemaWarning records a plugin field that was skipped during the merge
// because another contributor already owns the name.
type SchemaWarning struct {
	Kind   types.RecordKind `json:"kind"`
	Field  string           `json:"field"`
	Plugin string           `json:"plugin"`
	// Owner is the plugin that keeps the field, or "" for a base field.
	Owner string `json:"owner,omitempty"`
}

func (w SchemaWarning) String() string {
	owner := "base record"
	if w.Owner != "" {
		owner = fmt.Sprintf("plugin %q", w.Owner)
	}
	return fmt.Sprintf("%s.%s from plugin %q skipped: already declared by %s", w.Kind, w.Field, w.Plugin, owner)
}

// ResolvedSchema is the merged field set of one record kind.
type ResolvedSchema struct {
	Kind   types.RecordKind `json:"kind"`
	Fields types.Schema     `json:"fields"`
	// Sources maps each field to its contributing plugin, "" for base fields.
	Sources  map[string]string `json:"sources"`
	Warnings []SchemaWarning   `json:"warnings,omitempty"`
}

// IsBase reports whether name is a base field of the record kind.
func (s ResolvedSchema) IsBase(name string) bool {
	src, ok := s.Sources[name]
	return ok && src == ""
}

// Extensions returns the plugin-contributed fields only.
func (s ResolvedSchema) Extensions() types.Schema {
	out := make(types.Schema)
	for name, spec := range s.Fields {
		if !s.IsBase(name) {
			out[name] = spec
		}
	}
	return out
}

// FieldsFrom returns the names of the fields contributed by plugin, sorted.
func (s ResolvedSchema) FieldsFrom(plugin string) []string {
	var names []string
	for name, src := range s.Sources {
		if src == plugin && plugin != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (s ResolvedSchema) clone() ResolvedSchema {
	out := ResolvedSchema{
		Kind:    s.Kind,
		Fields:  s.Fields.Clone(),
		Sources: make(map[string]string, len(s.Sources)),
	}
	for k, v := range s.Sources {
		out.Sources[k] = v
	}
	if len(s.Warnings) > 0 {
		out.Warnings = append([]SchemaWarning(nil), s.Warnings...)
	}
	return out
}

func baseResolved(kind types.RecordKind) ResolvedSchema {
	base := types.BaseSchema(kind)
	rs := ResolvedSchema{
		Kind:    kind,
		Fields:  base,
		Sources: make(map[string]string, len(base)),
	}
	for name := range base {
		rs.Sources[name] = ""
	}
	return rs
}

// validateExtensions checks the declared extensions of a plugin before it
// is admitted to the registry.
func validateExtensions(d Descriptor) error {
	kinds := make([]types.RecordKind, 0, len(d.Extensions))
	for kind := range d.Extensions {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, kind := range kinds {
		schema := d.Extensions[kind]
		base := types.BaseSchema(kind)
		for _, name := range schema.Names() {
			spec := schema[name]
			if name == "" {
				return fmt.Errorf("%w: plugin %q declares an empty field name on %s", ErrInvalidSchema, d.Name, kind)
			}
			if !spec.Type.Valid() {
				return fmt.Errorf("%w: plugin %q field %s.%s has unknown type %q", ErrInvalidSchema, d.Name, kind, name, spec.Type)
			}
			if spec.Default != nil {
				if _, err := spec.Type.Normalize(spec.Default); err != nil {
					return fmt.Errorf("%w: plugin %q field %s.%s default: %v", ErrInvalidSchema, d.Name, kind, name, err)
				}
			}
			if b, ok := base[name]; ok && b.Type != spec.Type {
				return &SchemaConflictError{
					Plugin:     d.Name,
					Kind:       kind,
					Field:      name,
					BaseType:   b.Type,
					PluginType: spec.Type,
				}
			}
		}
	}
	return nil
}

// resolveSchemas merges the base fields with the extensions of the enabled
// entries, in registration order. The first contributor of a name wins.
func resolveSchemas(entries []*entry) map[types.RecordKind]ResolvedSchema {
	out := make(map[types.RecordKind]ResolvedSchema)
	for _, kind := range []types.RecordKind{
		types.KindAgentConfig, types.KindGenerateRequest, types.KindGenerateResponse, types.KindChatMessage,
	} {
		out[kind] = baseResolved(kind)
	}

	for _, e := range entries {
		if !e.config.Enabled {
			continue
		}
		kinds := make([]types.RecordKind, 0, len(e.desc.Extensions))
		for kind := range e.desc.Extensions {
			kinds = append(kinds, kind)
		}
		sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

		for _, kind := range kinds {
			rs, ok := out[kind]
			if !ok {
				rs = baseResolved(kind)
			}
			schema := e.desc.Extensions[kind]
			for _, name := range schema.Names() {
				if owner, taken := rs.Sources[name]; taken {
					rs.Warnings = append(rs.Warnings, SchemaWarning{
						Kind:   kind,
						Field:  name,
						Plugin: e.desc.Name,
						Owner:  owner,
					})
					continue
				}
				rs.Fields[name] = schema[name]
				rs.Sources[name] = e.desc.Name
			}
			out[kind] = rs
		}
	}
	return out
}
