package plugins

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/aicli/types"
)

func extPlugin(name string, kind types.RecordKind, schema types.Schema) *mockPlugin {
	p := newMockPlugin(name, "1.0.0")
	p.ext = map[types.RecordKind]types.Schema{kind: schema}
	return p
}

func TestResolveSchema_BaseOnly(t *testing.T) {
	r := newTestRegistry(t)
	rs := r.ResolveSchema(types.KindChatMessage)

	assert.Equal(t, types.KindChatMessage, rs.Kind)
	assert.Equal(t, types.BaseSchema(types.KindChatMessage), rs.Fields)
	assert.Empty(t, rs.Extensions())
	assert.Empty(t, rs.Warnings)
}

func TestResolveSchema_FirstRegisteredWins(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(extPlugin("A", types.KindGenerateRequest, types.Schema{
		"x": {Type: types.FieldInt, Default: 1, Description: "from A"},
	}), withPriority(1)))
	require.NoError(t, r.Register(extPlugin("B", types.KindGenerateRequest, types.Schema{
		"x": {Type: types.FieldString, Description: "from B"},
		"y": {Type: types.FieldBool},
	}), withPriority(100)))

	rs := r.ResolveSchema(types.KindGenerateRequest)
	assert.Equal(t, types.FieldInt, rs.Fields["x"].Type)
	assert.Equal(t, "A", rs.Sources["x"])
	assert.Equal(t, "B", rs.Sources["y"])
	require.Len(t, rs.Warnings, 1)
	assert.Equal(t, SchemaWarning{Kind: types.KindGenerateRequest, Field: "x", Plugin: "B", Owner: "A"}, rs.Warnings[0])
	assert.Contains(t, rs.Warnings[0].String(), `plugin "A"`)
	assert.Equal(t, []string{"x"}, rs.FieldsFrom("A"))
}

func TestResolveSchema_ReflectsMutations(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(extPlugin("A", types.KindAgentConfig, types.Schema{"top_k": {Type: types.FieldInt}})))
	require.NoError(t, r.Register(extPlugin("B", types.KindAgentConfig, types.Schema{"top_k": {Type: types.FieldFloat}})))

	assert.Equal(t, types.FieldInt, r.ResolveSchema(types.KindAgentConfig).Fields["top_k"].Type)

	require.NoError(t, r.SetEnabled("A", false))
	rs := r.ResolveSchema(types.KindAgentConfig)
	assert.Equal(t, types.FieldFloat, rs.Fields["top_k"].Type, "disabled plugins do not contribute")
	assert.Empty(t, rs.Warnings)

	require.NoError(t, r.Unregister(context.Background(), "B"))
	_, ok := r.ResolveSchema(types.KindAgentConfig).Fields["top_k"]
	assert.False(t, ok)
}

func TestResolveSchema_UnknownKind(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(extPlugin("A", types.RecordKind("Session"), types.Schema{"id": {Type: types.FieldString}})))

	rs := r.ResolveSchema("Session")
	assert.Equal(t, "A", rs.Sources["id"])
	assert.Empty(t, r.ResolveSchema("Other").Fields)
}

func TestResolveSchema_ReturnsCopy(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(extPlugin("A", types.KindChatMessage, types.Schema{
		"tags": {Type: types.FieldList, Default: []any{"a"}},
	})))

	rs := r.ResolveSchema(types.KindChatMessage)
	rs.Fields["tags"].Default.([]any)[0] = "mutated"
	delete(rs.Fields, "role")

	again := r.ResolveSchema(types.KindChatMessage)
	assert.Equal(t, []any{"a"}, again.Fields["tags"].Default)
	assert.Contains(t, again.Fields, "role")
}

// Feature: plugin-schema-merge, Property: resolution is deterministic
func TestProperty_ResolveSchemaDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	fieldTypes := []types.FieldType{types.FieldString, types.FieldInt, types.FieldFloat, types.FieldBool}

	properties.Property("resolving twice without mutation yields identical schemas", prop.ForAll(
		func(fieldIdx []int, typeIdx []int) bool {
			r := NewInMemoryPluginRegistry(nil)
			for i := range fieldIdx {
				name := fmt.Sprintf("field_%d", fieldIdx[i]%5)
				ft := fieldTypes[typeIdx[i%len(typeIdx)]%len(fieldTypes)]
				p := extPlugin(fmt.Sprintf("plugin_%d", i), types.KindGenerateRequest, types.Schema{name: {Type: ft}})
				if err := r.Register(p); err != nil {
					t.Logf("Register failed: %v", err)
					return false
				}
			}

			first := r.ResolveSchema(types.KindGenerateRequest)
			second := r.ResolveSchema(types.KindGenerateRequest)
			if !assert.ObjectsAreEqual(first, second) {
				t.Logf("schemas differ: %+v vs %+v", first, second)
				return false
			}

			// each field is owned by the first plugin declaring it
			owners := make(map[string]string)
			for i := range fieldIdx {
				name := fmt.Sprintf("field_%d", fieldIdx[i]%5)
				if _, ok := owners[name]; !ok {
					owners[name] = fmt.Sprintf("plugin_%d", i)
				}
			}
			for name, owner := range owners {
				if first.Sources[name] != owner {
					t.Logf("field %s owned by %s, want %s", name, first.Sources[name], owner)
					return false
				}
			}
			return len(first.Warnings) == len(fieldIdx)-len(owners)
		},
		gen.SliceOfN(8, gen.IntRange(0, 100)),
		gen.SliceOfN(8, gen.IntRange(0, 100)).SuchThat(func(v []int) bool { return len(v) > 0 }),
	))

	properties.TestingRun(t)
}
