package gatekeeper

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()

	registry := NewRegistry()
	for _, key := range []string{"block_bots", "minimum_creation_time", "block_default_avatar", "block_all", "username_regex"} {
		require.NoError(t, registry.Register(stubCheck(key, Pass())))
	}
	registry.Seal()
	return registry
}

func TestCompiler_Compile(t *testing.T) {
	compiler := NewCompiler(testRegistry(t))

	doc := `
# bounce raiders
- block_bots
- minimum_creation_time: 86400
- username_regex: "discord\\.gg"
- block_default_avatar:
`
	policy, err := compiler.Compile("g1", []byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "g1", policy.GuildID())
	assert.Equal(t, []PolicyEntry{
		{CheckKey: "block_bots"},
		{CheckKey: "minimum_creation_time", RawConfig: "86400"},
		{CheckKey: "username_regex", RawConfig: `discord\.gg`},
		{CheckKey: "block_default_avatar"},
	}, policy.Entries())
	assert.Equal(t, []string{"block_bots", "minimum_creation_time", "username_regex", "block_default_avatar"}, policy.CheckKeys())
	assert.Len(t, policy.Digest(), 64)
	assert.False(t, policy.CompiledAt().IsZero())
}

func TestCompiler_DuplicateEntriesAreKept(t *testing.T) {
	compiler := NewCompiler(testRegistry(t))

	policy, err := compiler.Compile("g1", []byte("- username_regex: a\n- username_regex: b\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, policy.Len())
}

func TestCompiler_ConfigIsNotValidated(t *testing.T) {
	compiler := NewCompiler(testRegistry(t))

	policy, err := compiler.Compile("g1", []byte("- minimum_creation_time: abc\n- username_regex: '['\n"))
	require.NoError(t, err)
	assert.Equal(t, "abc", policy.Entries()[0].RawConfig)
	assert.Equal(t, "[", policy.Entries()[1].RawConfig)
}

func TestCompiler_EmptyDocuments(t *testing.T) {
	compiler := NewCompiler(testRegistry(t))

	for _, doc := range []string{"", "   \n", "# nothing here\n", "~", "[]"} {
		policy, err := compiler.Compile("g1", []byte(doc))
		require.NoError(t, err, "document %q", doc)
		assert.Equal(t, 0, policy.Len(), "document %q", doc)
	}
}

func TestCompiler_UnknownCheck(t *testing.T) {
	compiler := NewCompiler(testRegistry(t))

	_, err := compiler.Compile("g1", []byte("- block_bots\n- block_vpn: yes\n"))
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrUnknownCheck))
	assert.False(t, errors.Is(err, ErrMalformedDocument))

	cfgErr, ok := AsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, CodeUnknownCheck, cfgErr.Code)
	assert.Equal(t, "block_vpn", cfgErr.Key)
	assert.Equal(t, 2, cfgErr.Line)
	assert.Contains(t, cfgErr.Error(), "line 2")
}

func TestCompiler_MalformedDocuments(t *testing.T) {
	compiler := NewCompiler(testRegistry(t))

	tests := []struct {
		name string
		doc  string
	}{
		{"invalid yaml", "- block_bots\n- [unclosed\n"},
		{"top level mapping", "block_bots: true\n"},
		{"top level scalar", "block_bots\n"},
		{"entry with two keys", "- block_bots: x\n  block_all: y\n"},
		{"nested list config", "- username_regex: [a, b]\n"},
		{"nested mapping config", "- minimum_creation_time: {seconds: 5}\n"},
		{"nested list entry", "- [block_bots]\n"},
		{"empty key", "- ''\n"},
		{"null entry", "- ~\n"},
		{"multiple documents", "- block_bots\n---\n- block_all\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.Compile("g1", []byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedDocument)

			cfgErr, ok := AsConfigError(err)
			require.True(t, ok)
			assert.Equal(t, CodeMalformedDocument, cfgErr.Code)
		})
	}
}

func TestCompiler_Validate(t *testing.T) {
	compiler := NewCompiler(testRegistry(t))

	assert.NoError(t, compiler.Validate([]byte("- block_all\n")))
	assert.ErrorIs(t, compiler.Validate([]byte("- nope\n")), ErrUnknownCheck)
}

func TestRender_RoundTrip(t *testing.T) {
	compiler := NewCompiler(testRegistry(t))

	doc := "- block_bots\n- minimum_creation_time: 3600\n- username_regex: '^(spam|scam)[0-9]+: x'\n"
	policy, err := compiler.Compile("g1", []byte(doc))
	require.NoError(t, err)

	rendered, err := Render(policy)
	require.NoError(t, err)

	again, err := compiler.Compile("g1", rendered)
	require.NoError(t, err)
	assert.Equal(t, policy.Entries(), again.Entries())
	assert.Contains(t, string(rendered), "- block_bots\n")
}

func TestRender_EmptyPolicy(t *testing.T) {
	compiler := NewCompiler(testRegistry(t))

	policy, err := compiler.Compile("g1", nil)
	require.NoError(t, err)

	rendered, err := Render(policy)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(rendered))
}
