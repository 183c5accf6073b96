package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractObjectPlain(t *testing.T) {
	got, ok := ExtractObject(`{"a":1}`)
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, got)
}

func TestExtractObjectFencedWithLanguageTag(t *testing.T) {
	raw := "Here you go:\n```json\n{\"a\": 1}\n```\nanything else"
	got, ok := ExtractObject(raw)
	require.True(t, ok)
	assert.Equal(t, `{"a": 1}`, got)
}

func TestExtractObjectBracesInsideStrings(t *testing.T) {
	raw := `prefix {"note":"has } inside: \"{}\""} suffix`
	got, ok := ExtractObject(raw)
	require.True(t, ok)
	assert.Equal(t, `{"note":"has } inside: \"{}\""}`, got)
}

func TestExtractObjectUnbalanced(t *testing.T) {
	_, ok := ExtractObject(`{"a": 1`)
	assert.False(t, ok)

	_, ok = ExtractObject("no json here")
	assert.False(t, ok)
}
