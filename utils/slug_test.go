package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlugShape(t *testing.T) {
	slug := NewSlug()
	require.Len(t, slug, 40)
	for _, r := range slug {
		assert.Contains(t, "0123456789abcdef", string(r))
	}
}

func TestNewSlugUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		slug := NewSlug()
		require.False(t, seen[slug], "duplicate slug %s", slug)
		seen[slug] = true
	}
}
