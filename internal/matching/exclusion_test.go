package matching_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/live-support/internal/matching"
)

func TestExclusionRegistry_AddContainsClear(t *testing.T) {
	registry := matching.NewExclusionRegistry()

	assert.False(t, registry.Contains("u1", "a1"))

	registry.Add("u1", "a1")
	registry.Add("u1", "a2")
	registry.Add("u2", "a1")

	assert.True(t, registry.Contains("u1", "a1"))
	assert.True(t, registry.Contains("u1", "a2"))
	assert.True(t, registry.Contains("u2", "a1"))
	assert.False(t, registry.Contains("u2", "a2"))

	registry.Clear("u1")
	assert.False(t, registry.Contains("u1", "a1"))
	assert.False(t, registry.Contains("u1", "a2"))
	// Other requesters keep their entries.
	assert.True(t, registry.Contains("u2", "a1"))
}

func TestExclusionRegistry_AddIsIdempotent(t *testing.T) {
	registry := matching.NewExclusionRegistry()
	registry.Add("u1", "a1")
	registry.Add("u1", "a1")
	assert.True(t, registry.Contains("u1", "a1"))

	registry.Clear("u1")
	assert.False(t, registry.Contains("u1", "a1"))
}

func TestExclusionRegistry_ClearUnknownRequesterIsNoOp(t *testing.T) {
	registry := matching.NewExclusionRegistry()
	registry.Clear("ghost")
	assert.False(t, registry.Contains("ghost", "a1"))
}
