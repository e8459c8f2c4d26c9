package moderation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"streamroom/sdk/internal/moderation"
)

func TestFilterSetIntersects(t *testing.T) {
	set := moderation.NewFilterSet("profanity", "spam", "")

	assert.True(t, set.Intersects([]string{"profanity"}))
	assert.True(t, set.Intersects([]string{"mild-language", "spam"}))
	assert.False(t, set.Intersects([]string{"mild-language"}))
	assert.False(t, set.Intersects(nil))
	assert.False(t, set.Intersects([]string{""}))
}

func TestEmptyFilterSetNeverMatches(t *testing.T) {
	assert.False(t, moderation.NewFilterSet().Intersects([]string{"profanity"}))
	assert.False(t, moderation.FilterSet(nil).Intersects([]string{"profanity"}))
}
