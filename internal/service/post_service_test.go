package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlatforms(t *testing.T) {
	platforms, err := parsePlatforms(`["twitter","telegram"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"twitter", "telegram"}, platforms)
}

func TestParsePlatformsRejectsEmpty(t *testing.T) {
	_, err := parsePlatforms(`[]`)
	assert.Error(t, err)
}

func TestParsePlatformsRejectsUnknown(t *testing.T) {
	_, err := parsePlatforms(`["myspace"]`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "myspace")
}

func TestParsePlatformsRejectsDuplicates(t *testing.T) {
	_, err := parsePlatforms(`["twitter","twitter"]`)
	assert.Error(t, err)
}

func TestParsePlatformsRejectsMalformed(t *testing.T) {
	_, err := parsePlatforms(`twitter`)
	assert.Error(t, err)
}
