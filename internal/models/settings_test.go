package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSettings(t *testing.T) {
	settings := DefaultSettings()

	assert.Equal(t, SeverityMedium, settings.DefaultSeverity)
	assert.Equal(t, "#0000FF", settings.AccentColorHex)
	assert.False(t, settings.DarkModeEnabled)
}
