package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStyler_NoColor(t *testing.T) {
	s := NewStyler(true)
	assert.Equal(t, "✓ saved", s.Success("saved"))
	assert.Equal(t, "✗ failed", s.Error("failed"))
	assert.Equal(t, "ℹ info message", s.Info("info message"))
	assert.Equal(t, "⚠ warning", s.Warn("warning"))
}

func TestStyler_WithColor(t *testing.T) {
	s := NewStyler(false)
	result := s.Success("test")
	assert.Contains(t, result, "✓")
	assert.Contains(t, result, "test")
	assert.Contains(t, result, "\033[")
}

func TestFormatJSON(t *testing.T) {
	result, err := FormatJSON(map[string]interface{}{"tenant_id": "T1", "model": "gpt-4"})
	assert.NoError(t, err)
	assert.Contains(t, result, "T1")
	assert.Contains(t, result, "\n")
}

func TestFormatJSON_Error(t *testing.T) {
	_, err := FormatJSON(make(chan int))
	assert.Error(t, err)
}

func TestFprintFields_SkipsEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FprintFields(&buf, []Field{
		{"Tenant ID", "T1"},
		{"Temperature", ""},
		{"Model", "gpt-4"},
	}))
	out := buf.String()
	assert.Contains(t, out, "Tenant ID:")
	assert.Contains(t, out, "gpt-4")
	assert.NotContains(t, out, "Temperature")
}
