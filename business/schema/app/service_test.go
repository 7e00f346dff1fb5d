package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobot-tf/pricewatch/internal/apperror"
	"github.com/autobot-tf/pricewatch/internal/logger"
)

func testLogger() logger.LoggerInterface {
	return logger.New(nopWriter{}, logger.LevelError, "test", nil)
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func loadedService(t *testing.T, itemsJSON string) *Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte(itemsJSON), 0o644))

	s := NewService(testLogger())
	require.NoError(t, s.LoadFile(context.Background(), path))
	return s
}

func TestService_LoadFile(t *testing.T) {
	s := loadedService(t, `{"5021":"Mann Co. Supply Crate Key","205":"Rocket Launcher","bogus":"skipped"}`)

	assert.Equal(t, "Mann Co. Supply Crate Key", s.GetName("5021;6"))
	assert.Len(t, s.items, 2, "non-numeric defindexes are skipped")
}

func TestService_LoadFile_EmptyPathIsNoop(t *testing.T) {
	s := NewService(testLogger())
	require.NoError(t, s.LoadFile(context.Background(), ""))
	assert.Equal(t, "5021;6", s.GetName("5021;6"))
}

func TestService_LoadFile_MissingFile(t *testing.T) {
	s := NewService(testLogger())
	err := s.LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeConfigurationError, apperror.GetCode(err))
}

func TestService_LoadFile_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte(`[1,2,3]`), 0o644))

	s := NewService(testLogger())
	err := s.LoadFile(context.Background(), path)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeInvalidFormat, apperror.GetCode(err))
}

func TestService_GetName(t *testing.T) {
	s := loadedService(t, `{"205":"Rocket Launcher","5021":"Mann Co. Supply Crate Key"}`)

	tests := []struct {
		sku  string
		want string
	}{
		{"205;6", "Rocket Launcher"}, // Unique quality is implied, not prefixed
		{"205;11", "Strange Rocket Launcher"},
		{"205;1", "Genuine Rocket Launcher"},
		{"205;6;uncraftable", "Non-Craftable Rocket Launcher"},
		{"205;11;australium", "Strange Australium Rocket Launcher"},
		{"205;11;kt-3", "Strange Professional Killstreak Rocket Launcher"},
		{"205;6;kt-2;festive", "Festivized Specialized Killstreak Rocket Launcher"},
		{"205;5;u13", "Unusual Rocket Launcher"},
		{"99999;6", "99999;6"},   // not in the table
		{"not-a-sku", "not-a-sku"}, // unparseable
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, s.GetName(tt.sku), "sku %s", tt.sku)
	}
}

func TestService_Exists(t *testing.T) {
	s := loadedService(t, `{"205":"Rocket Launcher"}`)

	assert.True(t, s.Exists("205;6"))
	assert.True(t, s.Exists("205;11;australium"))
	assert.False(t, s.Exists("99999;6"))
	assert.False(t, s.Exists("garbage"))
}

func TestService_Exists_NoTableLoaded(t *testing.T) {
	s := NewService(testLogger())

	// With nothing loaded there is no data to contradict a valid SKU.
	assert.True(t, s.Exists("205;6"))
	assert.False(t, s.Exists("garbage"))
}
