package certfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"center/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeIdentity(t *testing.T, dir string, id string, pem string, config string) {
	t.Helper()
	if pem != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".pem"), []byte(pem), 0o600))
	}
	if config != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(config), 0o600))
	}
}

func TestNewSource_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "certfs.source.go: dir is required", func() {
		NewSource("")
	})
}

func TestSource_Fetch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeIdentity(t, dir, "node-1", "-----BEGIN PUBLIC KEY-----\n", `{"service":"echo"}`)
	writeIdentity(t, dir, "no-config", "pem", "")
	writeIdentity(t, dir, "no-pem", "", `{}`)
	writeIdentity(t, dir, "bad-config", "pem", `{"service":`)
	s := NewSource(dir)

	t.Run("found", func(t *testing.T) {
		cert, err := s.Fetch(ctx, "node-1")
		require.NoError(t, err)
		assert.Equal(t, "node-1", cert.ID)
		assert.Equal(t, "-----BEGIN PUBLIC KEY-----\n", string(cert.PEM))
		assert.JSONEq(t, `{"service":"echo"}`, string(cert.Config))
	})

	notFound := []string{"missing", "no-config", "no-pem", "", "..", "../etc/passwd", `a\b`}
	for _, id := range notFound {
		t.Run("not found "+id, func(t *testing.T) {
			_, err := s.Fetch(ctx, id)
			assert.True(t, service.IsEntityNotFoundError(err))
		})
	}

	t.Run("invalid config", func(t *testing.T) {
		_, err := s.Fetch(ctx, "bad-config")
		assert.True(t, service.IsInternalServerError(err))
	})
}

func TestSource_List(t *testing.T) {
	dir := t.TempDir()
	writeIdentity(t, dir, "b", "pem", `{}`)
	writeIdentity(t, dir, "a", "pem", `{}`)
	writeIdentity(t, dir, "half", "pem", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pem"), 0o700))

	ids, err := NewSource(dir).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, err = NewSource(filepath.Join(dir, "missing")).List(context.Background())
	assert.True(t, service.IsInternalServerError(err))
}
