package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"center/adapters/certfs"
	"center/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memWriter struct {
	certs []domain.Cert
	err   error
}

func (w *memWriter) Put(_ context.Context, cert domain.Cert) error {
	if w.err != nil {
		return w.err
	}
	w.certs = append(w.certs, cert)
	return nil
}

func TestImportCertificates(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for id, cfg := range map[string]string{"b-node": `{"service":"echo"}`, "a-node": `{}`} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".pem"), []byte("pem-"+id), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, id+".json"), []byte(cfg), 0o600))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orphan.pem"), []byte("pem"), 0o600))

	t.Run("copies_in_id_order", func(t *testing.T) {
		w := &memWriter{}
		n, err := importCertificates(ctx, certfs.NewSource(dir), w)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		require.Len(t, w.certs, 2)
		assert.Equal(t, "a-node", w.certs[0].ID)
		assert.Equal(t, "pem-a-node", string(w.certs[0].PEM))
		assert.Equal(t, "b-node", w.certs[1].ID)
		assert.JSONEq(t, `{"service":"echo"}`, string(w.certs[1].Config))
	})

	t.Run("writer_failure", func(t *testing.T) {
		n, err := importCertificates(ctx, certfs.NewSource(dir), &memWriter{err: assert.AnError})
		require.ErrorIs(t, err, assert.AnError)
		assert.Zero(t, n)
		assert.Contains(t, err.Error(), "store certificate a-node")
	})

	t.Run("missing_dir", func(t *testing.T) {
		_, err := importCertificates(ctx, certfs.NewSource(filepath.Join(dir, "nope")), &memWriter{})
		require.Error(t, err)
	})
}
