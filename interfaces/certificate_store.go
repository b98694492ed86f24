package interfaces

import (
	"context"
	"encoding/json"

	"center/domain"
)

// CertificateStore resolves identities to their certificates, verifies handshake signatures and
// produces the broker's own signatures.
//
// Implemented by service.certificateStore. Called from service.Core while handling the auth command.
//
//go:generate moq -stub -out mock/certificate_store.go -pkg mock . CertificateStore
type CertificateStore interface {
	// Verify checks that sig is a valid signature of data by identity id.
	// Returns: (config blob, nil) when the identity exists and the signature verifies;
	// (nil, error) otherwise: unknown identity (entity_not_found), bad signature or stale timestamp (unauthenticated).
	Verify(ctx context.Context, id string, data string, sig domain.Signature) (json.RawMessage, error)

	// Sign signs data with the broker's private key.
	// Returns: (envelope, nil) on success; error when no private key is loaded.
	Sign(data string) (domain.Signature, error)
}

// CertSource loads stored identities. Implemented by certfs.Source (files <id>.pem + <id>.json) and
// myredis.CertSource (Redis keys cert:<id>). Results are cached by service.certificateStore.
//
//go:generate moq -stub -out mock/cert_source.go -pkg mock . CertSource
type CertSource interface {
	// Fetch returns the identity id.
	// Returns: (cert, nil) when found; (zero, entity_not_found) when absent; (zero, internal_server_error) on storage failure.
	Fetch(ctx context.Context, id string) (domain.Cert, error)
}
