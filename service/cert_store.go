package service

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"center/domain"
	"center/helpers"
	"center/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var errNoPrivateKey = errors.New("broker private key is not loaded")

// cachedCert is a fetched identity with its public key already parsed.
type cachedCert struct {
	pub    crypto.PublicKey
	config json.RawMessage
}

// certificateStore implements interfaces.CertificateStore on top of a CertSource. Identities are fetched
// on first use and cached for the life of the process (a changed certificate needs a restart); failed
// fetches are not cached. Fields: source, key (broker private key, may be nil), method, maxSkew
// (0 disables the timestamp check), timeProvider, logger; under mu: cache.
type certificateStore struct {
	source       interfaces.CertSource
	key          crypto.Signer
	method       string
	maxSkew      time.Duration
	timeProvider interfaces.TimeProvider
	logger       log.Logger

	mu    sync.RWMutex
	cache map[string]cachedCert
}

// NewCertificateStore creates a CertificateStore. Panics on nil source, timeProvider or logger and on an
// unknown method. A nil key is allowed: Verify keeps working and Sign fails, which makes every handshake
// fail after verification (logged once here).
//
// Parameters: source: certfs.Source or myredis.CertSource; key: broker private key; method: sign_method
// from config; maxSkew: signature_max_skew_ms from config; timeProvider: clock for the skew check.
//
// Called from cmd/main.
func NewCertificateStore(
	source interfaces.CertSource,
	key crypto.Signer,
	method string,
	maxSkew time.Duration,
	timeProvider interfaces.TimeProvider,
	logger log.Logger,
) interfaces.CertificateStore {
	if !ValidSignMethod(method) {
		panic("service.cert_store.go: unknown sign method " + method)
	}
	s := &certificateStore{
		source:       helpers.NilPanic(source, "service.cert_store.go: source is required"),
		key:          key,
		method:       method,
		maxSkew:      maxSkew,
		timeProvider: helpers.NilPanic(timeProvider, "service.cert_store.go: time provider is required"),
		logger:       log.With(helpers.NilPanic(logger, "service.cert_store.go: logger is required"), "component", "cert_store"),
		cache:        make(map[string]cachedCert),
	}
	if key == nil {
		level.Warn(s.logger).Log("msg", "no private key loaded, auth replies cannot be signed")
	}
	return s
}

// Verify resolves id, checks the timestamp window and verifies sig over data.
//
// Returns: (config blob, nil) on success; entity_not_found for an unknown identity; unauthenticated for a
// stale timestamp or a bad signature; internal_server_error when the stored certificate is unusable.
//
// Called from Core while handling the auth command of a pending connection.
func (s *certificateStore) Verify(ctx context.Context, id string, data string, sig domain.Signature) (json.RawMessage, error) {
	cert, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.maxSkew > 0 {
		skew := s.timeProvider.Now().Sub(time.UnixMilli(sig.TS))
		if skew < 0 {
			skew = -skew
		}
		if skew > s.maxSkew {
			return nil, NewUnauthenticatedError("signature timestamp outside the accepted window", nil)
		}
	}
	if !VerifySignature(data, cert.pub, s.method, sig) {
		return nil, NewUnauthenticatedError("signature does not verify", nil)
	}
	return cert.config, nil
}

// Sign signs data with the broker key, stamped with the current time.
//
// Called from Core to build the auth reply.
func (s *certificateStore) Sign(data string) (domain.Signature, error) {
	if s.key == nil {
		return domain.Signature{}, NewInternalServerError("cannot sign", errNoPrivateKey)
	}
	sig, err := MakeSignature(data, s.key, s.method, s.timeProvider.Now().UnixMilli())
	if err != nil {
		return domain.Signature{}, NewInternalServerError("cannot sign", err)
	}
	return sig, nil
}

// fetch returns the cached identity or loads and parses it from the source.
func (s *certificateStore) fetch(ctx context.Context, id string) (cachedCert, error) {
	s.mu.RLock()
	cert, ok := s.cache[id]
	s.mu.RUnlock()
	if ok {
		return cert, nil
	}

	raw, err := s.source.Fetch(ctx, id)
	if err != nil {
		return cachedCert{}, NewEntityNotFoundError("unknown identity", err)
	}
	pub, err := ParsePublicKey(raw.PEM)
	if err != nil {
		level.Error(s.logger).Log("msg", "stored certificate is unusable", "id", id, "err", err)
		return cachedCert{}, NewInternalServerError("stored certificate is unusable", err)
	}
	config := raw.Config
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	cert = cachedCert{pub: pub, config: config}

	s.mu.Lock()
	s.cache[id] = cert
	s.mu.Unlock()
	return cert, nil
}
