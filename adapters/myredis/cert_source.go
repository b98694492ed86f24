package myredis

import (
	"context"
	"encoding/json"
	"sort"

	"center/domain"
	"center/helpers"

	"github.com/go-redis/redis/v8"
)

const certPrefix = "cert"

// certRecord is the JSON stored at cert:<id>.
type certRecord struct {
	ID     string          `json:"id"`
	PEM    string          `json:"pem"`
	Config json.RawMessage `json:"config"`
}

func marshalCert(c domain.Cert) ([]byte, error) {
	return json.Marshal(certRecord{ID: c.ID, PEM: string(c.PEM), Config: c.Config})
}

func unmarshalCert(b []byte) (domain.Cert, error) {
	var r certRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return domain.Cert{}, err
	}
	return domain.Cert{ID: r.ID, PEM: []byte(r.PEM), Config: r.Config}, nil
}

// CertSource keeps identities in Redis, one JSON record per key cert:<id>. It lets several brokers share
// one identity list.
type CertSource struct {
	cache *redisCache[domain.Cert]
}

// NewCertSource creates a CertSource. Panics on nil client.
//
// Called from cmd/main when cert_store is "redis".
func NewCertSource(client redis.UniversalClient) *CertSource {
	return &CertSource{
		cache: NewCache(helpers.NilPanic(client, "myredis.cert_source.go: client is required"), certPrefix, marshalCert, unmarshalCert),
	}
}

// Fetch returns identity id; entity_not_found when absent.
func (s *CertSource) Fetch(ctx context.Context, id string) (domain.Cert, error) {
	cert, err := s.cache.ReadValue(ctx, id)
	if err != nil {
		return domain.Cert{}, err
	}
	if cert.ID == "" {
		cert.ID = id
	}
	return cert, nil
}

// Put stores cert under its id, replacing any previous record.
//
// Called from cmd/main when importing file identities.
func (s *CertSource) Put(ctx context.Context, cert domain.Cert) error {
	return s.cache.WriteValue(ctx, cert.ID, cert, 0)
}

// List returns the stored identity ids, sorted.
func (s *CertSource) List(ctx context.Context) ([]string, error) {
	ids, err := s.cache.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}
