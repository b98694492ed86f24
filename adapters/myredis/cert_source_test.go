package myredis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"center/domain"
	"center/service"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRedisAddr = "redis://localhost:6379"

// setupTestRedis connects to the local test Redis and clears cert:* keys; the test is skipped when
// nothing answers PING.
func setupTestRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	client, err := NewRedisUniversalClient(testRedisAddr, func(o *redis.Options) {
		o.DialTimeout = 500 * time.Millisecond
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis not available at %s: %v", testRedisAddr, err)
	}

	wipe := func() {
		keys, _ := client.Keys(context.Background(), certPrefix+":*").Result()
		if len(keys) > 0 {
			client.Del(context.Background(), keys...)
		}
	}
	wipe()
	t.Cleanup(func() {
		wipe()
		_ = client.Close()
	})
	return client
}

func TestNewCertSource_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "myredis.cert_source.go: client is required", func() {
		NewCertSource(nil)
	})
}

func TestCertRecord_RoundTrip(t *testing.T) {
	in := domain.Cert{ID: "node-1", PEM: []byte("-----BEGIN PUBLIC KEY-----\nabc\n"), Config: json.RawMessage(`{"service":"echo"}`)}
	b, err := marshalCert(in)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"pem":"-----BEGIN PUBLIC KEY-----\nabc\n"`)

	out, err := unmarshalCert(b)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.PEM, out.PEM)
	assert.JSONEq(t, string(in.Config), string(out.Config))

	_, err = unmarshalCert([]byte("nope"))
	assert.Error(t, err)
}

func TestCertSource_PutFetchList(t *testing.T) {
	ctx := context.Background()
	client := setupTestRedis(t)
	s := NewCertSource(client)

	_, err := s.Fetch(ctx, "node-1")
	assert.True(t, service.IsEntityNotFoundError(err))

	require.NoError(t, s.Put(ctx, domain.Cert{ID: "node-2", PEM: []byte("pem-2"), Config: json.RawMessage(`{}`)}))
	require.NoError(t, s.Put(ctx, domain.Cert{ID: "node-1", PEM: []byte("pem-1"), Config: json.RawMessage(`{"service":"echo"}`)}))

	cert, err := s.Fetch(ctx, "node-1")
	require.NoError(t, err)
	assert.Equal(t, "pem-1", string(cert.PEM))
	assert.JSONEq(t, `{"service":"echo"}`, string(cert.Config))

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"node-1", "node-2"}, ids)
}

func TestCertSource_Fetch_BadRecord(t *testing.T) {
	ctx := context.Background()
	client := setupTestRedis(t)
	require.NoError(t, client.Set(ctx, certPrefix+":broken", "not json", 0).Err())

	_, err := NewCertSource(client).Fetch(ctx, "broken")
	assert.True(t, service.IsInternalServerError(err))
}

func TestCertSource_ClosedClient(t *testing.T) {
	client, err := NewRedisUniversalClient(testRedisAddr)
	require.NoError(t, err)
	require.NoError(t, client.Close())
	s := NewCertSource(client)

	_, err = s.Fetch(context.Background(), "node-1")
	assert.True(t, service.IsInternalServerError(err))
	err = s.Put(context.Background(), domain.Cert{ID: "node-1"})
	assert.True(t, service.IsInternalServerError(err))
	_, err = s.List(context.Background())
	assert.True(t, service.IsInternalServerError(err))
}
