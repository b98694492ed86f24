package interfaces

import (
	"context"
	"encoding/json"

	"center/domain"
)

// Broker is the caller-facing surface of the broker core. Implemented by service.Core; used by the
// HTTP gateway (handlers.HTTPServer) so that internal callers do not need a transport connection.
//
//go:generate moq -stub -out mock/broker.go -pkg mock . Broker
type Broker interface {
	// RequestService forwards data to the first node offering svc with spare capacity.
	// Returns: (node reply, nil); (nil, unavailable error) when no node is available; other errors
	// when the nested call fails.
	RequestService(ctx context.Context, svc string, data json.RawMessage) (json.RawMessage, error)

	// RequestCommonInstance joins an existing common instance of appID or creates one.
	// Returns: (join reply, nil); (nil, unavailable error) when the request is denied.
	RequestCommonInstance(ctx context.Context, appID string, data json.RawMessage) (json.RawMessage, error)

	// Snapshot returns a copy of the registry for operators.
	Snapshot() domain.RegistrySnapshot
}
