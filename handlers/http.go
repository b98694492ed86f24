// Package handlers contains the HTTP gateway of the broker: in-process callers that hold no transport
// connection reach Core.RequestService and Core.RequestCommonInstance through it.
package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"center/domain"
	"center/helpers"
	"center/interfaces"
	"center/service"

	"github.com/go-kit/log"
	"github.com/labstack/echo/v4"
)

var _ ServerInterface = (*HTTPServer)(nil)

// HTTPServer implements ServerInterface on top of the broker.
type HTTPServer struct {
	broker interfaces.Broker
	logger log.Logger
}

// NewHTTPServer creates a new HTTPServer. Panics on nil broker or logger.
func NewHTTPServer(broker interfaces.Broker, logger log.Logger) *HTTPServer {
	return &HTTPServer{
		broker: helpers.NilPanic(broker, "handlers.http.go: broker is required"),
		logger: log.With(helpers.NilPanic(logger, "handlers.http.go: logger is required"), "component", "HTTPServer"),
	}
}

// GetHealth (GET /healthz) always answers 200 while the process serves HTTP.
func (h *HTTPServer) GetHealth(ectx echo.Context) error {
	return ectx.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// RequestService (POST /v1/services/{svc}) forwards the body, with svc set from the path, to a node of
// svc. Returns the node reply as is; 503 when no node is available or the node answered null.
func (h *HTTPServer) RequestService(ectx echo.Context, svc string) error {
	body, err := io.ReadAll(ectx.Request().Body)
	if err != nil {
		return service.NewBadParameterError("cannot read request body", err)
	}
	data, err := withSvc(body, svc)
	if err != nil {
		return err
	}

	reply, err := h.broker.RequestService(ectx.Request().Context(), svc, data)
	if err != nil {
		return fmt.Errorf("requestService failed to forward to %q, err: %w", svc, err)
	}
	return writeReply(ectx, reply, fmt.Sprintf("node of service %q returned no result", svc))
}

// RequestCommonInstance (POST /v1/apps/{appid}/common-instance) joins or creates a common instance of
// appid and returns the instance reply.
func (h *HTTPServer) RequestCommonInstance(ectx echo.Context, appid string) error {
	var req CommonInstanceRequest
	if err := ectx.Bind(&req); err != nil {
		return service.NewBadParameterError("invalid request body", err)
	}

	reply, err := h.broker.RequestCommonInstance(ectx.Request().Context(), appid, req.Data)
	if err != nil {
		return fmt.Errorf("requestCommonInstance failed for app %q, err: %w", appid, err)
	}
	return writeReply(ectx, reply, fmt.Sprintf("no instance of app %q accepted the request", appid))
}

// ListNodes (GET /v1/nodes) returns the registry snapshot.
func (h *HTTPServer) ListNodes(ectx echo.Context) error {
	return ectx.JSON(http.StatusOK, toNodesResponse(h.broker.Snapshot()))
}

// withSvc returns body with its "svc" member set to svc. body must be a JSON object.
func withSvc(body []byte, svc string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return nil, service.NewBadParameterError("request body must be a JSON object", err)
	}
	name, err := json.Marshal(svc)
	if err != nil {
		return nil, service.NewInternalServerError("cannot encode service name", err)
	}
	obj["svc"] = name
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, service.NewInternalServerError("cannot encode request", err)
	}
	return out, nil
}

// writeReply writes a node reply verbatim; a falsy reply becomes 503 with the given message.
func writeReply(ectx echo.Context, reply json.RawMessage, falsyMsg string) error {
	if !domain.IsTruthy(reply) {
		return service.NewUnavailableError(falsyMsg, service.ErrNoProvider)
	}
	return ectx.JSONBlob(http.StatusOK, reply)
}
