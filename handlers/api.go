package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// CommonInstanceRequest is the body of POST /v1/apps/{appid}/common-instance.
type CommonInstanceRequest struct {
	Data json.RawMessage `json:"data,omitempty"`
}

// NodesResponse is the body of GET /v1/nodes.
type NodesResponse struct {
	Nodes   []NodeInfo `json:"nodes"`
	Pending int        `json:"pending"`
}

// NodeInfo is one registered node.
type NodeInfo struct {
	Id         string         `json:"id"`
	AuthId     string         `json:"auth_id"`
	Service    string         `json:"service"`
	RemoteAddr string         `json:"remote_addr,omitempty"`
	Apps       []string       `json:"apps,omitempty"`
	Load       int            `json:"load"`
	Capacity   int            `json:"capacity"`
	Instances  []InstanceInfo `json:"instances,omitempty"`
}

// InstanceInfo is one application instance of a container node.
type InstanceInfo struct {
	Id       string `json:"id"`
	AppId    string `json:"app_id"`
	Type     string `json:"type"`
	Load     int    `json:"load"`
	Capacity int    `json:"capacity"`
}

// ServerInterface is the set of operations of openapi.yaml.
type ServerInterface interface {
	// GetHealth (GET /healthz)
	GetHealth(ctx echo.Context) error
	// RequestService (POST /v1/services/{svc})
	RequestService(ctx echo.Context, svc string) error
	// RequestCommonInstance (POST /v1/apps/{appid}/common-instance)
	RequestCommonInstance(ctx echo.Context, appid string) error
	// ListNodes (GET /v1/nodes)
	ListNodes(ctx echo.Context) error
}

// ServerInterfaceWrapper extracts path parameters and calls the ServerInterface.
type ServerInterfaceWrapper struct {
	Handler ServerInterface
}

func (w *ServerInterfaceWrapper) GetHealth(ctx echo.Context) error {
	return w.Handler.GetHealth(ctx)
}

func (w *ServerInterfaceWrapper) RequestService(ctx echo.Context) error {
	svc, err := pathParam(ctx, "svc")
	if err != nil {
		return err
	}
	return w.Handler.RequestService(ctx, svc)
}

func (w *ServerInterfaceWrapper) RequestCommonInstance(ctx echo.Context) error {
	appid, err := pathParam(ctx, "appid")
	if err != nil {
		return err
	}
	return w.Handler.RequestCommonInstance(ctx, appid)
}

func (w *ServerInterfaceWrapper) ListNodes(ctx echo.Context) error {
	return w.Handler.ListNodes(ctx)
}

func pathParam(ctx echo.Context, name string) (string, error) {
	v := ctx.Param(name)
	if v == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Invalid format for parameter %s: empty", name))
	}
	return v, nil
}

// EchoRouter is the part of *echo.Echo and *echo.Group RegisterHandlers needs.
type EchoRouter interface {
	GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
	POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// RegisterHandlers adds every route of openapi.yaml to router. Middlewares in m apply to the /v1 routes
// only; /healthz stays open.
func RegisterHandlers(router EchoRouter, si ServerInterface, m ...echo.MiddlewareFunc) {
	w := ServerInterfaceWrapper{Handler: si}
	router.GET("/healthz", w.GetHealth)
	router.POST("/v1/services/:svc", w.RequestService, m...)
	router.POST("/v1/apps/:appid/common-instance", w.RequestCommonInstance, m...)
	router.GET("/v1/nodes", w.ListNodes, m...)
}
