package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Plain command names.
const (
	CmdAuth = "auth"
	CmdPing = "ping"
	CmdPong = "pong"
)

// Call function names. FuncReqSvc is used in both directions: callers ask the broker, the broker asks the node.
const (
	FuncReqSvc            = "req-svc"
	FuncReqCommonInstance = "req-common-instance"
	FuncJoin              = "Join"
	FuncCreate            = "Create"
)

// AuthPayload is the literal string both sides sign during the handshake.
const AuthPayload = "auth"

// AuthStatusOK is the status field of a successful auth reply.
const AuthStatusOK = "OK"

// Null is the JSON null reply used for every "not found / not admitted" answer.
var Null = json.RawMessage("null")

// Message is a fire-and-forget frame: {"cmd": ..., "data": ...}.
type Message struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Call is the payload of a correlated call: {"func": ..., "data": ...}.
type Call struct {
	Func string          `json:"func"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Signature is the envelope produced by a signer over a payload. TS is unix milliseconds.
type Signature struct {
	Nonce string `json:"nonce"`
	TS    int64  `json:"ts"`
	Sign  string `json:"sign"`
}

// AuthRequest is the data of the auth command a connection sends first.
type AuthRequest struct {
	ID *string `json:"id"`
	Signature
	Service  string        `json:"service,omitempty"`
	Apps     AppConfigList `json:"apps,omitempty"`
	Capacity int           `json:"capacity,omitempty"`
}

// Complete reports whether every mandatory handshake field is present.
func (r AuthRequest) Complete() bool {
	return r.ID != nil && r.Nonce != "" && r.TS != 0 && r.Sign != ""
}

// AuthReply is the data of the broker's auth answer: its own signature over AuthPayload plus a status.
type AuthReply struct {
	Signature
	Status string `json:"status"`
}

// ServiceRequest is the part of req-svc data the broker routes on; the rest is passed through.
type ServiceRequest struct {
	Svc string `json:"svc"`
}

// CommonInstanceRequest is the data of req-common-instance.
type CommonInstanceRequest struct {
	AppID string          `json:"appid"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinRequest is the data the broker sends with a Join call.
type JoinRequest struct {
	IID  string          `json:"iid"`
	Data json.RawMessage `json:"data,omitempty"`
}

// CreateRequest is the data the broker sends with a Create call. Options always carries "type".
type CreateRequest struct {
	AppID   string         `json:"appid"`
	Options map[string]any `json:"options"`
}

// CreateReply is what a node answers to a successful Create.
type CreateReply struct {
	UUID     string `json:"uuid"`
	Capacity int    `json:"capacity,omitempty"`
}

// IsTruthy reports whether a JSON reply counts as success: null, false, 0, "" and an empty payload
// are failures; everything else (including {} and []) is success.
func IsTruthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}
	switch v[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		s, err := strconv.Unquote(string(v))
		return err == nil && s != ""
	default:
		f, err := strconv.ParseFloat(string(v), 64)
		return err == nil && f != 0
	}
}
