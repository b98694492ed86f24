package domain

import "encoding/json"

// Cert is a stored identity: the PEM public key a connection must sign with and the authorization
// config blob handed to the connection once it authenticates.
type Cert struct {
	ID     string
	PEM    []byte
	Config json.RawMessage
}

// CertConfig is the part of the config blob the broker itself interprets.
type CertConfig struct {
	// Service is the only service name the identity may register as.
	Service string `json:"service"`
}
