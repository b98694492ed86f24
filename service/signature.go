package service

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strconv"

	"center/domain"

	"github.com/google/uuid"
)

// Signature methods accepted for node identities and the broker key.
const (
	SignMethodRSASHA256 = "rsa-sha256"
	SignMethodEd25519   = "ed25519"
)

var errUnsupportedKey = errors.New("unsupported key type")

// ValidSignMethod reports whether method is one of the supported signature methods.
func ValidSignMethod(method string) bool {
	return method == SignMethodRSASHA256 || method == SignMethodEd25519
}

// signingInput is the byte string covered by a signature: payload, nonce and timestamp joined by '|'.
func signingInput(data string, nonce string, ts int64) []byte {
	return []byte(data + "|" + nonce + "|" + strconv.FormatInt(ts, 10))
}

// MakeSignature signs data with key using a fresh nonce and the given timestamp (unix milliseconds).
//
// Returns: (envelope, nil); error when the key type does not match method or signing fails.
//
// Called from certificateStore.Sign (broker reply) and nodeclient.Node (auth request).
func MakeSignature(data string, key crypto.Signer, method string, ts int64) (domain.Signature, error) {
	nonce := uuid.NewString()
	msg := signingInput(data, nonce, ts)

	var sig []byte
	var err error
	switch method {
	case SignMethodRSASHA256:
		k, ok := key.(*rsa.PrivateKey)
		if !ok {
			return domain.Signature{}, fmt.Errorf("%s: %w %T", method, errUnsupportedKey, key)
		}
		digest := sha256.Sum256(msg)
		sig, err = rsa.SignPKCS1v15(rand.Reader, k, crypto.SHA256, digest[:])
	case SignMethodEd25519:
		k, ok := key.(ed25519.PrivateKey)
		if !ok {
			return domain.Signature{}, fmt.Errorf("%s: %w %T", method, errUnsupportedKey, key)
		}
		sig = ed25519.Sign(k, msg)
	default:
		return domain.Signature{}, fmt.Errorf("unknown sign method %q", method)
	}
	if err != nil {
		return domain.Signature{}, fmt.Errorf("sign: %w", err)
	}
	return domain.Signature{
		Nonce: nonce,
		TS:    ts,
		Sign:  base64.StdEncoding.EncodeToString(sig),
	}, nil
}

// VerifySignature reports whether sig is a valid signature of data by pub under method.
// Any decoding problem or key type mismatch yields false.
func VerifySignature(data string, pub crypto.PublicKey, method string, sig domain.Signature) bool {
	raw, err := base64.StdEncoding.DecodeString(sig.Sign)
	if err != nil || sig.Nonce == "" {
		return false
	}
	msg := signingInput(data, sig.Nonce, sig.TS)
	switch method {
	case SignMethodRSASHA256:
		k, ok := pub.(*rsa.PublicKey)
		if !ok {
			return false
		}
		digest := sha256.Sum256(msg)
		return rsa.VerifyPKCS1v15(k, crypto.SHA256, digest[:], raw) == nil
	case SignMethodEd25519:
		k, ok := pub.(ed25519.PublicKey)
		if !ok || len(k) != ed25519.PublicKeySize {
			return false
		}
		return ed25519.Verify(k, msg, raw)
	default:
		return false
	}
}

// ParsePublicKey decodes the first PEM block of pemBytes: "PUBLIC KEY" (PKIX), "RSA PUBLIC KEY" (PKCS#1)
// or "CERTIFICATE" (the certificate's subject key).
func ParsePublicKey(pemBytes []byte) (crypto.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	switch block.Type {
	case "PUBLIC KEY":
		return x509.ParsePKIXPublicKey(block.Bytes)
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return key, nil
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		return cert.PublicKey, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}
}

// ParsePrivateKey decodes the first PEM block of pemBytes: "PRIVATE KEY" (PKCS#8) or "RSA PRIVATE KEY" (PKCS#1).
func ParsePrivateKey(pemBytes []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("%w %T", errUnsupportedKey, key)
		}
		return signer, nil
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		return key, nil
	default:
		return nil, fmt.Errorf("unexpected PEM block %q", block.Type)
	}
}

// LoadPrivateKey reads and parses a PEM private key file.
//
// Called from cmd/main (broker key) and from node processes building a nodeclient.Config.
func LoadPrivateKey(path string) (crypto.Signer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParsePrivateKey(b)
}
