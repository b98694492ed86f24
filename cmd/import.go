package main

import (
	"context"
	"fmt"

	"center/domain"
)

type certLister interface {
	List(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context, id string) (domain.Cert, error)
}

type certWriter interface {
	Put(ctx context.Context, cert domain.Cert) error
}

// importCertificates copies every certificate of from into to, in id order, and returns how many were
// copied. It stops at the first failure.
//
// Called from main for --import-certs (certfs.Source into myredis.CertSource).
func importCertificates(ctx context.Context, from certLister, to certWriter) (int, error) {
	ids, err := from.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list certificates: %w", err)
	}
	for i, id := range ids {
		cert, err := from.Fetch(ctx, id)
		if err != nil {
			return i, fmt.Errorf("read certificate %s: %w", id, err)
		}
		if err := to.Put(ctx, cert); err != nil {
			return i, fmt.Errorf("store certificate %s: %w", id, err)
		}
	}
	return len(ids), nil
}
