package certfs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"center/domain"
	"center/helpers"
	"center/service"
)

const (
	pemExt  = ".pem"
	jsonExt = ".json"
)

// Source reads identities from a directory: <dir>/<id>.pem holds the public key or certificate and
// <dir>/<id>.json the config blob. It does no caching; service.certificateStore caches above it.
type Source struct {
	dir string
}

// NewSource creates a Source over dir. Panics on empty dir.
//
// Called from cmd/main when cert_store is "file".
func NewSource(dir string) *Source {
	return &Source{dir: helpers.StrPanic(dir, "certfs.source.go: dir is required")}
}

// Fetch loads identity id.
//
// Returns: entity_not_found when either file is missing or id is not a plain file name;
// internal_server_error when a file cannot be read or the config is not valid JSON.
func (s *Source) Fetch(_ context.Context, id string) (domain.Cert, error) {
	if !validID(id) {
		return domain.Cert{}, service.NewEntityNotFoundError("identity not found", fmt.Errorf("invalid identity %q", id))
	}
	pemBytes, err := s.read(id + pemExt)
	if err != nil {
		return domain.Cert{}, err
	}
	config, err := s.read(id + jsonExt)
	if err != nil {
		return domain.Cert{}, err
	}
	if !json.Valid(config) {
		return domain.Cert{}, service.NewInternalServerError("identity config is not valid JSON", fmt.Errorf("%s%s", id, jsonExt))
	}
	return domain.Cert{ID: id, PEM: pemBytes, Config: json.RawMessage(config)}, nil
}

// List returns the ids that have both files, sorted.
//
// Called from cmd/main when importing file identities into Redis.
func (s *Source) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, service.NewInternalServerError("cannot list identities", err)
	}
	names := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names[e.Name()] = true
		}
	}
	var ids []string
	for name := range names {
		id, ok := strings.CutSuffix(name, pemExt)
		if ok && validID(id) && names[id+jsonExt] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Source) read(name string) ([]byte, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, service.NewEntityNotFoundError("identity not found", err)
	}
	if err != nil {
		return nil, service.NewInternalServerError("cannot read identity", err)
	}
	return b, nil
}

// validID rejects ids that would escape the directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`) && !strings.ContainsRune(id, 0)
}
