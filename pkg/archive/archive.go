// Package archive keeps rendered reports in content-addressed storage.
// An address is "sha256:<hex>" of the stored bytes; storing the same bytes
// twice is a no-op.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/stvn101/carbonconstruct-scope-lca/pkg/findings"
)

const addressPrefix = "sha256:"

// ErrNotFound is returned by Get for an unknown address.
var ErrNotFound = errors.New("archive: not found")

// Store is a content-addressed blob store.
type Store interface {
	// Put persists data and returns its address.
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, address string) ([]byte, error)
	Exists(ctx context.Context, address string) (bool, error)
	Delete(ctx context.Context, address string) error
}

// Address returns the address of data and the object name it is stored under.
func Address(data []byte) (address, object string) {
	sum := sha256.Sum256(data)
	h := hex.EncodeToString(sum[:])
	return addressPrefix + h, h + ".json"
}

// objectName validates address and returns its object name.
func objectName(address string) (string, error) {
	h, ok := strings.CutPrefix(address, addressPrefix)
	if !ok {
		return "", fmt.Errorf("archive: invalid address %q", address)
	}
	if raw, err := hex.DecodeString(h); err != nil || len(raw) != sha256.Size {
		return "", fmt.Errorf("archive: invalid address hex %q", address)
	}
	return h + ".json", nil
}

// Report stores r's canonical JSON and returns its address. Equal reports
// share one blob.
func Report(ctx context.Context, s Store, r *findings.Report) (string, error) {
	data, err := findings.Canonical(r)
	if err != nil {
		return "", err
	}
	return s.Put(ctx, data)
}
