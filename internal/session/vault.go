// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

package session

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/procomply/procomply/internal/xdg"
)

// tokenFileName is the single durable slot the credential token lives in.
const tokenFileName = "token"

// Vault persists the credential token to the XDG state directory. It holds
// at most one token at a time; the session store is the only writer. The
// API client reads it through the api.TokenSource interface.
type Vault struct {
	mu   sync.Mutex
	path string
}

// NewVault creates a vault rooted at dir. An empty dir uses the default
// XDG state directory.
func NewVault(dir string) *Vault {
	if dir == "" {
		dir = xdg.StateDir()
	}
	return &Vault{path: filepath.Join(dir, tokenFileName)}
}

// Token returns the stored credential token, or empty when none is stored.
// Implements api.TokenSource.
func (v *Vault) Token() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(v.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", oops.Code("VAULT_READ_FAILED").
			With("path", v.path).
			Wrapf(err, "reading token file")
	}
	return strings.TrimSpace(string(data)), nil
}

// Store persists token, replacing any previous one. The write is atomic
// (temp file + rename) so a crash can never leave a torn token behind.
func (v *Vault) Store(token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	dir := filepath.Dir(v.path)
	if err := xdg.EnsureDir(dir); err != nil {
		return oops.Code("VAULT_WRITE_FAILED").Wrap(err)
	}

	tmp, err := os.CreateTemp(dir, tokenFileName+".*")
	if err != nil {
		return oops.Code("VAULT_WRITE_FAILED").
			With("path", v.path).
			Wrapf(err, "creating temp file")
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()           //nolint:errcheck
		_ = os.Remove(tmpName)    //nolint:errcheck
		return oops.Code("VAULT_WRITE_FAILED").Wrapf(err, "setting token file mode")
	}
	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()           //nolint:errcheck
		_ = os.Remove(tmpName)    //nolint:errcheck
		return oops.Code("VAULT_WRITE_FAILED").Wrapf(err, "writing token")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck
		return oops.Code("VAULT_WRITE_FAILED").Wrapf(err, "closing token file")
	}
	if err := os.Rename(tmpName, v.path); err != nil {
		_ = os.Remove(tmpName) //nolint:errcheck
		return oops.Code("VAULT_WRITE_FAILED").
			With("path", v.path).
			Wrapf(err, "replacing token file")
	}
	return nil
}

// Clear removes the stored token. Clearing an empty vault is not an error.
func (v *Vault) Clear() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := os.Remove(v.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return oops.Code("VAULT_CLEAR_FAILED").
			With("path", v.path).
			Wrapf(err, "removing token file")
	}
	return nil
}
