// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads provider credentials from a directory of plain-text
// files. Each file holds one secret: the filename is the key name and the
// trimmed contents are the value.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Well-known key files the engine consumes.
const (
	// BochaKeyFile holds the platform credential shared by the web, AI,
	// and agent search backends.
	BochaKeyFile = "bocha-api-key"

	// RerankKeyFile holds the semantic reranker credential.
	RerankKeyFile = "rerank-api-key"
)

// Store holds loaded secrets keyed by file name.
type Store map[string]string

// Bocha returns the shared search-platform credential, or "" when unset.
func (s Store) Bocha() string { return s[BochaKeyFile] }

// Rerank returns the reranker credential, or "" when unset.
func (s Store) Rerank() string { return s[RerankKeyFile] }

// Load reads every file in dir into a Store. A missing directory is not an
// error; neither is an unreadable file, which produces a warning on stderr
// and is skipped. Dotfiles, subdirectories, and empty files are ignored.
func Load(dir string) (Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Store{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	store := make(Store)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		value, err := readSecret(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}
		if value != "" {
			store[name] = value
		}
	}
	return store, nil
}

func readSecret(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
