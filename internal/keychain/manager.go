// Copyright (c) 2025 pgload
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain provides centralized, thread-safe keychain operations for pgload.
// This module manages all interactions with the OS keychain/credential store,
// providing a unified interface for storing and retrieving the database DSN
// configured with `pgload connect`.
//
// The package supports macOS Keychain, Windows Credential Manager and the
// freedesktop Secret Service, with thread-safe operations and proper error
// handling. Only the DSN is kept here; non-secret settings live in the XDG
// config file.
package keychain

import (
	"errors"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	globalError   error
	mu            sync.Mutex
)

// Manager provides centralized, thread-safe operations for the OS keychain.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "pgload"

// KeyDBDSN is the key under which the database DSN is stored.
const KeyDBDSN = "db_dsn"

// NewManager creates a new keychain manager with the OS keyring initialized.
func NewManager() (*Manager, error) {
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return &Manager{ring: ring}, nil
}

// GetManager returns the global keychain manager instance.
// If not initialized, it will be created on first call.
// If initialization fails, it will retry on subsequent calls.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}

	globalManager, globalError = NewManager()
	if globalError != nil {
		return nil, globalError
	}

	return globalManager, nil
}

// openRing opens the OS keyring using native platform backends only.
// No plain-file fallback: if the platform has no credential store, the
// DSN must be supplied via PGLOAD_DSN/DATABASE_URL or the command line.
func openRing() (keyring.Keyring, error) {
	var allowedBackends []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		// Try macOS Keychain first, then pass (password store) as fallback.
		allowedBackends = []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.PassBackend,
		}
	case "windows":
		allowedBackends = []keyring.BackendType{keyring.WinCredBackend}
	default:
		allowedBackends = []keyring.BackendType{
			keyring.SecretServiceBackend,
			keyring.PassBackend,
		}
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowedBackends,
		PassPrefix:      ServiceName,
	}
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = ServiceName
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, errors.New("no usable OS credential store; pass the DSN on the command line or set PGLOAD_DSN")
	}

	return ring, nil
}

// SaveDBDSN stores the database DSN in the OS keychain.
// This method is thread-safe.
func (m *Manager) SaveDBDSN(dsn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dsn == "" {
		return errors.New("empty DSN")
	}
	return m.ring.Set(keyring.Item{Key: KeyDBDSN, Data: []byte(dsn)})
}

// LoadDBDSN retrieves the database DSN from the OS keychain.
// This method is thread-safe.
func (m *Manager) LoadDBDSN() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(KeyDBDSN)
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", errors.New("no DSN stored; run 'pgload connect' first")
	}
	return string(it.Data), nil
}

// ClearDBDSN removes the stored DSN from the OS keychain.
// Missing entries are not an error. This method is thread-safe.
func (m *Manager) ClearDBDSN() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ring.Remove(KeyDBDSN); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
