// Package secrets resolves named secret references into database
// connection parameters. The store backend is an external collaborator:
// the engine only depends on the Store interface.
package secrets

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Store retrieves the raw payload of a named secret.
type Store interface {
	Get(secretID string) ([]byte, error)
}

// ConnectionParams are the fields a connection secret must carry.
// Port is the only optional field (defaults to 5432); every other missing
// field is a fatal configuration error, never defaulted.
type ConnectionParams struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// secretPayload is the JSON shape stored in the secret store. The user
// field may be spelled "username" or "user".
type secretPayload struct {
	Host     *string         `json:"host"`
	Port     json.RawMessage `json:"port"`
	Username *string         `json:"username"`
	User     *string         `json:"user"`
	Password *string         `json:"password"`
	DBName   *string         `json:"dbname"`
}

// Resolve fetches secretID from the store and extracts connection
// parameters. Intended to be called exactly once at startup; the result is
// immutable afterward.
func Resolve(store Store, secretID string) (ConnectionParams, error) {
	data, err := store.Get(secretID)
	if err != nil {
		return ConnectionParams{}, fmt.Errorf("failed to retrieve secret %q: %w", secretID, err)
	}

	var payload secretPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return ConnectionParams{}, fmt.Errorf("secret %q is not valid JSON: %w", secretID, err)
	}

	var params ConnectionParams

	if payload.Host == nil {
		return ConnectionParams{}, missingKeyError(secretID, "host")
	}
	params.Host = *payload.Host

	if payload.Password == nil {
		return ConnectionParams{}, missingKeyError(secretID, "password")
	}
	params.Password = *payload.Password

	switch {
	case payload.Username != nil:
		params.User = *payload.Username
	case payload.User != nil:
		params.User = *payload.User
	default:
		return ConnectionParams{}, missingKeyError(secretID, "username")
	}

	if payload.DBName == nil {
		return ConnectionParams{}, missingKeyError(secretID, "dbname")
	}
	params.DBName = *payload.DBName

	params.Port = 5432
	if len(payload.Port) > 0 {
		port, err := parsePort(payload.Port)
		if err != nil {
			return ConnectionParams{}, fmt.Errorf("secret %q has invalid port: %w", secretID, err)
		}
		params.Port = port
	}

	return params, nil
}

// parsePort accepts both JSON numbers and numeric strings, since secret
// payloads written by provisioning tools use either.
func parsePort(raw json.RawMessage) (int, error) {
	var asInt int
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return asInt, nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return strconv.Atoi(asString)
	}
	return 0, fmt.Errorf("port must be a number or numeric string, got %s", string(raw))
}

func missingKeyError(secretID, key string) error {
	return fmt.Errorf("secret %q is missing required key %q", secretID, key)
}

// FileStore reads secrets from JSON files under a directory, one file per
// secret ID.
type FileStore struct {
	Dir string
}

// Get reads <dir>/<secretID>.json.
func (s FileStore) Get(secretID string) ([]byte, error) {
	path := filepath.Join(s.Dir, secretID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret file %s: %w", path, err)
	}
	return data, nil
}

// StaticStore serves secrets from an in-memory map. Used in tests and as a
// seam for embedding callers that fetch secrets themselves.
type StaticStore map[string][]byte

// Get returns the stored payload for secretID.
func (s StaticStore) Get(secretID string) ([]byte, error) {
	data, ok := s[secretID]
	if !ok {
		return nil, fmt.Errorf("secret %q not found", secretID)
	}
	return data, nil
}
