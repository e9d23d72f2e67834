// Package keys loads Solana signing keypairs from disk.
//
// Two on-disk encodings are supported: the solana-keygen JSON format (an
// array of integers holding the 64-byte expanded key) and a bare base58
// string. The JSON form is tried first; anything that is not a valid JSON
// byte array falls through to the base58 decoder.
package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrKeyFileNotFound is returned when the keypair file does not exist.
	ErrKeyFileNotFound = errors.New("key file not found")

	// ErrInvalidKeyFormat is returned when the file contents decode as
	// neither a JSON byte array nor a base58 private key.
	ErrInvalidKeyFormat = errors.New("invalid key format")
)

// Load reads a keypair file and returns the private key.
// A leading "~" in the path is expanded to the user's home directory.
// Key material is only ever held in memory; it is never logged.
func Load(path string) (solana.PrivateKey, error) {
	resolved, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrKeyFileNotFound, resolved)
		}
		return nil, fmt.Errorf("read key file %s: %w", resolved, err)
	}

	if key, err := decodeJSONByteArray(data); err == nil {
		return key, nil
	}

	if key, err := decodeBase58(data); err == nil {
		return key, nil
	}

	return nil, fmt.Errorf("%w: %s is neither a JSON byte array nor base58", ErrInvalidKeyFormat, resolved)
}

// decodeJSONByteArray parses the solana-keygen file format: a JSON array of
// 64 integers, each in 0..255.
func decodeJSONByteArray(data []byte) (solana.PrivateKey, error) {
	var values []int
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse JSON byte array: %w", err)
	}

	if len(values) != solanaKeypairLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", solanaKeypairLen, len(values))
	}

	raw := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("byte %d out of range: %d", i, v)
		}
		raw[i] = byte(v)
	}

	return solana.PrivateKey(raw), nil
}

// decodeBase58 parses a bare base58-encoded private key, tolerating
// surrounding whitespace.
func decodeBase58(data []byte) (solana.PrivateKey, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("empty key file")
	}

	key, err := solana.PrivateKeyFromBase58(text)
	if err != nil {
		return nil, fmt.Errorf("parse base58 key: %w", err)
	}
	if len(key) != solanaKeypairLen {
		return nil, fmt.Errorf("expected %d bytes, got %d", solanaKeypairLen, len(key))
	}
	return key, nil
}

// solanaKeypairLen is the length of an expanded ed25519 keypair:
// 32-byte seed followed by the 32-byte public key.
const solanaKeypairLen = 64

// expandHome resolves a leading "~" to the current user's home directory.
func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
