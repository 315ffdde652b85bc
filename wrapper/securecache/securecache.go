// Package securecache provides a security wrapper for httpguard.CacheStore
// implementations. It adds SHA-256 key hashing (always enabled) and
// optional AES-256-GCM encryption for cached data.
package securecache

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"

	"github.com/haldane/httpguard"
)

const (
	scryptN   = 32768
	scryptR   = 8
	scryptP   = 1
	keyLength = 32
	nonceSize = 12
	saltSize  = 16
)

// SecureCache wraps an existing CacheStore to add security features:
// SHA-256 hashing of all cache keys (always enabled), and optional
// AES-256-GCM encryption of cached data (when a passphrase is provided).
type SecureCache struct {
	cache      httpguard.CacheStore
	gcm        cipher.AEAD
	passphrase string
	salt       []byte
}

// Config holds the configuration for creating a SecureCache.
type Config struct {
	// Cache is the underlying cache implementation to wrap.
	Cache httpguard.CacheStore

	// Passphrase is the secret used to encrypt/decrypt cached data. If
	// empty, only key hashing is performed.
	Passphrase string

	// Salt is the scrypt salt used to derive the encryption key. If empty,
	// a random salt is generated and can be read back via SecureCache.Salt
	// so the caller can persist it; the same salt must be supplied on
	// subsequent runs to decrypt previously-written entries. A shared,
	// hardcoded salt would let the same passphrase reused across
	// deployments derive the same key, defeating scrypt's per-installation
	// salting.
	Salt []byte
}

// New creates a new SecureCache that wraps the provided cache.
func New(config Config) (*SecureCache, error) {
	if config.Cache == nil {
		return nil, fmt.Errorf("cache cannot be nil")
	}

	sc := &SecureCache{cache: config.Cache, passphrase: config.Passphrase, salt: config.Salt}
	if config.Passphrase != "" {
		if err := sc.initEncryption(); err != nil {
			return nil, fmt.Errorf("failed to initialize encryption: %w", err)
		}
	}
	return sc, nil
}

// Salt returns the scrypt salt in use: the one from Config, or the random
// one New generated when a passphrase was given without a salt. It is nil
// when neither a salt nor a passphrase was supplied. Persist it alongside
// the cached data so a later process can decrypt it with the same
// passphrase.
func (sc *SecureCache) Salt() []byte {
	return sc.salt
}

func (sc *SecureCache) initEncryption() error {
	if len(sc.salt) == 0 {
		sc.salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, sc.salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}
	key, err := scrypt.Key([]byte(sc.passphrase), sc.salt, scryptN, scryptR, scryptP, keyLength)
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}

	sc.gcm = gcm
	return nil
}

func (sc *SecureCache) hashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func (sc *SecureCache) encrypt(data []byte) ([]byte, error) {
	if sc.gcm == nil {
		return data, nil
	}

	nonce := make([]byte, sc.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := sc.gcm.Seal(nonce, nonce, data, nil)
	return ciphertext, nil
}

func (sc *SecureCache) decrypt(data []byte) ([]byte, error) {
	if sc.gcm == nil {
		return data, nil
	}
	if len(data) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce := data[:nonceSize]
	ciphertext := data[nonceSize:]

	plaintext, err := sc.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func (sc *SecureCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	hashedKey := sc.hashKey(key)
	data, ok, err := sc.cache.Get(ctx, hashedKey)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	if sc.gcm != nil {
		plaintext, err := sc.decrypt(data)
		if err != nil {
			httpguard.GetLogger().Warn("failed to decrypt cached data", "key", hashedKey, "error", err)
			return nil, false, err
		}
		return plaintext, true, nil
	}
	return data, true, nil
}

func (sc *SecureCache) Set(ctx context.Context, key string, data []byte, ttlSeconds float64) error {
	hashedKey := sc.hashKey(key)

	var toStore []byte
	if sc.gcm != nil {
		encrypted, err := sc.encrypt(data)
		if err != nil {
			httpguard.GetLogger().Warn("failed to encrypt data", "key", hashedKey, "error", err)
			return err
		}
		toStore = encrypted
	} else {
		toStore = data
	}

	return sc.cache.Set(ctx, hashedKey, toStore, ttlSeconds)
}

func (sc *SecureCache) Delete(ctx context.Context, key string) error {
	return sc.cache.Delete(ctx, sc.hashKey(key))
}

func (sc *SecureCache) Clear(ctx context.Context) error {
	return sc.cache.Clear(ctx)
}

// IsEncrypted returns true if the cache is configured with encryption.
func (sc *SecureCache) IsEncrypted() bool {
	return sc.gcm != nil
}

var _ httpguard.CacheStore = (*SecureCache)(nil)
