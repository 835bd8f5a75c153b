package cache

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"

	"github.com/seoforge/seoforge-backend/internal/domain/errors"
	"github.com/seoforge/seoforge-backend/internal/domain/security"
	"github.com/seoforge/seoforge-backend/internal/metrics"
)

const (
	envelopeVersion  = byte(1)
	saltLength       = 16
	nonceLength      = 12
	keyLength        = 32
	pbkdf2Iterations = 100_000

	// Store-level expiry is a backstop only; the authoritative check is
	// the entry's createdAt+ttlMs at read time.
	storeTTLGrace = time.Minute

	lockStripes = 64
)

// EventSink receives security-relevant events from the cache layer.
// Implemented by the security event log; nil disables reporting.
type EventSink interface {
	RecordEvent(kind string, severity security.Severity, details map[string]interface{})
}

// entry is the plaintext record sealed inside each envelope.
type entry struct {
	Payload         json.RawMessage `json:"payload"`
	CreatedAt       int64           `json:"createdAt"` // ms since epoch
	TTLMs           int64           `json:"ttlMs"`
	IntegrityDigest string          `json:"integrityDigest"`
}

// SecureCache stores JSON payloads as AES-256-GCM envelopes with a TTL and
// an integrity digest. Each envelope carries its own key-derivation salt
// and nonce (version ‖ salt ‖ nonce ‖ ciphertext, base64), so entries
// written by one process remain readable by another.
type SecureCache struct {
	store      Store
	secret     []byte
	defaultTTL time.Duration
	logger     *zap.Logger
	metrics    *metrics.Registry
	events     EventSink

	// Per-key striped locks: concurrent save/get on the same key is a
	// read-modify-write race without them.
	locks [lockStripes]sync.Mutex
}

// NewSecureCache creates a secure cache over the given store. The secret
// seeds key derivation; events may be nil.
func NewSecureCache(store Store, secret string, defaultTTL time.Duration, logger *zap.Logger, reg *metrics.Registry, events EventSink) (*SecureCache, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if secret == "" {
		return nil, fmt.Errorf("secret is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if reg == nil {
		return nil, fmt.Errorf("metrics registry is required")
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}

	return &SecureCache{
		store:      store,
		secret:     []byte(secret),
		defaultTTL: defaultTTL,
		logger:     logger,
		metrics:    reg,
		events:     events,
	}, nil
}

// Save encrypts value and persists it under the secure namespace. A zero
// or negative ttl falls back to the cache default.
func (c *SecureCache) Save(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if key == "" {
		return errors.NewValidationError("MISSING_KEY", "cache key is required")
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return errors.NewStorageError("failed to serialize cache payload").WithCause(err)
	}

	ent := entry{
		Payload:         payload,
		CreatedAt:       time.Now().UnixMilli(),
		TTLMs:           ttl.Milliseconds(),
		IntegrityDigest: digest(payload),
	}

	plaintext, err := json.Marshal(ent)
	if err != nil {
		return errors.NewStorageError("failed to serialize cache entry").WithCause(err)
	}

	envelope, err := c.seal(plaintext)
	if err != nil {
		return err
	}

	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if err := c.store.Set(ctx, SecurePrefix+key, envelope, ttl+storeTTLGrace); err != nil {
		return errors.NewStorageError("failed to persist cache entry").WithCause(err)
	}

	return nil
}

// Get decrypts and validates the entry for key. It returns nil with no
// error when the entry is absent, expired, or fails integrity checking;
// corrupt and expired entries are purged on the way out.
func (c *SecureCache) Get(ctx context.Context, key string) (json.RawMessage, error) {
	if key == "" {
		return nil, errors.NewValidationError("MISSING_KEY", "cache key is required")
	}

	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	raw, err := c.store.Get(ctx, SecurePrefix+key)
	if err != nil {
		if _, ok := err.(ErrKeyNotFound); ok {
			return c.migrateLegacy(ctx, key)
		}
		return nil, errors.NewStorageError("failed to read cache entry").WithCause(err)
	}

	plaintext, err := c.open(raw)
	if err != nil {
		// Undecryptable envelopes are corruption: purge rather than return.
		c.purgeCorrupt(ctx, key, "envelope decryption failed", err)
		return nil, nil
	}

	var ent entry
	if err := json.Unmarshal(plaintext, &ent); err != nil {
		c.purgeCorrupt(ctx, key, "entry deserialization failed", err)
		return nil, nil
	}

	if expired(ent, time.Now()) {
		c.metrics.CacheExpirations.Inc()
		if err := c.store.Delete(ctx, SecurePrefix+key); err != nil {
			c.logger.Warn("failed to purge expired cache entry", zap.String("key", key), zap.Error(err))
		}
		return nil, nil
	}

	if subtle.ConstantTimeCompare([]byte(digest(ent.Payload)), []byte(ent.IntegrityDigest)) != 1 {
		c.metrics.CacheIntegrityFailures.Inc()
		c.purgeCorrupt(ctx, key, "integrity digest mismatch", errors.NewIntegrityError("payload digest does not match stored digest"))
		return nil, nil
	}

	c.metrics.CacheHits.Inc()
	return ent.Payload, nil
}

// Remove unconditionally deletes the entry; absent keys are not an error.
func (c *SecureCache) Remove(ctx context.Context, key string) error {
	lock := c.lockFor(key)
	lock.Lock()
	defer lock.Unlock()

	if err := c.store.Delete(ctx, SecurePrefix+key); err != nil {
		return errors.NewStorageError("failed to delete cache entry").WithCause(err)
	}
	return nil
}

// Clear removes every entry under the secure namespace, leaving unrelated
// keys untouched.
func (c *SecureCache) Clear(ctx context.Context) error {
	keys, err := c.store.Keys(ctx, SecurePrefix)
	if err != nil {
		return errors.NewStorageError("failed to list cache entries").WithCause(err)
	}

	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			return errors.NewStorageError("failed to delete cache entry").WithCause(err)
		}
	}

	return nil
}

// migrateLegacy promotes a base64-obfuscated legacy entry into the secure
// namespace. Called on a secure-namespace miss while holding the key lock.
func (c *SecureCache) migrateLegacy(ctx context.Context, key string) (json.RawMessage, error) {
	raw, err := c.store.Get(ctx, LegacyPrefix+key)
	if err != nil {
		if _, ok := err.(ErrKeyNotFound); ok {
			c.metrics.CacheMisses.Inc()
			return nil, nil
		}
		return nil, errors.NewStorageError("failed to read legacy cache entry").WithCause(err)
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || !json.Valid(decoded) {
		c.logger.Warn("discarding malformed legacy cache entry", zap.String("key", key))
		if delErr := c.store.Delete(ctx, LegacyPrefix+key); delErr != nil {
			c.logger.Warn("failed to delete legacy cache entry", zap.String("key", key), zap.Error(delErr))
		}
		c.metrics.CacheMisses.Inc()
		return nil, nil
	}

	payload := json.RawMessage(decoded)

	ent := entry{
		Payload:         payload,
		CreatedAt:       time.Now().UnixMilli(),
		TTLMs:           c.defaultTTL.Milliseconds(),
		IntegrityDigest: digest(payload),
	}
	plaintext, err := json.Marshal(ent)
	if err != nil {
		return nil, errors.NewStorageError("failed to serialize migrated entry").WithCause(err)
	}
	envelope, err := c.seal(plaintext)
	if err != nil {
		return nil, err
	}
	if err := c.store.Set(ctx, SecurePrefix+key, envelope, c.defaultTTL+storeTTLGrace); err != nil {
		return nil, errors.NewStorageError("failed to persist migrated entry").WithCause(err)
	}
	if err := c.store.Delete(ctx, LegacyPrefix+key); err != nil {
		c.logger.Warn("failed to delete legacy cache entry after migration", zap.String("key", key), zap.Error(err))
	}

	c.logger.Info("migrated legacy cache entry", zap.String("key", key))
	c.metrics.CacheHits.Inc()
	return payload, nil
}

// seal encrypts plaintext into a versioned base64 envelope. Each call uses
// a fresh salt and nonce, both persisted in the envelope.
func (c *SecureCache) seal(plaintext []byte) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.NewStorageError("failed to generate salt").WithCause(err)
	}

	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return "", errors.NewStorageError("failed to construct cipher").WithCause(err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.NewStorageError("failed to construct AEAD").WithCause(err)
	}

	nonce := make([]byte, nonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.NewStorageError("failed to generate nonce").WithCause(err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	envelope := make([]byte, 0, 1+saltLength+nonceLength+len(ciphertext))
	envelope = append(envelope, envelopeVersion)
	envelope = append(envelope, salt...)
	envelope = append(envelope, nonce...)
	envelope = append(envelope, ciphertext...)

	return base64.StdEncoding.EncodeToString(envelope), nil
}

// open decrypts a base64 envelope produced by seal.
func (c *SecureCache) open(encoded string) ([]byte, error) {
	envelope, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid envelope encoding: %w", err)
	}

	if len(envelope) < 1+saltLength+nonceLength {
		return nil, fmt.Errorf("envelope too short: %d bytes", len(envelope))
	}
	if envelope[0] != envelopeVersion {
		return nil, fmt.Errorf("unknown envelope version %d", envelope[0])
	}

	salt := envelope[1 : 1+saltLength]
	nonce := envelope[1+saltLength : 1+saltLength+nonceLength]
	ciphertext := envelope[1+saltLength+nonceLength:]

	block, err := aes.NewCipher(c.deriveKey(salt))
	if err != nil {
		return nil, fmt.Errorf("constructing cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("constructing AEAD: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("opening envelope: %w", err)
	}

	return plaintext, nil
}

func (c *SecureCache) deriveKey(salt []byte) []byte {
	return pbkdf2.Key(c.secret, salt, pbkdf2Iterations, keyLength, sha256.New)
}

// purgeCorrupt deletes an unreadable entry and reports it. Corrupt entries
// are self-healing: they are removed rather than returned.
func (c *SecureCache) purgeCorrupt(ctx context.Context, key, reason string, cause error) {
	c.logger.Warn("purging corrupt cache entry",
		zap.String("key", key),
		zap.String("reason", reason),
		zap.Error(cause))

	if err := c.store.Delete(ctx, SecurePrefix+key); err != nil {
		c.logger.Warn("failed to purge corrupt cache entry", zap.String("key", key), zap.Error(err))
	}

	if c.events != nil {
		c.events.RecordEvent(security.EventIntegrityViolation, security.SeverityMedium, map[string]interface{}{
			"key":    key,
			"reason": reason,
		})
	}
}

func (c *SecureCache) lockFor(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &c.locks[h.Sum32()%lockStripes]
}

func expired(ent entry, now time.Time) bool {
	return ent.CreatedAt+ent.TTLMs < now.UnixMilli()
}

func digest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
