package events

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/audiograph/internal/logger"
)

// DeduplicationConfig holds configuration for error deduplication
type DeduplicationConfig struct {
	Enabled         bool
	TTL             time.Duration
	CleanupInterval time.Duration
}

// DefaultDeduplicationConfig returns default deduplication settings
func DefaultDeduplicationConfig() *DeduplicationConfig {
	return &DeduplicationConfig{
		Enabled:         true,
		TTL:             5 * time.Minute,
		CleanupInterval: 1 * time.Minute,
	}
}

// ErrorDeduplicator suppresses repeats of the same error within a TTL window
type ErrorDeduplicator struct {
	config *DeduplicationConfig
	seen   *cache.Cache

	totalSeen       atomic.Uint64
	totalSuppressed atomic.Uint64

	logger logger.Logger
}

// NewErrorDeduplicator creates a new error deduplicator
func NewErrorDeduplicator(config *DeduplicationConfig, log logger.Logger) *ErrorDeduplicator {
	if config == nil {
		config = DefaultDeduplicationConfig()
	}
	return &ErrorDeduplicator{
		config: config,
		seen:   cache.New(config.TTL, config.CleanupInterval),
		logger: log,
	}
}

// ShouldProcess reports whether the error is new within the TTL window
func (ed *ErrorDeduplicator) ShouldProcess(event ErrorEvent) bool {
	if ed == nil || !ed.config.Enabled {
		return true
	}

	ed.totalSeen.Add(1)
	key := errorKey(event)

	// Add fails when the key is already present and unexpired
	if err := ed.seen.Add(key, 1, cache.DefaultExpiration); err == nil {
		return true
	}

	count, _ := ed.seen.IncrementInt(key, 1)
	suppressed := ed.totalSuppressed.Add(1)

	if count%10 == 0 && ed.logger != nil {
		ed.logger.Debug("suppressing duplicate error",
			logger.String("component", event.GetComponent()),
			logger.String("category", event.GetCategory()),
			logger.Int("count", count),
			logger.Uint64("total_suppressed", suppressed))
	}

	return false
}

// Stats returns seen and suppressed counters
func (ed *ErrorDeduplicator) Stats() (seen, suppressed uint64) {
	if ed == nil {
		return 0, 0
	}
	return ed.totalSeen.Load(), ed.totalSuppressed.Load()
}

// Reset forgets every remembered error
func (ed *ErrorDeduplicator) Reset() {
	if ed == nil {
		return
	}
	ed.seen.Flush()
}

// errorKey identifies an error by component, category, message and operation
func errorKey(event ErrorEvent) string {
	h := sha256.New()
	h.Write([]byte(event.GetComponent()))
	h.Write([]byte{0})
	h.Write([]byte(event.GetCategory()))
	h.Write([]byte{0})
	h.Write([]byte(event.GetMessage()))

	if ctx := event.GetContext(); ctx != nil {
		if op, ok := ctx["operation"].(string); ok {
			h.Write([]byte{0})
			h.Write([]byte(op))
		}
	}

	return hex.EncodeToString(h.Sum(nil)[:8])
}
