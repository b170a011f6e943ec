// Package cache stores complete forensic results keyed by content hash so
// repeated submissions of the same bytes skip the detector pipeline.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"DeForge/pkg/config"
	"DeForge/pkg/models"
)

// Store is a result cache. Implementations are safe for concurrent use and
// return results that callers may modify freely.
type Store interface {
	Get(ctx context.Context, key string) (*models.ForensicAnalysisResult, bool, error)
	Set(ctx context.Context, key string, result *models.ForensicAnalysisResult) error
	Close() error
}

// ContentHash returns the hex blake2b-256 digest of data
func ContentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Key combines a content hash with the signature of the analysis options
// that shaped the result
func Key(contentHash, signature string) string {
	if signature == "" {
		return contentHash
	}
	sum := blake2b.Sum256([]byte(signature))
	return contentHash + "-" + hex.EncodeToString(sum[:8])
}

// New creates the store selected by cfg.Backend
func New(cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(cfg.TTL.Duration, nil), nil
	case "sqlite":
		store, err := OpenSQLite(cfg.Path, cfg.TTL.Duration, nil)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "none", "":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Nop never stores anything
type Nop struct{}

// Get implements Store
func (Nop) Get(context.Context, string) (*models.ForensicAnalysisResult, bool, error) {
	return nil, false, nil
}

// Set implements Store
func (Nop) Set(context.Context, string, *models.ForensicAnalysisResult) error { return nil }

// Close implements Store
func (Nop) Close() error { return nil }

func encode(result *models.ForensicAnalysisResult) ([]byte, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode cached result: %w", err)
	}
	return payload, nil
}

func decode(payload []byte) (*models.ForensicAnalysisResult, error) {
	var result models.ForensicAnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode cached result: %w", err)
	}
	return &result, nil
}

func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
