package tiney

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Cache stores generated instructions by key. Implementations must be safe
// for concurrent use.
type Cache interface {
	// Get returns the instructions stored under key; ok is false on a miss.
	Get(key string) (code []Instruction, ok bool, err error)
	// Put stores code under key, replacing any previous entry.
	Put(key string, name string, code []Instruction) error
}

// CacheKey derives the cache key for a source text compiled with the given
// settings. Settings that change the output are part of the key.
func CacheKey(src string, mode ValidationMode, flush bool) string {
	h := blake3.New()
	h.WriteString(fmt.Sprintf("v:%s,f:%t\n", mode, flush))
	h.WriteString(src)
	return hex.EncodeToString(h.Sum(nil))
}
