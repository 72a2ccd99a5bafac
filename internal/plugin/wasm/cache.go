package wasm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/tetratelabs/wazero"
)

// compiledEntry is one content-addressed cache slot.
type compiledEntry struct {
	module wazero.CompiledModule
}

// CompileCache memoizes wazero.CompiledModule by the SHA-256 of the wasm
// bytes it was compiled from, so identical plugin binaries registered under
// different manifests (or reloaded across process restarts within the same
// run) are compiled exactly once.
type CompileCache struct {
	mu      sync.RWMutex
	entries map[string]*compiledEntry
}

// NewCompileCache returns an empty cache.
func NewCompileCache() *CompileCache {
	return &CompileCache{entries: make(map[string]*compiledEntry)}
}

// contentHash returns the hex SHA-256 digest of wasm bytes.
func contentHash(wasmBytes []byte) string {
	sum := sha256.Sum256(wasmBytes)
	return hex.EncodeToString(sum[:])
}

// Compile returns the CompiledModule for wasmBytes, compiling and caching it
// on first use. Concurrent callers racing on the same content hash compile
// independently but only one compiled result is kept; the loser's module is
// closed rather than inserted.
func (c *CompileCache) Compile(ctx context.Context, rt wazero.Runtime, wasmBytes []byte) (wazero.CompiledModule, string, error) {
	hash := contentHash(wasmBytes)

	c.mu.RLock()
	if e, ok := c.entries[hash]; ok {
		c.mu.RUnlock()
		return e.module, hash, nil
	}
	c.mu.RUnlock()

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, hash, err
	}

	c.mu.Lock()
	if e, ok := c.entries[hash]; ok {
		c.mu.Unlock()
		// Another goroutine won the race; discard our redundant compile.
		_ = compiled.Close(ctx)
		return e.module, hash, nil
	}
	c.entries[hash] = &compiledEntry{module: compiled}
	c.mu.Unlock()
	return compiled, hash, nil
}

// Len reports the number of distinct compiled modules cached.
func (c *CompileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close releases every cached compiled module.
func (c *CompileCache) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for hash, e := range c.entries {
		if err := e.module.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.entries, hash)
	}
	return firstErr
}
