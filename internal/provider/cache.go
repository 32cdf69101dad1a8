package provider

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedProvider wraps a Provider with an in-process embedding cache keyed by content hash.
// Completions are never cached.
type CachedProvider struct {
	Provider
	cache *ristretto.Cache
}

// NewCachedProvider caches up to maxVectors embeddings.
func NewCachedProvider(p Provider, maxVectors int64) (*CachedProvider, error) {
	if maxVectors <= 0 {
		maxVectors = 10_000
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxVectors * 10,
		MaxCost:     maxVectors,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedProvider{Provider: p, cache: cache}, nil
}

func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	key := contentHash(text)
	if v, ok := c.cache.Get(key); ok {
		return v.([]float32), nil
	}

	vec, err := c.Provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vec, 1)
	c.cache.Wait()
	return vec, nil
}

// EmbedBatch only sends the texts that miss the cache to the wrapped provider.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, t := range texts {
		if v, ok := c.cache.Get(contentHash(t)); ok {
			vecs[i] = v.([]float32)
			continue
		}
		missing = append(missing, t)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) > 0 {
		fresh, err := c.Provider.EmbedBatch(ctx, missing)
		if err != nil {
			return nil, err
		}
		if err := checkBatch(missing, len(fresh)); err != nil {
			return nil, err
		}
		for j, vec := range fresh {
			vecs[missingIdx[j]] = vec
			c.cache.Set(contentHash(missing[j]), vec, 1)
		}
		c.cache.Wait()
	}

	return vecs, nil
}

// Close stops the cache's background goroutines.
func (c *CachedProvider) Close() error {
	c.cache.Close()
	return nil
}

func contentHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
