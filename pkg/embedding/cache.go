package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/OFFIS-RIT/graphrag/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const defaultCachePrefix = "graphrag:emb"

// CachedProvider stores vectors in Redis keyed by provider, model and a
// SHA-256 of the text. Redis failures are logged and fall through to the
// wrapped provider.
type CachedProvider struct {
	Provider

	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewCachedProvider wraps p. A zero ttl keeps entries forever.
func NewCachedProvider(p Provider, rdb redis.Cmdable, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		Provider: p,
		rdb:      rdb,
		ttl:      ttl,
		prefix:   defaultCachePrefix,
	}
}

func (c *CachedProvider) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%s:%s:%s:%d:%s", c.prefix, c.Name(), c.Model(), c.Dimension(), hex.EncodeToString(sum[:]))
}

func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.BatchEmbed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// BatchEmbed serves cached vectors and embeds only the misses.
func (c *CachedProvider) BatchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var (
		keys []string
		idx  []int
	)
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			out[i] = make([]float32, c.Dimension())
			continue
		}
		keys = append(keys, c.key(t))
		idx = append(idx, i)
	}
	if len(keys) == 0 {
		return out, nil
	}

	var missIdx []int
	var missKeys []string
	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn("Embedding cache read failed", "err", err)
		vals = make([]any, len(keys))
	}
	for j, v := range vals {
		if s, ok := v.(string); ok {
			if vec, ok := decodeVector(s, c.Dimension()); ok {
				out[idx[j]] = vec
				continue
			}
		}
		missIdx = append(missIdx, idx[j])
		missKeys = append(missKeys, keys[j])
	}
	if len(missIdx) == 0 {
		return out, nil
	}

	missTexts := make([]string, len(missIdx))
	for j, i := range missIdx {
		missTexts[j] = texts[i]
	}
	vecs, err := c.Provider.BatchEmbed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	pipe := c.rdb.Pipeline()
	for j, vec := range vecs {
		out[missIdx[j]] = vec
		pipe.Set(ctx, missKeys[j], encodeVector(vec), c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn("Embedding cache write failed", "err", err)
	}

	logger.Debug("Embedding cache", "hits", len(keys)-len(missIdx), "misses", len(missIdx))
	return out, nil
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(s string, dim int) ([]float32, bool) {
	if len(s) != 4*dim {
		return nil, false
	}
	b := []byte(s)
	vec := make([]float32, dim)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return vec, true
}
