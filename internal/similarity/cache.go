package similarity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/projectaudit/engine/pkg/utils"
)

const embeddingKeyPrefix = "projectaudit:embedding:"

// CachedEncoder memoizes vectors from an inner encoder in Redis, keyed by a
// hash of model and text. Redis failures degrade to calling the inner encoder.
type CachedEncoder struct {
	inner  Encoder
	rdb    redis.UniversalClient
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedEncoder(inner Encoder, rdb redis.UniversalClient, model string, ttl time.Duration, logger *zap.Logger) *CachedEncoder {
	return &CachedEncoder{
		inner:  inner,
		rdb:    rdb,
		model:  model,
		ttl:    ttl,
		logger: logger.Named("embedding_cache"),
	}
}

func (c *CachedEncoder) Method() Method { return c.inner.Method() }

func (c *CachedEncoder) key(text string) string {
	return embeddingKeyPrefix + utils.HashKey(c.model, text)
}

func (c *CachedEncoder) Encode(ctx context.Context, texts []string) Encoding {
	if len(texts) == 0 {
		return Encoded(nil)
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = c.key(t)
	}

	vectors := make([][]float32, len(texts))
	cached, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
		cached = nil
	}
	for i, raw := range cached {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		var v []float32
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			c.logger.Warn("discarding corrupt cached embedding", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		vectors[i] = v
	}

	var missIdx []int
	var missTexts []string
	for i, v := range vectors {
		if v == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	if len(missTexts) == 0 {
		return Encoded(vectors)
	}

	res := c.inner.Encode(ctx, missTexts)
	fresh, ok := res.Vectors()
	if !ok {
		return res
	}
	if len(fresh) != len(missTexts) {
		return Unavailable(fmt.Errorf("inner encoder returned %d vectors for %d texts", len(fresh), len(missTexts)))
	}

	pipe := c.rdb.Pipeline()
	for j, i := range missIdx {
		vectors[i] = fresh[j]
		b, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[i], b, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("embedding cache write failed", zap.Error(err))
	}

	return Encoded(vectors)
}
