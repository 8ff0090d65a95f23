package similarity

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// SelectOptions drive the one-time encoder choice made at process start.
type SelectOptions struct {
	Embedding EmbeddingConfig
	// Redis, when non-nil, caches embedding vectors.
	Redis    redis.UniversalClient
	CacheTTL time.Duration
}

// SelectEncoder picks the embedding encoder when a backend is configured and
// answers a probe, and the lexical encoder otherwise. The choice is not
// revisited for the life of the process.
func SelectEncoder(ctx context.Context, opts SelectOptions, logger *zap.Logger) Encoder {
	if opts.Embedding.Endpoint == "" {
		logger.Info("similarity encoder selected", zap.String("method", string(MethodLexical)), zap.String("reason", "no embedding endpoint"))
		return LexicalEncoder{}
	}

	emb, err := NewEmbeddingEncoder(opts.Embedding, logger)
	if err != nil {
		logger.Warn("embedding encoder misconfigured, using lexical similarity", zap.Error(err))
		return LexicalEncoder{}
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := emb.Probe(probeCtx); err != nil {
		logger.Warn("embedding backend unreachable, using lexical similarity",
			zap.String("endpoint", opts.Embedding.Endpoint),
			zap.Error(err))
		return LexicalEncoder{}
	}

	logger.Info("similarity encoder selected",
		zap.String("method", string(MethodEmbedding)),
		zap.String("model", emb.Model()),
		zap.Bool("cached", opts.Redis != nil))

	if opts.Redis != nil {
		return NewCachedEncoder(emb, opts.Redis, emb.Model(), opts.CacheTTL, logger)
	}
	return emb
}
