package similarity

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

// Candidate is one previously submitted text. Ref identifies its source to
// the caller and is echoed back as the best match.
type Candidate struct {
	Ref         string
	Text        string
	// LexicalText, when set, replaces Text on the word-overlap path.
	LexicalText string
}

func (c Candidate) lexical() string {
	if c.LexicalText != "" {
		return c.LexicalText
	}
	return c.Text
}

// Result is the outcome of scoring one text against a candidate set.
type Result struct {
	// Score is 100 × the best similarity, normally in [0,100]. Negative
	// cosine similarities are passed through unclamped.
	Score float64
	// BestMatch is only attributed on the embedding path.
	BestMatch *Candidate
	Method    Method
}

// Scorer compares a new text against candidates using the injected Encoder,
// falling back to word-set overlap whenever the encoder cannot help.
type Scorer struct {
	encoder Encoder
	logger  *zap.Logger
}

func NewScorer(encoder Encoder, logger *zap.Logger) *Scorer {
	if encoder == nil {
		encoder = LexicalEncoder{}
	}
	return &Scorer{encoder: encoder, logger: logger.Named("scorer")}
}

// Method reports which path the Scorer tries first.
func (s *Scorer) Method() Method { return s.encoder.Method() }

// Score never fails: encoder problems are logged and the lexical path is used
// with the same inputs.
func (s *Scorer) Score(ctx context.Context, text string, candidates []Candidate) Result {
	if len(candidates) == 0 {
		return Result{Score: 0, Method: s.encoder.Method()}
	}

	res, err := s.scoreEmbedding(ctx, text, candidates)
	if err == nil {
		return res
	}
	if !errors.Is(err, ErrNoBackend) {
		s.logger.Error("embedding similarity failed, using lexical fallback",
			zap.Int("candidates", len(candidates)),
			zap.Error(err))
	}

	return s.scoreLexical(text, candidates)
}

func (s *Scorer) scoreEmbedding(ctx context.Context, text string, candidates []Candidate) (Result, error) {
	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, text)
	for _, c := range candidates {
		texts = append(texts, c.Text)
	}

	enc := s.encoder.Encode(ctx, texts)
	vectors, ok := enc.Vectors()
	if !ok {
		return Result{}, enc.Reason()
	}
	if len(vectors) != len(texts) {
		return Result{}, fmt.Errorf("encoder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	query := vectors[0]
	best := math.Inf(-1)
	bestIdx := -1
	for i, v := range vectors[1:] {
		cos, err := Cosine(query, v)
		if err != nil {
			return Result{}, fmt.Errorf("candidate %d: %w", i, err)
		}
		if cos > best {
			best = cos
			bestIdx = i
		}
	}

	res := Result{Score: best * 100, Method: MethodEmbedding}
	if res.Score > 0 && bestIdx >= 0 {
		match := candidates[bestIdx]
		res.BestMatch = &match
	}
	return res, nil
}

func (s *Scorer) scoreLexical(text string, candidates []Candidate) Result {
	query := tokenSet(text)
	best := 0.0
	for _, c := range candidates {
		sim, ok := jaccardSets(query, tokenSet(c.lexical()))
		if !ok {
			continue
		}
		if sim > best {
			best = sim
		}
	}
	return Result{Score: best, Method: MethodLexical}
}

// Cosine returns the cosine similarity of a and b. Zero vectors compare as 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vector")
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
