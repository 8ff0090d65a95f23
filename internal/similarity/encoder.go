package similarity

import (
	"context"
	"errors"
)

// Method names the comparison path a score was produced by.
type Method string

const (
	MethodEmbedding Method = "embedding"
	MethodLexical   Method = "lexical"
)

// ErrNoBackend is the reason reported by the lexical encoder.
var ErrNoBackend = errors.New("no embedding backend configured")

// Encoding is the outcome of an encode call: either vectors for every input
// text, in input order, or unavailable with a reason.
type Encoding struct {
	vectors [][]float32
	reason  error
}

// Encoded wraps vectors produced for a batch of texts.
func Encoded(vectors [][]float32) Encoding {
	return Encoding{vectors: vectors}
}

// Unavailable reports that no vectors could be produced.
func Unavailable(reason error) Encoding {
	if reason == nil {
		reason = ErrNoBackend
	}
	return Encoding{reason: reason}
}

// Vectors returns the vectors and true, or nil and false when unavailable.
func (e Encoding) Vectors() ([][]float32, bool) {
	if e.reason != nil {
		return nil, false
	}
	return e.vectors, true
}

// Reason is nil for an Encoded result.
func (e Encoding) Reason() error { return e.reason }

// Encoder turns texts into vectors suitable for cosine comparison. The
// implementation is chosen once at startup and injected into the Scorer.
type Encoder interface {
	Encode(ctx context.Context, texts []string) Encoding
	Method() Method
}

// LexicalEncoder is the fallback capability: it never produces vectors, so
// the Scorer always compares token sets.
type LexicalEncoder struct{}

func (LexicalEncoder) Encode(context.Context, []string) Encoding { return Unavailable(ErrNoBackend) }

func (LexicalEncoder) Method() Method { return MethodLexical }
