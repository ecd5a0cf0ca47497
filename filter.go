package jsgi

import (
	"io"

	"github.com/cockroachdb/errors"
)

// Transformer rewrites the chunks of a body. Transform may return zero or more chunks for each
// input chunk; Finish is called once after the last input chunk.
type Transformer interface {
	Transform(c Chunk) ([]Chunk, error)
	Finish() ([]Chunk, error)
}

// FilterBody returns a body that yields fn applied to every chunk of body.
func FilterBody(body Body, fn func(Chunk) (Chunk, error)) Body {
	return TransformBody(body, filterFunc(fn))
}

type filterFunc func(Chunk) (Chunk, error)

func (f filterFunc) Transform(c Chunk) ([]Chunk, error) {
	out, err := f(c)
	if err != nil {
		return nil, err
	}
	return []Chunk{out}, nil
}

func (f filterFunc) Finish() ([]Chunk, error) { return nil, nil }

// TransformBody returns a lazy body that pipes body through t. Closing it closes body.
func TransformBody(body Body, t Transformer) Body {
	return &transformBody{inner: body, t: t}
}

type transformBody struct {
	inner    Body
	t        Transformer
	pending  []Chunk
	finished bool
}

func (b *transformBody) Next() (Chunk, error) {
	for len(b.pending) == 0 {
		if b.finished {
			return Chunk{}, io.EOF
		}

		c, err := b.inner.Next()
		switch {
		case errors.Is(err, io.EOF):
			b.finished = true
			if b.pending, err = b.t.Finish(); err != nil {
				return Chunk{}, err
			}
		case err != nil:
			return Chunk{}, err
		default:
			if b.pending, err = b.t.Transform(c); err != nil {
				return Chunk{}, err
			}
		}
	}

	c := b.pending[0]
	b.pending = b.pending[1:]
	return c, nil
}

func (b *transformBody) Close() error { return b.inner.Close() }
