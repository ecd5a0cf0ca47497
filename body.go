package jsgi

import (
	"bytes"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrBodyConsumed is returned when a body is read after it was closed.
var ErrBodyConsumed = errors.New("jsgi: body already consumed")

// Chunk is one piece of a response body. Text chunks are encoded with the response charset
// when committed, binary chunks are written as they are.
type Chunk struct {
	text   string
	data   []byte
	binary bool
}

// TextChunk returns a chunk holding text.
func TextChunk(s string) Chunk { return Chunk{text: s} }

// BinaryChunk returns a chunk holding raw bytes.
func BinaryChunk(b []byte) Chunk { return Chunk{data: b, binary: true} }

// IsBinary reports whether the chunk carries raw bytes.
func (c Chunk) IsBinary() bool { return c.binary }

// String returns the text of a text chunk or the raw bytes of a binary chunk as a string.
func (c Chunk) String() string {
	if c.binary {
		return string(c.data)
	}
	return c.text
}

// Bytes encodes the chunk with the named charset.
func (c Chunk) Bytes(charset string) ([]byte, error) {
	if c.binary {
		return c.data, nil
	}
	return EncodeString(c.text, charset)
}

// Body produces the chunks of a response. It is forward-only and can be consumed once: Next
// returns io.EOF after the last chunk. Close releases the producer and is called exactly
// once by whoever consumes the body.
type Body interface {
	Next() (Chunk, error)
	Close() error
}

// FiniteBody is implemented by bodies whose complete content is held in memory, so that a
// Content-Length can be computed before writing.
type FiniteBody interface {
	Body
	Finite() bool
}

// Digester is implemented by bodies that can compute a hash of their content without being
// consumed.
type Digester interface {
	Digest() (string, error)
}

type chunksBody struct {
	chunks []Chunk
	pos    int
	closed bool
}

// NewChunksBody returns a finite in-memory body.
func NewChunksBody(chunks ...Chunk) Body {
	return &chunksBody{chunks: chunks}
}

func (b *chunksBody) Next() (Chunk, error) {
	if b.closed {
		return Chunk{}, ErrBodyConsumed
	}
	if b.pos >= len(b.chunks) {
		return Chunk{}, io.EOF
	}
	c := b.chunks[b.pos]
	b.pos++
	return c, nil
}

func (b *chunksBody) Close() error { b.closed = true; return nil }
func (b *chunksBody) Finite() bool { return true }

type streamBody struct {
	next   func() (Chunk, error)
	close  func() error
	closed bool
}

// NewStreamBody returns a lazily produced body of unknown length. next must return io.EOF
// when done; close may be nil.
func NewStreamBody(next func() (Chunk, error), close func() error) Body {
	return &streamBody{next: next, close: close}
}

func (b *streamBody) Next() (Chunk, error) {
	if b.closed {
		return Chunk{}, ErrBodyConsumed
	}
	return b.next()
}

func (b *streamBody) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	if b.close == nil {
		return nil
	}
	return b.close()
}

// ReaderChunkSize is the chunk size used by bodies reading from an io.Reader.
const ReaderChunkSize = 32 << 10

// NewReaderBody streams binary chunks from rc and closes it with the body.
func NewReaderBody(rc io.ReadCloser) Body {
	buf := make([]byte, ReaderChunkSize)
	return NewStreamBody(func() (Chunk, error) {
		n, err := rc.Read(buf)
		if n > 0 {
			// the buffer is reused, so hand out a copy
			return BinaryChunk(append([]byte(nil), buf[:n]...)), nil
		}
		if err == nil {
			err = io.ErrNoProgress
		}
		return Chunk{}, err
	}, rc.Close)
}

// DigestBody buffers another body so its content hash can be computed before the chunks are
// replayed.
type DigestBody struct {
	inner Body

	once   sync.Once
	chunks []Chunk
	digest string
	err    error
	pos    int
}

// NewDigestBody wraps body. The wrapped body is consumed lazily on the first call to Digest
// or Next.
func NewDigestBody(body Body) *DigestBody {
	return &DigestBody{inner: body}
}

func (b *DigestBody) buffer() {
	b.once.Do(func() {
		h := md5.New() //nolint:gosec
		for {
			c, err := b.inner.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				b.err = err
				return
			}

			// text is hashed as UTF-8 so the digest does not depend on the charset
			if c.binary {
				h.Write(c.data)
			} else {
				io.WriteString(h, c.text)
			}
			b.chunks = append(b.chunks, c)
		}
		b.digest = hex.EncodeToString(h.Sum(nil))
	})
}

// Digest returns the hex encoded MD5 of the body content.
func (b *DigestBody) Digest() (string, error) {
	b.buffer()
	return b.digest, b.err
}

func (b *DigestBody) Next() (Chunk, error) {
	b.buffer()
	if b.err != nil {
		return Chunk{}, b.err
	}
	if b.pos >= len(b.chunks) {
		return Chunk{}, io.EOF
	}
	c := b.chunks[b.pos]
	b.pos++
	return c, nil
}

func (b *DigestBody) Close() error { return b.inner.Close() }
func (b *DigestBody) Finite() bool { return true }

// ReadAll drains body into bytes, using the charset for text chunks. It does not close the
// body.
func ReadAll(body Body, charset string) ([]byte, error) {
	var buf bytes.Buffer
	for {
		c, err := body.Next()
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			return buf.Bytes(), err
		}

		b, err := c.Bytes(charset)
		if err != nil {
			return buf.Bytes(), err
		}
		buf.Write(b)
	}
}

type closeOnce struct {
	Body
	once sync.Once
	err  error
}

func (c *closeOnce) Close() error {
	c.once.Do(func() { c.err = c.Body.Close() })
	return c.err
}
