package jsgi

import (
	"io"
	"regexp"
	"strconv"

	"github.com/cockroachdb/errors"
)

// ErrInvalidStatus is returned when a response carries a status outside 100-599.
var ErrInvalidStatus = errors.New("jsgi: invalid response status")

// textual content types get the configured charset appended when they name none.
var textualContentType = regexp.MustCompile(`^text/|[/+](json|xml|javascript)`)

func bodyAllowed(status int) bool {
	return status >= 200 && status != 204 && status != 304
}

// Commit writes resp onto ex: status, headers and body. Async responses commit themselves, so
// for them, and for an exchange that was already committed, Commit does nothing. The body is
// closed exactly once, also when writing fails; write errors are returned.
func Commit(ex Exchange, resp *Response, charset string) (err error) {
	if resp.async != nil {
		return nil
	}

	if resp.Body == nil {
		resp.Body = NewChunksBody()
	}
	body := &closeOnce{Body: resp.Body}
	resp.Body = body
	defer func() {
		if cerr := body.Close(); cerr != nil {
			err = errors.CombineErrors(err, errors.Wrap(cerr, "close response body"))
		}
	}()

	if ex.Committed() {
		return nil
	}

	if resp.Status < 100 || resp.Status > 599 {
		return errors.Wrapf(ErrInvalidStatus, "status %d", resp.Status)
	}

	headers := resp.Headers.Clone()
	if ct := headers.Get("Content-Type"); ct != "" && textualContentType.MatchString(ct) &&
		CharsetOf(ct, "") == "" {
		headers.Set("Content-Type", ct+"; charset="+charset)
	}
	charset = CharsetOf(headers.Get("Content-Type"), charset)

	var buffered [][]byte
	if !bodyAllowed(resp.Status) {
		headers.Unset("Content-Length")
	} else if fb, ok := body.Body.(FiniteBody); ok && fb.Finite() && !headers.Has("Content-Length") {
		var size int
		if buffered, size, err = encodeAll(resp.Body, charset); err != nil {
			return err
		}
		headers.Set("Content-Length", strconv.Itoa(size))
	}

	ex.SetStatus(resp.Status)
	headers.Each(func(name string, values []string) {
		for _, v := range values {
			ex.AddHeader(name, v)
		}
	})

	if !bodyAllowed(resp.Status) {
		return ex.Flush()
	}

	if buffered != nil {
		for _, b := range buffered {
			if _, err := ex.Write(b); err != nil {
				return errors.Wrap(err, "write response body")
			}
		}
		return ex.Flush()
	}

	for {
		c, err := resp.Body.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return errors.Wrap(err, "produce response body")
		}

		b, err := c.Bytes(charset)
		if err != nil {
			return err
		}
		if _, err := ex.Write(b); err != nil {
			return errors.Wrap(err, "write response body")
		}
	}
	return ex.Flush()
}

func encodeAll(body Body, charset string) ([][]byte, int, error) {
	var (
		out  [][]byte
		size int
	)
	for {
		c, err := body.Next()
		if errors.Is(err, io.EOF) {
			return out, size, nil
		}
		if err != nil {
			return nil, 0, errors.Wrap(err, "produce response body")
		}

		b, err := c.Bytes(charset)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, b)
		size += len(b)
	}
}
