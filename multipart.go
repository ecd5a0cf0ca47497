package jsgi

import (
	"bufio"
	"bytes"
	"io"
	"mime"
	"strings"

	"github.com/cockroachdb/errors"
)

// MaxPartHeaderBytes bounds the lookahead used to find the end of a part's header block.
const MaxPartHeaderBytes = 8 << 10

var (
	// ErrNoBoundary is returned when a multipart content type carries no boundary.
	ErrNoBoundary = errors.New("jsgi: no multipart boundary")
	// ErrPartHeaders is returned when a part's headers do not end within the lookahead.
	ErrPartHeaders = errors.New("jsgi: multipart part headers not terminated")
	// ErrMalformedMultipart is returned when the body does not follow the boundary framing.
	ErrMalformedMultipart = errors.New("jsgi: malformed multipart body")
)

// FilePart is an uploaded file of a multipart/form-data body.
type FilePart struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// BoundaryOf returns the boundary parameter of a multipart content type.
func BoundaryOf(contentType string) (string, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", errors.Wrap(ErrNoBoundary, err.Error())
	}

	boundary := params["boundary"]
	if boundary == "" {
		return "", ErrNoBoundary
	}
	return boundary, nil
}

// ParseMultipart streams a multipart/form-data body. Every part is accumulated in memory; text
// parts are merged into the result like url-encoded parameters, file parts are stored as
// [*FilePart] values.
func ParseMultipart(r io.Reader, contentType, encoding string) (Params, error) {
	boundary, err := BoundaryOf(contentType)
	if err != nil {
		return nil, err
	}

	mr := &multipartReader{
		br:    bufio.NewReaderSize(r, MaxPartHeaderBytes),
		delim: []byte("\r\n--" + boundary),
	}

	// the first delimiter may appear without the leading CRLF
	if err := mr.skipPreamble(boundary); err != nil {
		return nil, err
	}

	params := Params{}
	for {
		last, err := mr.afterDelimiter()
		if err != nil {
			return nil, err
		}
		if last {
			return params, nil
		}

		hdr, err := mr.readHeaders()
		if err != nil {
			return nil, err
		}

		data, err := mr.readPartBody()
		if err != nil {
			return nil, err
		}

		disposition := hdr.Get("Content-Disposition")
		_, dparams, err := mime.ParseMediaType(disposition)
		if err != nil || dparams["name"] == "" {
			continue // parts without a name cannot be addressed
		}

		name := dparams["name"]
		if filename, ok := dparams["filename"]; ok {
			MergeParameter(params, name, &FilePart{
				Name:        name,
				Filename:    filename,
				ContentType: hdr.Get("Content-Type"),
				Data:        data,
			})
			continue
		}

		MergeParameter(params, name, decodeBytes(data, CharsetOf(hdr.Get("Content-Type"), encoding)))
	}
}

type multipartReader struct {
	br    *bufio.Reader
	delim []byte
}

func (mr *multipartReader) skipPreamble(boundary string) error {
	first := []byte("--" + boundary)
	for {
		line, err := mr.br.ReadSlice('\n')
		if bytes.HasPrefix(bytes.TrimRight(line, "\r\n"), first) {
			// push back the part that follows the boundary marker
			rest := line[len(first):]
			mr.br = bufio.NewReaderSize(io.MultiReader(bytes.NewReader(append([]byte(nil), rest...)), mr.br), MaxPartHeaderBytes)
			return nil
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil {
			return errors.Wrap(ErrMalformedMultipart, "boundary not found")
		}
	}
}

// afterDelimiter consumes what follows a boundary marker and reports whether it was the
// closing marker.
func (mr *multipartReader) afterDelimiter() (bool, error) {
	peek, err := mr.br.Peek(2)
	if err != nil {
		return false, errors.Wrap(ErrMalformedMultipart, "truncated after boundary")
	}
	if string(peek) == "--" {
		return true, nil
	}

	line, err := mr.br.ReadSlice('\n')
	if err != nil {
		return false, errors.Wrap(ErrMalformedMultipart, "truncated after boundary")
	}
	if len(bytes.TrimSpace(line)) != 0 {
		return false, errors.Wrap(ErrMalformedMultipart, "garbage after boundary")
	}
	return false, nil
}

func (mr *multipartReader) readHeaders() (HeaderMap, error) {
	var (
		hdr  HeaderMap
		read int
	)
	for {
		line, err := mr.br.ReadSlice('\n')
		read += len(line)
		if read > MaxPartHeaderBytes || err == bufio.ErrBufferFull {
			return hdr, ErrPartHeaders
		}
		if err != nil {
			return hdr, errors.Wrap(ErrPartHeaders, err.Error())
		}

		trimmed := strings.TrimRight(string(line), "\r\n")
		if trimmed == "" {
			return hdr, nil
		}

		name, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		hdr.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}
}

// readPartBody reads up to the next delimiter, leaving the reader right behind it.
func (mr *multipartReader) readPartBody() ([]byte, error) {
	var (
		body    bytes.Buffer
		pending []byte
		chunk   = make([]byte, 4096)
	)
	for {
		if idx := bytes.Index(pending, mr.delim); idx >= 0 {
			body.Write(pending[:idx])
			rest := pending[idx+len(mr.delim):]
			mr.br = bufio.NewReaderSize(io.MultiReader(bytes.NewReader(rest), mr.br), MaxPartHeaderBytes)
			return body.Bytes(), nil
		}

		// keep a tail that might hold the start of a delimiter
		if keep := len(mr.delim) - 1; len(pending) > keep {
			body.Write(pending[:len(pending)-keep])
			pending = append([]byte(nil), pending[len(pending)-keep:]...)
		}

		n, err := mr.br.Read(chunk)
		pending = append(pending, chunk[:n]...)
		if err == io.EOF && n == 0 {
			return nil, errors.Wrap(ErrMalformedMultipart, "closing boundary not found")
		}
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "read multipart body")
		}
	}
}
