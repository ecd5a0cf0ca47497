package jsgi

import (
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultMaxFormBytes limits how much of a url-encoded body is read for parameter parsing.
const DefaultMaxFormBytes = 10 << 20

// Request is the view of one inbound exchange handed to middleware and actions. Its structure
// is fixed once created; parameters are parsed lazily and cached. Routing hands out shallow
// copies with an adjusted ScriptName and PathInfo.
type Request struct {
	Method      string
	Scheme      string
	Host        string
	ScriptName  string
	PathInfo    string
	QueryString string
	Headers     HeaderMap
	RemoteAddr  string

	// Body is the request input. It can be read once.
	Body io.Reader

	// Mode is the execution mode requested by the last [Retry] signal, empty initially.
	Mode string

	charset     string
	contentType string
	std         *http.Request
	exchange    Exchange
	cache       *requestCache
}

// requestCache is shared between the copies routing creates.
type requestCache struct {
	query     Params
	post      Params
	postErr   error
	postDone  bool
	bodyTaken bool
}

// NewRequest builds a request view for raw. The exchange is what async responses write to,
// and its input is the request body. Without an exchange the body of raw is read.
func NewRequest(raw *http.Request, ex Exchange, charset string) *Request {
	scheme := "http"
	if raw.TLS != nil {
		scheme = "https"
	}
	if charset == "" {
		charset = DefaultCharset
	}
	var body io.Reader = raw.Body
	if ex != nil {
		body = ex.Input()
	}

	return &Request{
		Method:      raw.Method,
		Scheme:      scheme,
		Host:        raw.Host,
		PathInfo:    raw.URL.EscapedPath(),
		QueryString: raw.URL.RawQuery,
		Headers:     HeaderMapFromStd(raw.Header),
		RemoteAddr:  raw.RemoteAddr,
		Body:        body,
		charset:     charset,
		std:         raw,
		exchange:    ex,
		cache:       &requestCache{},
	}
}

// Path returns the full, still escaped, request path.
func (r *Request) Path() string {
	p := r.ScriptName + r.PathInfo
	if p == "" {
		return "/"
	}
	return p
}

// Std returns the underlying standard library request.
func (r *Request) Std() *http.Request { return r.std }

// Header returns the first value of the named request header.
func (r *Request) Header(name string) string { return r.Headers.Get(name) }

// Charset returns the request charset: the Content-Type parameter or the server default.
func (r *Request) Charset() string { return CharsetOf(r.Headers.Get("Content-Type"), r.charset) }

// Query returns the parsed query string.
func (r *Request) Query() Params {
	if r.cache.query == nil {
		r.cache.query = ParseParameters([]byte(r.QueryString), r.charset)
	}
	return r.cache.query
}

// PostParams parses the request body when it is url-encoded or multipart form data. Other
// content types yield empty parameters. Malformed bodies result in a [CodeBadRequest] error.
func (r *Request) PostParams() (Params, error) {
	if r.cache.postDone {
		return r.cache.post, r.cache.postErr
	}
	r.cache.postDone = true
	r.cache.post = Params{}

	ct := r.Headers.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(ct)
	switch {
	case mediaType == "application/x-www-form-urlencoded":
		body, err := r.takeBody()
		if err != nil {
			r.cache.postErr = err
			return r.cache.post, err
		}

		data, err := io.ReadAll(io.LimitReader(body, DefaultMaxFormBytes))
		if err != nil {
			r.cache.postErr = NewError(CodeBadRequest, errors.Wrap(err, "read form body"))
			return r.cache.post, r.cache.postErr
		}
		r.cache.post = ParseParameters(data, r.Charset())
	case strings.HasPrefix(mediaType, "multipart/form-data"):
		body, err := r.takeBody()
		if err != nil {
			r.cache.postErr = err
			return r.cache.post, err
		}

		params, err := ParseMultipart(body, ct, r.Charset())
		if err != nil {
			r.cache.postErr = NewError(CodeBadRequest, errors.Wrap(err, "parse multipart body"))
			return r.cache.post, r.cache.postErr
		}
		r.cache.post = params
	}

	return r.cache.post, nil
}

// Params merges query and post parameters, post parameters win.
func (r *Request) Params() (Params, error) {
	post, err := r.PostParams()
	if err != nil {
		return nil, err
	}

	merged := Params{}
	for k, v := range r.Query() {
		merged[k] = v
	}
	for k, v := range post {
		merged[k] = v
	}
	return merged, nil
}

// ErrBodyTaken is returned when the request body was already consumed.
var ErrBodyTaken = errors.New("jsgi: request body already consumed")

func (r *Request) takeBody() (io.Reader, error) {
	if r.cache.bodyTaken || r.Body == nil {
		return nil, ErrBodyTaken
	}
	r.cache.bodyTaken = true
	return r.Body, nil
}

// withPrefix moves prefix from PathInfo into ScriptName.
func (r *Request) withPrefix(prefix string) *Request {
	r2 := new(Request)
	*r2 = *r
	r2.ScriptName = r.ScriptName + prefix
	r2.PathInfo = strings.TrimPrefix(r.PathInfo, prefix)
	return r2
}
