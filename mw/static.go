package mw

import (
	"context"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"syscall"

	"github.com/advdv/jsgi"
	"github.com/cockroachdb/errors"
)

// Static returns middleware that serves files from fsys for GET and HEAD requests whose path
// names a regular file. Everything else falls through to the next handler. Directories are
// served through their index.html.
func Static(fsys fs.FS) jsgi.Middleware {
	return func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			if req.Method != http.MethodGet && req.Method != http.MethodHead {
				return next.ServeJSGI(ctx, req)
			}

			resp, err := serveFile(fsys, req.PathInfo)
			if err != nil || resp == nil {
				if err != nil && !unresolved(err) {
					return nil, err
				}
				return next.ServeJSGI(ctx, req)
			}
			return resp, nil
		})
	}
}

// unresolved reports whether a stat error means the path names no file, including paths
// that continue below a regular file.
func unresolved(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ENOTDIR)
}

func serveFile(fsys fs.FS, escaped string) (*jsgi.Response, error) {
	p, err := url.PathUnescape(escaped)
	if err != nil {
		return nil, nil //nolint:nilnil
	}

	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" {
		name = "."
	}
	if !fs.ValidPath(name) {
		return nil, nil //nolint:nilnil
	}

	info, err := fs.Stat(fsys, name)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		name = path.Join(name, "index.html")
		if info, err = fs.Stat(fsys, name); err != nil {
			return nil, err
		}
	}
	if !info.Mode().IsRegular() {
		return nil, nil //nolint:nilnil
	}

	f, err := fsys.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}

	ct := mime.TypeByExtension(path.Ext(name))
	if ct == "" {
		ct = "application/octet-stream"
	}

	hdr := jsgi.NewHeaderMap(
		"Content-Type", ct,
		"Content-Length", strconv.FormatInt(info.Size(), 10),
		"Last-Modified", info.ModTime().UTC().Format(http.TimeFormat),
	)
	return jsgi.NewResponse(http.StatusOK, hdr, jsgi.NewReaderBody(f)), nil
}
