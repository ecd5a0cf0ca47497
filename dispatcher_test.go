package jsgi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/advdv/jsgi"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// echo returns an action that renders its name, script name and arguments.
func echo(name string) jsgi.Action {
	return func(_ context.Context, req *jsgi.Request, args ...string) (*jsgi.Response, error) {
		return jsgi.Text(name + " " + req.ScriptName + " " + req.PathInfo + " [" + strings.Join(args, ",") + "]"), nil
	}
}

func serve(t *testing.T, h jsgi.Handler, method, target string) (*jsgi.Response, error) {
	t.Helper()
	raw := httptest.NewRequest(method, target, nil)
	return h.ServeJSGI(context.Background(), jsgi.NewRequest(raw, nil, ""))
}

func body(t *testing.T, resp *jsgi.Response) string {
	t.Helper()
	return readString(t, resp.Body)
}

func newBooksDispatcher() *jsgi.Dispatcher {
	admin := jsgi.NewModule().
		Action("index", echo("admin.index")).
		Action("purge", echo("admin.purge"))

	books := jsgi.NewModule().
		Action("index", echo("books.index")).
		Action("edit", echo("books.edit")).
		Sub("admin", admin)

	root := jsgi.NewModule().
		Action("index", echo("root.index")).
		Action("about", echo("root.about"))

	d := jsgi.NewDispatcher()
	d.Mount("/books", books, "books")
	d.MountRegexp(regexp.MustCompile(`^/v[0-9]+`), jsgi.NewModule().Action("index", echo("versioned.index")))
	d.Mount("/", root, "root")
	return d
}

func TestDispatch(t *testing.T) {
	d := newBooksDispatcher()

	for _, tt := range []struct {
		target string
		exp    string
	}{
		{"/", "root.index  / []"},
		{"/about", "root.about  /about []"},
		{"/books", "books.index /books  []"},
		{"/books/", "books.index /books / []"},
		{"/books/edit/42", "books.edit /books /edit/42 [42]"},
		{"/books/edit/a%2Fb/c%20d", "books.edit /books /edit/a%2Fb/c%20d [a/b,c d]"},
		{"/books/edit/42/", "books.edit /books /edit/42/ [42]"},
		{"/books/admin/", "admin.index /books/admin / []"},
		{"/books/admin/purge/7", "admin.purge /books/admin /purge/7 [7]"},
		{"/v2", "versioned.index /v2  []"},
		{"/bookshelf", ""},
	} {
		t.Run(tt.target, func(t *testing.T) {
			resp, err := serve(t, d, http.MethodGet, tt.target)
			if tt.exp == "" {
				var nfe *jsgi.NotFoundError
				require.True(t, errors.As(err, &nfe))
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.exp, body(t, resp))
		})
	}
}

func TestDispatchNotFound(t *testing.T) {
	d := jsgi.NewDispatcher()
	d.Mount("/books", jsgi.NewModule().Action("edit", echo("edit")))

	for _, target := range []string{"/", "/other", "/books", "/books/delete/1"} {
		_, err := serve(t, d, http.MethodGet, target)
		var nfe *jsgi.NotFoundError
		require.True(t, errors.As(err, &nfe), target)
	}
}

func TestDispatchFirstMatchWins(t *testing.T) {
	d := jsgi.NewDispatcher()
	d.Mount("/", jsgi.NewModule().Action("index", echo("first")))
	d.Mount("/", jsgi.NewModule().Action("index", echo("second")))

	for range 5 {
		resp, err := serve(t, d, http.MethodGet, "/")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(body(t, resp), "first"))
	}
}

func TestDispatchOrderOfDisjointRoutes(t *testing.T) {
	mounts := []func(d *jsgi.Dispatcher){
		func(d *jsgi.Dispatcher) { d.Mount("/books", jsgi.NewModule().Action("index", echo("books"))) },
		func(d *jsgi.Dispatcher) {
			d.MountRegexp(regexp.MustCompile(`^/v[0-9]+`), jsgi.NewModule().Action("index", echo("versioned")))
		},
		func(d *jsgi.Dispatcher) { d.Mount("/about", jsgi.NewModule().Action("index", echo("about"))) },
	}

	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, order := range orders {
		d := jsgi.NewDispatcher()
		for _, i := range order {
			mounts[i](d)
		}

		for target, exp := range map[string]string{
			"/books/":  "books /books / []",
			"/v12":     "versioned /v12  []",
			"/about/":  "about /about / []",
			"/aboutus": "",
		} {
			resp, err := serve(t, d, http.MethodGet, target)
			if exp == "" {
				var nfe *jsgi.NotFoundError
				require.True(t, errors.As(err, &nfe), "order %v, target %s", order, target)
				continue
			}
			require.NoError(t, err, "order %v, target %s", order, target)
			require.Equal(t, exp, body(t, resp), "order %v, target %s", order, target)
		}
	}
}

func TestDispatchTrailingSlashRedirect(t *testing.T) {
	d := newBooksDispatcher()

	_, err := serve(t, d, http.MethodGet, "/books/admin?x=1")
	var rde *jsgi.RedirectError
	require.True(t, errors.As(err, &rde))
	require.Equal(t, http.StatusMovedPermanently, rde.Code)
	require.Equal(t, "/books/admin/?x=1", rde.Location)

	_, err = serve(t, d, http.MethodPost, "/books/admin")
	require.True(t, errors.As(err, &rde))
	require.Equal(t, http.StatusPermanentRedirect, rde.Code)
}

func TestDispatchHandlerRoute(t *testing.T) {
	d := jsgi.NewDispatcher()
	d.MountHandler("/health", jsgi.HandlerFunc(func(_ context.Context, req *jsgi.Request) (*jsgi.Response, error) {
		return jsgi.Text("ok " + req.ScriptName + " " + req.PathInfo), nil
	}))

	resp, err := serve(t, d, http.MethodGet, "/health/live")
	require.NoError(t, err)
	require.Equal(t, "ok /health /live", body(t, resp))
}

func TestDispatcherMiddleware(t *testing.T) {
	d := jsgi.NewDispatcher()
	d.Use(func(next jsgi.Handler) jsgi.Handler {
		return jsgi.HandlerFunc(func(ctx context.Context, req *jsgi.Request) (*jsgi.Response, error) {
			resp, err := next.ServeJSGI(ctx, req)
			if _, ok := jsgi.ControlFlowResponse(err); ok {
				return jsgi.Text("custom not found"), nil
			}
			return resp, err
		})
	})
	d.Mount("/a", jsgi.NewModule().Action("index", echo("a")))

	resp, err := serve(t, d, http.MethodGet, "/nope")
	require.NoError(t, err)
	require.Equal(t, "custom not found", body(t, resp))

	require.PanicsWithValue(t, "jsgi: cannot call Use() after calling Mount", func() {
		d.Use(func(h jsgi.Handler) jsgi.Handler { return h })
	})
}

func TestDispatcherMountValidation(t *testing.T) {
	d := jsgi.NewDispatcher()
	require.Panics(t, func() { d.Mount("books", jsgi.NewModule()) })
	require.Panics(t, func() { d.Mount("/books", nil) })

	d.Mount("/a", jsgi.NewModule(), "a")
	require.PanicsWithValue(t, `jsgi: route with name "a" already exists`, func() {
		d.Mount("/b", jsgi.NewModule(), "a")
	})
}

func TestReverse(t *testing.T) {
	d := newBooksDispatcher()

	for _, tt := range []struct {
		name, action string
		args         []string
		exp          string
	}{
		{"books", "", nil, "/books/"},
		{"books", "index", nil, "/books/"},
		{"books", "edit", []string{"42"}, "/books/edit/42"},
		{"books", "edit", []string{"a/b c"}, "/books/edit/a%2Fb%20c"},
		{"root", "about", nil, "/about"},
		{"root", "", nil, "/"},
	} {
		url, err := d.Reverse(tt.name, tt.action, tt.args...)
		require.NoError(t, err)
		require.Equal(t, tt.exp, url)
	}

	_, err := d.Reverse("nope", "index")
	require.ErrorContains(t, err, `no route named: "nope"`)
}

func TestReverseRoundTrip(t *testing.T) {
	d := newBooksDispatcher()

	url, err := d.Reverse("books", "edit", "a/b c")
	require.NoError(t, err)

	resp, err := serve(t, d, http.MethodGet, url)
	require.NoError(t, err)
	require.Equal(t, "books.edit /books /edit/a%2Fb%20c [a/b c]", body(t, resp))
}

func TestModuleActions(t *testing.T) {
	m := jsgi.NewModule().Action("b", echo("b")).Action("a", echo("a"))
	require.Equal(t, []string{"a", "b"}, m.Actions())

	_, ok := m.Lookup("c")
	require.False(t, ok)
	require.Panics(t, func() { m.Action("nil", nil) })
}
