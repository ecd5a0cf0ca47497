// Package jsgi provides a request pipeline where handlers return response values, and an
// asynchronous response primitive for responses that are completed later.
//
// # Overview
//
// Application code is organised in modules: explicit registries of actions. A [Dispatcher]
// resolves the request path against an ordered routing table, selects an action and calls it
// with the remaining path segments as arguments:
//
//	books := jsgi.NewModule().
//	    Action("index", listBooks).
//	    Action("edit", func(ctx context.Context, req *jsgi.Request, args ...string) (*jsgi.Response, error) {
//	        return jsgi.HTML("<h1>editing ", html.EscapeString(args[0]), "</h1>"), nil
//	    })
//
//	disp := jsgi.NewDispatcher()
//	disp.Use(mw.ErrorPage(mw.ErrorPageConfig{}))
//	disp.Mount("/books", books, "books")
//
//	http.ListenAndServe(":8080", jsgi.NewServer(disp, jsgi.ServerConfig{}))
//
// A request for /books/edit/42 calls the edit action with "42".
//
// # Responses
//
// A [Response] is a plain value: status, a case-insensitive [HeaderMap] and a [Body] that
// produces chunks lazily. [Commit] writes it onto the exchange exactly once and closes the
// body exactly once. Finite bodies get a Content-Length, text chunks are encoded with the
// charset of the Content-Type.
//
// # Errors and control flow
//
// Handlers return errors. Three kinds of errors are not failures but control transfers:
// [Retry], [NotFound] and [RedirectTo]. Middleware that renders errors must return those
// unchanged, see [IsControlFlow]. Errors created with [NewError] carry the status they are
// rendered with. Everything else becomes a 500 and is logged through the [Logger].
//
// # Middleware
//
// A [Middleware] wraps a [Handler]. With [Compose] and [Dispatcher.Use] the middleware
// provided first is the outermost one: it sees the request first and the response last.
//
// # Asynchronous responses
//
// An action that cannot answer right away creates an [AsyncResponse] and returns its
// [AsyncResponse.Response]. The server then suspends the exchange; any goroutine may call
// Start, Write, Flush and Close on the handle later:
//
//	func events(ctx context.Context, req *jsgi.Request, _ ...string) (*jsgi.Response, error) {
//	    handle := jsgi.NewAsyncResponse(req, jsgi.WithAutoFlush())
//	    if err := handle.Start(200, jsgi.NewHeaderMap("Content-Type", "text/event-stream")); err != nil {
//	        return nil, err
//	    }
//
//	    go func() {
//	        defer handle.Close()
//	        for ev := range feed {
//	            if err := handle.WriteString("data: " + ev + "\n\n"); err != nil {
//	                return
//	            }
//	        }
//	    }()
//
//	    return handle.Response(), nil
//	}
//
// All handle operations are serialised by one lock. Writing before Start fails with
// [ErrIllegalState], any operation after the handle was closed fails with [ErrClosed]. Close
// itself may be called any number of times. When the handle is not closed within the
// configured timeout the connection is aborted.
package jsgi
