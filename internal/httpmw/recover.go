package httpmw

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/keithlinneman/titiler-go/internal/log"
	"github.com/keithlinneman/titiler-go/internal/xerrors"
)

// Recover turns a panic from further in into a 500. http.ErrAbortHandler
// is re-raised so net/http can drop the connection quietly.
func Recover(L log.Logger, onPanic func()) func(http.Handler) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if v == http.ErrAbortHandler {
					panic(v)
				}
				err, ok := v.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", v)
				}
				L.With(
					"request_id", RequestIDFromContext(r.Context()),
					"http.request.method", r.Method,
					"url.path", r.URL.Path,
				).Error(r.Context(), xerrors.WithStack(err), "httpserver panic recovered",
					"panic_stack", string(debug.Stack()),
				)
				if onPanic != nil {
					onPanic()
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
