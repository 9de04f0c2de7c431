package httpmw

import (
	"net/http"

	"github.com/go-chi/cors"
)

type CORSOptions struct {
	AllowedOrigins []string
	AllowedMethods []string
}

// CORS returns nil when no origin is configured.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	if len(opts.AllowedOrigins) == 0 {
		return nil
	}
	methods := opts.AllowedMethods
	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   methods,
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		ExposedHeaders:   []string{"Server-Timing", "X-Request-Id", "X-Trace-Id"},
	})
}
