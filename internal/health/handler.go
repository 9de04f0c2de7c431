package health

import "net/http"

// LiveHandler answers 200 "ok" while p passes and 503 with the reason
// otherwise. A nil probe is always healthy.
func LiveHandler(p Probe) http.HandlerFunc {
	return handler(p, "ok\n")
}

// ReadyHandler is LiveHandler with a "ready" body.
func ReadyHandler(p Probe) http.HandlerFunc {
	return handler(p, "ready\n")
}

func handler(p Probe, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		if p != nil {
			if err := p.Check(r.Context()); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}
}
