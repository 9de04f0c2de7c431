package httpmw

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/keithlinneman/titiler-go/internal/log"
)

// AccessTokenParam is the query parameter carrying the caller's token.
const AccessTokenParam = "access_token"

const (
	msgMissingToken = "Missing `access_token`"
	msgInvalidToken = "Invalid `access_token`"
)

// Decision is the outcome of a pre-routing check.
type Decision struct {
	Allowed bool
	Status  int
	Message string

	// Reason is a short label for metrics: "missing" or "invalid"
	Reason string
}

// Allow lets the request continue.
var Allow = Decision{Allowed: true}

// Deny stops the request with status and a detail message.
func Deny(status int, reason, msg string) Decision {
	return Decision{Status: status, Reason: reason, Message: msg}
}

// AccessTokenGuard compares the access_token query parameter against a
// secret fixed at startup.
type AccessTokenGuard struct {
	secret string

	// match the parameter name case-insensitively, for use with
	// LowerCaseQuery which only rewrites the query after the guard
	caseInsensitive bool
}

// NewAccessTokenGuard returns nil when secret is empty: no secret means no
// enforcement at all.
func NewAccessTokenGuard(secret string, caseInsensitive bool) *AccessTokenGuard {
	if secret == "" {
		return nil
	}
	return &AccessTokenGuard{secret: secret, caseInsensitive: caseInsensitive}
}

// Check decides on r. A nil guard allows everything.
func (g *AccessTokenGuard) Check(r *http.Request) Decision {
	if g == nil {
		return Allow
	}
	token := g.token(r)
	if token == "" {
		return Deny(http.StatusUnauthorized, "missing", msgMissingToken)
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(g.secret)) != 1 {
		return Deny(http.StatusUnauthorized, "invalid", msgInvalidToken)
	}
	return Allow
}

// token returns the last value given for the parameter. Without exact
// matching the raw query is walked in order, the same view LowerCaseQuery
// later hands the router.
func (g *AccessTokenGuard) token(r *http.Request) string {
	if !g.caseInsensitive {
		if vs := r.URL.Query()[AccessTokenParam]; len(vs) > 0 {
			return vs[len(vs)-1]
		}
		return ""
	}
	var token string
	for _, seg := range strings.Split(r.URL.RawQuery, "&") {
		k, v, _ := strings.Cut(seg, "=")
		if strings.ToLower(unescape(k)) == AccessTokenParam {
			token = unescape(v)
		}
	}
	return token
}

// AccessToken short-circuits denied requests with a JSON detail body.
// onDeny, if set, observes every denial. Returns nil for a nil guard so
// Chain skips it.
func AccessToken(g *AccessTokenGuard, onDeny func(*http.Request, Decision)) func(http.Handler) http.Handler {
	if g == nil {
		return nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Check(r)
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}
			// client error, not a server fault
			log.FromContext(r.Context()).Debug(r.Context(), "access denied", "reason", d.Message)
			if onDeny != nil {
				onDeny(r, d)
			}
			WriteDetail(w, d.Status, d.Message)
		})
	}
}

// WriteDetail writes a {"detail": msg} JSON error body.
func WriteDetail(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": msg})
}
