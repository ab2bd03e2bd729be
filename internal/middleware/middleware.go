// Package middleware carries the HTTP middlewares shared by the service's
// routers.
package middleware

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("prefix", "middleware")

// MaxBody caps request bodies at n bytes. Reads past the cap fail, so a
// decoder downstream surfaces oversized submissions as ordinary errors.
func MaxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
