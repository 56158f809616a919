package middleware

import "net/http"

// Envelope stamps the fixed header set every response carries: JSON content
// type and the CORS allowance the UI needs. OPTIONS preflights are answered
// here and never reach a handler.
func Envelope(corsOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			h := w.Header()
			h.Set("Content-Type", "application/json")
			h.Set("Access-Control-Allow-Origin", corsOrigin)
			h.Set("Access-Control-Allow-Methods", "GET,OPTIONS")

			if req.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}
