package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/johnnycloud/posture/pkg/models/api"
)

// Recover is the last-resort boundary: anything escaping probe logic becomes
// a 500 with a generic error body instead of a crashed process.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			zerolog.Ctx(req.Context()).Error().
				Interface("panic", rec).
				Str("path", req.URL.Path).
				Msg("unhandled failure in request handling")

			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(api.Error{
				Error:  "unhandled",
				Detail: fmt.Sprint(rec),
			})
		}()
		next.ServeHTTP(w, req)
	})
}
