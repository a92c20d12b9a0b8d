package middleware

import (
	"net/http"
	"strings"
)

var baseAllowedHeaders = []string{"Accept", "Content-Type", "Authorization", "X-Request-Id"}

// CORS 允许浏览器前端跨域访问。extraHeaders 追加到允许的请求头中，例如身份头。
func CORS(extraHeaders ...string) func(http.Handler) http.Handler {
	allowed := strings.Join(append(append([]string{}, baseAllowedHeaders...), extraHeaders...), ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", allowed)

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
