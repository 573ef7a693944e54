// Package httpmw holds small HTTP middleware shared by every service's
// localhost-only HTTP surface: a stdlib variant and a gin adapter so both
// flavors of server in this module apply identical headers.
package httpmw

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SecurityHeaders wraps a stdlib http.Handler with the standard headers
// that mitigate clickjacking, MIME-sniffing, XSS reflection, and
// information leakage — appropriate even on a localhost-only surface since
// the browser UI renders third-party artwork URLs and font/script sources.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setHeaders(w.Header())
		next.ServeHTTP(w, r)
	})
}

// SecurityHeadersGin is the same middleware for the router's gin engine.
func SecurityHeadersGin() gin.HandlerFunc {
	return func(c *gin.Context) {
		setHeaders(c.Writer.Header())
		c.Next()
	}
}

func setHeaders(h http.Header) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
	h.Set("Content-Security-Policy",
		"default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: http://127.0.0.1:*; media-src 'self'; connect-src 'self' ws://127.0.0.1:*; font-src 'self'")
}
