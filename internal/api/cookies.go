package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}

// writeCookie sets an HttpOnly, SameSite=Lax cookie. maxAge < 0 deletes it;
// maxAge == 0 makes it a browser-session cookie.
func writeCookie(c *gin.Context, domain, name, value string, maxAge int) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		MaxAge:   maxAge,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(domain),
	}
	switch {
	case maxAge > 0:
		cookie.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	case maxAge < 0:
		cookie.Expires = time.Unix(0, 0)
	}
	http.SetCookie(c.Writer, cookie)
}
