package api

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gin-gonic/gin"
)

const (
	flashCookieName = "flash"
	flashPendingKey = "pendingFlashes"
)

// Flash categories map onto alert styles in the layout.
const (
	flashDanger  = "danger"
	flashSuccess = "success"
	flashInfo    = "info"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

// addFlash queues a message for the next page the browser renders.
func addFlash(c *gin.Context, category, message string) {
	var pending []Flash
	if value, ok := c.Get(flashPendingKey); ok {
		pending, _ = value.([]Flash)
	}
	pending = append(pending, Flash{Category: category, Message: message})
	c.Set(flashPendingKey, pending)

	payload, err := json.Marshal(pending)
	if err != nil {
		return
	}
	writeCookie(c, "", flashCookieName, base64.RawURLEncoding.EncodeToString(payload), 0)
}

// popFlashes returns the messages queued by earlier requests and by this one,
// and clears the cookie.
func popFlashes(c *gin.Context) []Flash {
	var flashes []Flash
	raw, err := c.Cookie(flashCookieName)
	hadCookie := err == nil && raw != ""
	if hadCookie {
		if payload, err := base64.RawURLEncoding.DecodeString(raw); err == nil {
			_ = json.Unmarshal(payload, &flashes)
		}
	}
	if value, ok := c.Get(flashPendingKey); ok {
		pending, _ := value.([]Flash)
		flashes = append(flashes, pending...)
		c.Set(flashPendingKey, []Flash(nil))
	}
	if hadCookie || len(flashes) > 0 {
		writeCookie(c, "", flashCookieName, "", -1)
	}
	return flashes
}

// redirectWithFlash is the common "flash then redirect" answer of form handlers.
func redirectWithFlash(c *gin.Context, status int, location, category, message string) {
	addFlash(c, category, message)
	c.Redirect(status, location)
}
