package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	SessionCookie  = "sessionCartId"
	sessionMaxAge  = 30 * 24 * time.Hour
	ctxSessionCart = "session_cart_id"
)

// SessionCart exposes the sessionCartId cookie to handlers. With create set,
// a missing cookie is minted so anonymous callers can start a cart.
func SessionCart(create, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || id == "" {
			id = ""
			if create {
				id = uuid.NewString()
				SetSessionCookie(c, id, secure)
			}
		}
		c.Set(ctxSessionCart, id)
		c.Next()
	}
}

// SetSessionCookie issues (or replaces) the sessionCartId cookie.
func SetSessionCookie(c *gin.Context, id string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, id, int(sessionMaxAge.Seconds()), "/", "", secure, true)
	c.Set(ctxSessionCart, id)
}

// SessionID returns the cart session of the request, possibly empty.
func SessionID(c *gin.Context) string {
	if id := c.GetString(ctxSessionCart); id != "" {
		return id
	}
	id, _ := c.Cookie(SessionCookie)
	return id
}
