package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	// HeaderAdminKey carries the admin secret on REST calls.
	HeaderAdminKey = "X-Admin-Key"
	// ContextAdminKey is the key for the presented admin secret in gin context.
	ContextAdminKey = "admin_key"
)

// AdminKey copies the presented admin secret into the context. It does not
// authorize; each service checks the key itself so that every entry point
// (REST, /exec, websocket) applies the same rule.
func AdminKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAdminKey)
		if key == "" {
			key = c.Query("adminKey")
		}
		c.Set(ContextAdminKey, key)
		c.Next()
	}
}

// AdminKeyFrom returns the admin secret stored by AdminKey.
func AdminKeyFrom(c *gin.Context) string {
	if v, ok := c.Get(ContextAdminKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return c.GetHeader(HeaderAdminKey)
}
