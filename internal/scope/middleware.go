package scope

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderToken carries the opaque scope token issued by the auth layer.
	HeaderToken = "X-Scope-Token"

	contextKey = "actorScope"
)

// Middleware resolves the request's scope token and stores the Scope in the
// Gin context. Requests without a valid token are rejected before reaching
// any handler.
func Middleware(resolver Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(HeaderToken)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "missing scope token",
			})
			return
		}

		sc, err := resolver.Get(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, ErrTokenNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"success": false,
					"message": "invalid or expired scope token",
				})
				return
			}
			log.Printf("[ERROR] scope middleware: failed to resolve token: %v", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "internal error",
			})
			return
		}

		c.Set(contextKey, *sc)
		c.Next()
	}
}

// FromContext returns the Scope stored by Middleware.
func FromContext(c *gin.Context) (Scope, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return Scope{}, false
	}
	sc, ok := v.(Scope)
	return sc, ok
}
