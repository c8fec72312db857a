package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ogurasousui/jobmarket-grpc-clean-arch/internal/core/job"
)

// Middleware は Authorization: Bearer <token> を検証し、呼び出し元をリクエストのコンテキストに詰めます。
func (v *Verifier) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		id, err := v.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Request = c.Request.WithContext(WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// RequireRole は指定した役割の呼び出し元のみ許可します。Middleware の後に置きます。
func RequireRole(roles ...job.Role) gin.HandlerFunc {
	allowed := make(map[job.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id, ok := FromContext(c.Request.Context())
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if _, ok := allowed[id.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
