package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-workflow-api/internal/docpath"
	"github.com/noah-isme/thesis-workflow-api/internal/middleware"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// pathContext builds the document address from the group route params.
// Missing or garbage segments degrade to fallback buckets instead of failing.
func pathContext(c *gin.Context) docpath.Context {
	return docpath.Context{
		Year: c.Param("year"),
		Department:   c.Param("department"),
		Course:       c.Param("course"),
		GroupID:      c.Param("groupId"),
	}
}
