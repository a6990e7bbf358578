package middleware

import (
	"github.com/gin-gonic/gin"
	apierrors "github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/util"
)

// contextUser reads the user set by the auth middleware
func contextUser(c *gin.Context) (*models.User, bool) {
	v, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}

// RequireAdmin ensures the request is authenticated and the user is an
// admin. It must run after the auth middleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := contextUser(c)
		if !ok {
			util.RespondWithAPIError(c, apierrors.Unauthorized("unauthorized"))
			c.Abort()
			return
		}

		if !user.IsAdmin {
			util.RespondWithAPIError(c, apierrors.Forbidden("admin access required"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireNotBanned rejects writes from banned users with 403 BANNED. Safe
// methods pass through so banned users can still read.
func RequireNotBanned() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case "GET", "HEAD", "OPTIONS":
			c.Next()
			return
		}

		if user, ok := contextUser(c); ok && user.IsBanned {
			util.RespondWithAPIError(c, apierrors.Banned(user.BannedReason))
			c.Abort()
			return
		}
		c.Next()
	}
}
