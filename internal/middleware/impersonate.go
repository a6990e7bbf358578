package middleware

import (
	"github.com/gin-gonic/gin"
	apierrors "github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminImpersonationMiddleware lets an admin act as another user by
// sending X-Impersonate-User: <username>. Non-admins get 403.
func AdminImpersonationMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := c.GetHeader("X-Impersonate-User")
		if username == "" {
			c.Next()
			return
		}

		admin, ok := contextUser(c)
		if !ok {
			util.RespondWithAPIError(c, apierrors.Unauthorized("unauthorized"))
			c.Abort()
			return
		}
		if !admin.IsAdmin {
			util.RespondWithAPIError(c, apierrors.Forbidden("only admins can impersonate users"))
			c.Abort()
			return
		}

		var target models.User
		if err := db.WithContext(c.Request.Context()).Where("username = ?", username).First(&target).Error; err != nil {
			util.RespondNotFound(c, "impersonated user")
			c.Abort()
			return
		}

		c.Set("user_id", target.ID)
		c.Set("user", &target)
		c.Set("impersonated_by", admin.ID)

		logger.Log.Info("Admin impersonation",
			zap.String("admin_id", admin.ID),
			zap.String("impersonated_user_id", target.ID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
		)

		c.Next()
	}
}
