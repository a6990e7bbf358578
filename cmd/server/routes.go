package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zfogg/paddock/internal/config"
	"github.com/zfogg/paddock/internal/database"
	"github.com/zfogg/paddock/internal/handlers"
	"github.com/zfogg/paddock/internal/kernel"
	"github.com/zfogg/paddock/internal/middleware"
	"github.com/zfogg/paddock/internal/models"
)

// referenceCacheTTL is how long team, driver and track listings are cached
const referenceCacheTTL = 10 * time.Minute

// newHandlers wires the request handlers to the kernel's services
func newHandlers(cfg *config.Config, k *kernel.Kernel) (*handlers.Handlers, *handlers.AuthHandlers) {
	h := handlers.NewHandlers(k.DB())
	h.SetNotifications(k.Notifications())
	h.SetSearch(k.Search())
	h.SetPolls(k.Polls())
	h.SetGrids(k.Grids())
	h.SetTimeline(k.Timeline())
	h.SetChat(k.Chat())
	h.SetUploader(k.Uploader())
	h.SetMailer(k.Mailer())
	h.SetDashboard(k.Dashboard())
	h.SetAlerts(k.Alerts())
	h.SetWebSocketHandler(k.WebSocket())
	return h, handlers.NewAuthHandlers(k.Auth(), cfg.IsProduction())
}

// newRouter builds the HTTP surface. The returned limiters own cleanup
// goroutines the caller stops at shutdown.
func newRouter(cfg *config.Config, k *kernel.Kernel, h *handlers.Handlers, authHandlers *handlers.AuthHandlers) (*gin.Engine, []*middleware.RateLimiter) {
	redis := k.Cache()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.CorrelationMiddleware())
	r.Use(middleware.TracingMiddleware("paddock-api"))
	r.Use(middleware.SpanEnrichmentMiddleware())
	r.Use(middleware.GinLoggerMiddleware())
	r.Use(middleware.MetricsMiddleware())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || cfg.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID", "X-Impersonate-User"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID", "X-Cache", "Retry-After"}
	r.Use(cors.New(corsConfig))

	apiLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig(), redis)
	authLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig(), redis)
	uploadLimiter := middleware.NewRateLimiter(middleware.UploadRateLimitConfig(), redis)
	searchLimiter := middleware.NewRateLimiter(middleware.SearchRateLimitConfig(), redis)
	contactLimiter := middleware.NewRateLimiter(middleware.ContactRateLimitConfig(), redis)
	limiters := []*middleware.RateLimiter{apiLimiter, authLimiter, uploadLimiter, searchLimiter, contactLimiter}

	r.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if err := database.Health(); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "paddock-api",
			"search":    k.Search().Backend(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The socket authenticates itself from ?token= or the Authorization header
	ws := k.WebSocket()
	r.GET("/ws", ws.HandleWebSocket)

	requireAuth := authHandlers.AuthMiddleware()
	r.GET("/ws/metrics", requireAuth, ws.HandleMetrics)

	api := r.Group("/api/v1")
	api.Use(gzip.Gzip(gzip.DefaultCompression), apiLimiter.Middleware())

	optionalAuth := authHandlers.OptionalAuthMiddleware()
	impersonate := middleware.AdminImpersonationMiddleware(k.DB())

	authGroup := api.Group("/auth")
	{
		limited := authGroup.Group("", authLimiter.Middleware())
		limited.POST("/register", authHandlers.Register)
		limited.POST("/login", authHandlers.Login)
		limited.POST("/2fa/verify", authHandlers.VerifyTwoFactor)
		limited.POST("/password/forgot", authHandlers.ForgotPassword)
		limited.POST("/password/reset", authHandlers.ResetPassword)
		authGroup.GET("/google", authHandlers.GoogleLogin)
		authGroup.GET("/google/callback", authHandlers.GoogleCallback)

		session := authGroup.Group("", requireAuth)
		session.GET("/me", authHandlers.Me)
		session.POST("/2fa/enable", authHandlers.EnableTwoFactor)
		session.POST("/2fa/confirm", authHandlers.ConfirmTwoFactor)
		session.POST("/2fa/disable", authHandlers.DisableTwoFactor)
		session.POST("/password/change", authHandlers.ChangePassword)
	}

	// Reference data is the same for every viewer, so it is cached whole
	reference := api.Group("", middleware.ResponseCacheMiddleware(redis, referenceCacheTTL))
	{
		reference.GET("/teams", h.GetTeams)
		reference.GET("/drivers", h.GetDrivers)
		reference.GET("/tracks", h.GetTracks)
	}

	public := api.Group("", optionalAuth)
	{
		public.GET("/users/:id", h.GetUserProfile)
		public.GET("/users/:id/followers", h.GetFollowers)
		public.GET("/users/:id/following", h.GetFollowing)

		public.GET("/feed", h.GetFeed)
		public.GET("/trending", h.GetTrending)
		public.GET("/posts/:id", h.GetPost)
		public.GET("/posts/:id/comments", h.ListComments(models.TargetPost))
		public.GET("/polls", h.ListPolls)
		public.GET("/polls/:id", h.GetPoll)
		public.GET("/polls/:id/comments", h.ListComments(models.TargetPoll))
		public.GET("/grids", h.ListGrids)
		public.GET("/grids/consensus", h.GetConsensus)
		public.GET("/grids/:id", h.GetGrid)
		public.GET("/grids/:id/comments", h.ListComments(models.TargetGrid))
		public.GET("/comments/:id/replies", h.GetReplies)

		public.GET("/search", searchLimiter.Middleware(), h.Search)
		public.POST("/contact", contactLimiter.Middleware(), h.SubmitContact)

		public.GET("/chat/status", h.GetChatStatus)
		public.GET("/chat/rooms/:room/messages", h.GetChatHistory)
	}

	authed := api.Group("", requireAuth, impersonate, middleware.RequireNotBanned())
	{
		authed.PUT("/users/me", h.UpdateMyProfile)
		authed.PUT("/users/me/username", h.ChangeUsername)
		authed.POST("/users/me/avatar", uploadLimiter.Middleware(), h.UploadAvatar)
		authed.POST("/users/:id/follow", h.FollowUser)
		authed.DELETE("/users/:id/follow", h.UnfollowUser)
		authed.POST("/users/:id/block", h.BlockUser)
		authed.DELETE("/users/:id/block", h.UnblockUser)

		authed.GET("/onboarding", h.GetOnboarding)
		authed.PUT("/onboarding", h.UpdateOnboarding)

		authed.POST("/posts", h.CreatePost)
		authed.POST("/posts/image", uploadLimiter.Middleware(), h.UploadPostImage)
		authed.DELETE("/posts/:id", h.DeletePost)
		authed.POST("/posts/:id/comments", h.CreateComment(models.TargetPost))
		authed.POST("/polls/:id/comments", h.CreateComment(models.TargetPoll))
		authed.POST("/grids/:id/comments", h.CreateComment(models.TargetGrid))
		authed.PUT("/comments/:id", h.UpdateComment)
		authed.DELETE("/comments/:id", h.DeleteComment)
		authed.POST("/likes", h.Like)
		authed.DELETE("/likes", h.Unlike)

		authed.POST("/polls", h.CreatePoll)
		authed.POST("/polls/:id/vote", h.VotePoll)
		authed.DELETE("/polls/:id/vote", h.RetractVote)
		authed.POST("/polls/:id/close", h.ClosePoll)
		authed.DELETE("/polls/:id", h.DeletePoll)

		authed.POST("/grids", h.CreateGrid)
		authed.PUT("/grids/:id", h.UpdateGrid)
		authed.DELETE("/grids/:id", h.DeleteGrid)

		authed.GET("/notifications", h.GetNotifications)
		authed.GET("/notifications/counts", h.GetNotificationCounts)
		authed.POST("/notifications/read", h.MarkNotificationsRead)
		authed.GET("/notifications/preferences", h.GetNotificationPreferences)
		authed.PUT("/notifications/preferences", h.UpdateNotificationPreferences)

		authed.POST("/reports", h.CreateReport)
		authed.POST("/chat/rooms/:room/messages", h.SendChatMessage)
		authed.DELETE("/chat/messages/:id", h.DeleteChatMessage)
	}

	admin := api.Group("/admin", requireAuth, middleware.RequireAdmin())
	{
		admin.GET("/dashboard", h.GetDashboard)
		admin.GET("/alerts", h.ListAlerts)
		admin.POST("/alerts/:id/resolve", h.ResolveAlert)
		admin.PUT("/alerts/rules/:id", h.UpdateAlertRule)

		admin.GET("/reports", h.ListReports)
		admin.POST("/reports/:id/resolve", h.ResolveReport)
		admin.DELETE("/content/:target_type/:id", h.AdminDeleteContent)

		admin.GET("/users", h.AdminSearchUsers)
		admin.POST("/users/:id/ban", h.BanUser)
		admin.DELETE("/users/:id/ban", h.UnbanUser)
		admin.POST("/users/:id/admin", h.SetAdmin)

		admin.GET("/contact", h.ListContactMessages)
		admin.POST("/contact/:id/handled", h.HandleContactMessage)
		admin.POST("/chat/toggle", h.ToggleChat)

		// Writes drop the cached reference listings
		refs := admin.Group("", middleware.CacheInvalidationMiddleware(redis, "/api/v1/teams", "/api/v1/drivers", "/api/v1/tracks"))
		refs.POST("/teams", h.CreateTeam)
		refs.PUT("/teams/:id", h.UpdateTeam)
		refs.POST("/drivers", h.CreateDriver)
		refs.PUT("/drivers/:id", h.UpdateDriver)
		refs.POST("/tracks", h.CreateTrack)
		refs.PUT("/tracks/:id", h.UpdateTrack)
	}

	return r, limiters
}
