package main

import (
	"dialer-platform/internal/auth"
	"dialer-platform/internal/httpapi"
	"dialer-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, authMW gin.HandlerFunc, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// AUTH routes (token issuance).
	// NOTE: placeholder credential flow; see Handlers.Login.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// Identity echo for debugging.
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			orgID, _ := auth.OrganizationID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "organization_id": orgID, "role": role})
		})

		// SCORING routes
		scoringGroup := v1.Group("/scoring")
		scoringGroup.Use(rbac.RequireOrganization())
		scoringGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleAgent, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			scoringGroup.POST("/leads", h.ScoreLead)
			scoringGroup.POST("/leads/batch", h.ScoreLeads)
			scoringGroup.GET("/leads/:lead_id", h.GetLeadScore)
			scoringGroup.GET("/leads/:lead_id/best-time", h.GetBestTimeToCall)
			scoringGroup.POST("/queue", h.GetPriorityQueue)
		}

		// Model management is restricted to owner/manager.
		models := v1.Group("/scoring/models")
		models.Use(rbac.RequireOrganization())
		models.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleSuperAdmin))
		{
			models.POST("/", h.CreateScoringModel)
			models.GET("/:model_id", h.GetScoringModel)
			models.POST("/:model_id/activate", h.ActivateScoringModel)
		}

		// CALLER-ID routes
		pools := v1.Group("/pools")
		pools.Use(rbac.RequireOrganization())
		pools.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleSuperAdmin))
		{
			pools.POST("/", h.CreatePool)
			pools.GET("/:pool_id", h.GetPool)
			pools.GET("/:pool_id/stats", h.GetPoolStats)
			pools.POST("/:pool_id/numbers", h.ImportNumbers)
			pools.POST("/:pool_id/select", h.SelectCallerID)
			pools.GET("/:pool_id/health", h.PoolHealth)
		}

		numbers := v1.Group("/numbers")
		numbers.Use(rbac.RequireOrganization())
		numbers.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleSuperAdmin))
		{
			numbers.POST("/:number_id/flag", h.FlagNumber)
			numbers.POST("/:number_id/unblock", h.UnblockNumber)
			numbers.POST("/:number_id/cooldown", h.CooldownNumber)
			numbers.GET("/:number_id/stats", h.GetNumberStats)
			numbers.GET("/:number_id/reputation-events", h.ListReputationEvents)
		}

		// USAGE routes (the dialing loop calls these)
		usage := v1.Group("/usage")
		usage.Use(rbac.RequireOrganization())
		usage.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleSuperAdmin))
		{
			usage.POST("/calls", h.RecordCallStart)
			usage.POST("/calls/:usage_log_id/result", h.RecordCallResult)
		}

		// DIALER routes
		dialerGroup := v1.Group("/dialer")
		dialerGroup.Use(rbac.RequireOrganization())
		dialerGroup.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleAgent, rbac.RoleSuperAdmin))
		{
			dialerGroup.POST("/plan", h.BuildCallPlan)
		}

		// REPORTING routes
		reports := v1.Group("/reports")
		reports.Use(rbac.RequireOrganization())
		reports.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager, rbac.RoleAnalyst, rbac.RoleSuperAdmin))
		{
			reports.POST("/scoring", h.ScoringSummary)
		}

		// ADMIN routes
		// Only owner/super_admin can access admin endpoints by default.
		// Hidden network_operator is intentionally NOT included unless explicitly desired.
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireOrganization())
		admin.Use(rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleSuperAdmin))
		{
			admin.GET("/ping", func(c *gin.Context) {
				c.JSON(200, gin.H{"status": "ok"})
			})
			admin.POST("/numbers/reset-daily", h.ResetDailyCounters)
			admin.POST("/numbers/process-cooldowns", h.ProcessCooldowns)
		}
	}
}
