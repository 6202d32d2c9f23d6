package router

import (
	"time"

	"salonhub/internal/database"
	"salonhub/internal/engine"
	"salonhub/internal/handlers"
	"salonhub/internal/middleware"
	"salonhub/internal/services"
	"salonhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// SetupRouter 设置路由
func SetupRouter() *gin.Engine {
	router := gin.New()

	// 中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS())

	// 注册自定义参数校验
	handlers.RegisterValidators()

	// 注册路由
	registerRoutes(router)
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine) {

	auth := middleware.NewAuthMiddleware()

	userService := services.NewUserService()
	tenantService := services.NewTenantService()
	membershipService := services.NewMembershipService()
	locationService := services.NewLocationService()
	ruleService := services.NewRuleService()
	auditService := services.NewAuditService()

	// API路由组
	api := router.Group("/api/v1")
	{
		// 健康检查接口
		api.GET("/health", healthCheck)
		api.GET("/ping", ping)

		// 认证路由（无需认证）
		authHandler := handlers.NewAuthHandler(userService)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)     // 用户登录
			authGroup.POST("/refresh", authHandler.Refresh) // 刷新Token

			authGroup.POST("/logout", auth.RequireLogin(), authHandler.Logout)
			authGroup.GET("/me", auth.RequireLogin(), authHandler.Me)
		}

		// 会话操作：租户/上下文切换、落地路由、权限快照
		sessionHandler := handlers.NewSessionHandler()
		sessionGroup := api.Group("/session", auth.RequireLogin())
		{
			sessionGroup.GET("", sessionHandler.Snapshot)
			sessionGroup.POST("/switch-tenant", sessionHandler.SwitchTenant)
			sessionGroup.POST("/switch-context", sessionHandler.SwitchContext)
			sessionGroup.POST("/refresh", sessionHandler.Refresh)
			sessionGroup.GET("/first-route", sessionHandler.FirstRoute)
			sessionGroup.GET("/permissions", sessionHandler.Permissions)
		}

		// 租户
		tenantHandler := handlers.NewTenantHandler(tenantService)
		tenants := api.Group("/tenants")
		{
			// 开通租户只需登录，开通人自动成为owner
			tenants.POST("", auth.RequireLogin(), tenantHandler.Create)
			tenants.GET("/:id", auth.RequireLogin(), tenantHandler.Get)
			tenants.GET("", auth.RequireLogin(), auth.RequirePermission(engine.ModuleSettings), tenantHandler.List)
			tenants.GET("/stats", auth.RequireLogin(), auth.RequirePermission(engine.ModuleSettings), tenantHandler.Stats)
			tenants.PUT("/:id", auth.RequireLogin(), auth.RequirePermission(engine.ModuleSettings), tenantHandler.Update)
			tenants.PUT("/:id/subscription", auth.RequireLogin(), auth.RequirePermission(engine.ModuleBilling), tenantHandler.UpdateSubscription)
		}

		// 用户与成员
		userHandler := handlers.NewUserHandler(userService, membershipService)
		users := api.Group("/users")
		{
			users.POST("", auth.RequireLogin(), auth.RequirePermission(engine.ModuleStaffManage), userHandler.Create)
			users.GET("", auth.RequireLogin(), auth.RequirePermission(engine.ModuleStaff), userHandler.List)
			users.GET("/:id", auth.RequireLogin(), auth.RequirePermission(engine.ModuleStaff), userHandler.Get)
			users.PUT("/:id", auth.RequireLogin(), auth.RequirePermission(engine.ModuleStaffManage), userHandler.Update)
			users.PUT("/:id/status", auth.RequireLogin(), auth.RequirePermission(engine.ModuleStaffManage), userHandler.UpdateStatus)

			// 自助操作，只需登录
			users.POST("/change-password", auth.RequireLogin(), userHandler.ChangePassword)
			users.POST("/complete-onboarding", auth.RequireLogin(), userHandler.CompleteOnboarding)
		}

		members := api.Group("/members", auth.RequireLogin())
		{
			members.GET("", auth.RequirePermission(engine.ModuleStaff), userHandler.ListMembers)
			members.POST("/role", auth.RequirePermission(engine.ModuleStaffManage), userHandler.AssignRole)
			members.DELETE("/:id", auth.RequirePermission(engine.ModuleStaffManage), userHandler.RevokeRole)
		}

		// 门店与排班
		locationHandler := handlers.NewLocationHandler(locationService)
		locations := api.Group("/locations", auth.RequireLogin())
		{
			locations.POST("", auth.RequirePermission(engine.ModuleLocations), locationHandler.Create)
			locations.GET("", locationHandler.List) // 门店列表参与上下文切换，只需登录
			locations.GET("/:id", locationHandler.Get)
			locations.PUT("/:id", auth.RequirePermission(engine.ModuleLocations), locationHandler.Update)
			locations.POST("/:id/deactivate", auth.RequirePermission(engine.ModuleLocations), locationHandler.Deactivate)
			locations.POST("/assign-staff", auth.RequirePermission(engine.ModuleStaffManage), locationHandler.AssignStaff)
		}

		// 权限规则
		ruleHandler := handlers.NewRuleHandler(ruleService)
		rules := api.Group("/rules", auth.RequireLogin(), auth.RequirePermission(engine.ModuleSettings))
		{
			rules.GET("/roles", ruleHandler.ListRolePermissions)
			rules.PUT("/roles", ruleHandler.SetRolePermission)
			rules.GET("/overrides/:userId", ruleHandler.ListUserOverrides)
			rules.PUT("/overrides", ruleHandler.SetUserOverride)
			rules.DELETE("/overrides", ruleHandler.RemoveUserOverride)
		}

		// 审计日志
		auditHandler := handlers.NewAuditHandler(auditService)
		api.GET("/audit-logs", auth.RequireLogin(), auth.RequirePermission(engine.ModuleSettings), auditHandler.List)
	}
}

func healthCheck(c *gin.Context) {
	data := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now(),
		"service":   "SalonHub",
		"version":   "1.0.0",
	}

	// 数据库连通性
	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err != nil || sqlDB.Ping() != nil {
			data["status"] = "degraded"
			data["database"] = "down"
		} else {
			data["database"] = "up"
		}
	}
	response.Success(c, data)
}

func ping(c *gin.Context) {
	response.SuccessWithMessage(c, "pong", nil)
}
