package router

import (
	"github.com/beontime/internal/handler"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, sessionSecret string) *gin.Engine {
	r := gin.Default()

	// 配置会话中间件
	store := cookie.NewStore([]byte(sessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 7 * 24 * 3600, HttpOnly: true})
	r.Use(sessions.Sessions("beontime_session", store))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/login", api.Login)
		apiGroup.POST("/logout", api.Logout)

		// 需要认证的接口
		auth := apiGroup.Group("")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/me", api.Me)

			auth.GET("/habits", api.ListHabits)
			auth.GET("/habits/today", api.TodayHabits)
			auth.POST("/habits", api.CreateHabit)
			auth.GET("/habits/:id", api.GetHabit)
			auth.PUT("/habits/:id", api.UpdateHabit)
			auth.DELETE("/habits/:id", api.DeleteHabit)
			auth.POST("/habits/:id/complete", api.CompleteHabit)
			auth.POST("/habits/:id/notes", api.AddHabitNote)
			auth.GET("/habits/:id/calendar", api.GetHabitCalendar)
			auth.GET("/habits/:id/stats", api.GetHabitStats)

			auth.GET("/stats", api.GetStats)

			auth.GET("/notifications", api.ListNotifications)
			auth.POST("/notifications/read-all", api.MarkAllNotificationsRead)
			auth.POST("/notifications/:id/read", api.MarkNotificationRead)

			auth.GET("/challenges", api.ListChallenges)
			auth.POST("/challenges", api.CreateChallenge)
			auth.GET("/challenges/:id", api.GetChallenge)
			auth.POST("/challenges/:id/join", api.JoinChallenge)
			auth.DELETE("/challenges/:id/join", api.LeaveChallenge)
		}
	}

	return r
}
