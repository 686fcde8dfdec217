package handler

import (
	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/service"
	"github.com/beontime/internal/store"
	"github.com/gin-gonic/gin"
)

const actorContextKey = "actor_id"

// API bundles shared dependencies for HTTP handlers.
type API struct {
	habits        *service.HabitService
	completion    *service.CompletionEngine
	notifications *service.NotificationService
	challenges    *service.ChallengeService
	stats         *service.StatsService
	users         *store.UserStore
	clock         clock.Clock
}

// NewAPI constructs a handler set with shared services.
func NewAPI(services *service.Services, clk clock.Clock) *API {
	return &API{
		habits:        services.Habits,
		completion:    services.Completion,
		notifications: services.Notifications,
		challenges:    services.Challenges,
		stats:         services.Stats,
		users:         services.Users,
		clock:         clk,
	}
}

// actorID 返回 AuthRequired 写入上下文的当前用户
func actorID(c *gin.Context) uint {
	return c.GetUint(actorContextKey)
}
