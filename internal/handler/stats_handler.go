package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetStats 返回当前用户的习惯概览
func (a *API) GetStats(c *gin.Context) {
	stats, err := a.stats.UserStats(c.Request.Context(), actorID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// GetHabitStats 返回单个习惯的累计完成情况
func (a *API) GetHabitStats(c *gin.Context) {
	stats, err := a.stats.HabitStats(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
