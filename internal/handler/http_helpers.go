package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beontime/internal/service"
	"github.com/gin-gonic/gin"
)

const dateFormat = "2006-01-02"

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// handleServiceError 将服务层错误映射为 HTTP 状态码
func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrHabitNotFound):
		respondError(c, http.StatusNotFound, "习惯不存在")
	case errors.Is(err, service.ErrNotificationNotFound):
		respondError(c, http.StatusNotFound, "通知不存在")
	case errors.Is(err, service.ErrChallengeNotFound):
		respondError(c, http.StatusNotFound, "挑战不存在")
	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, "无权操作该资源")
	case errors.Is(err, service.ErrValidation):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAlreadyJoined):
		respondError(c, http.StatusConflict, "已加入该挑战")
	case errors.Is(err, service.ErrConflict):
		respondError(c, http.StatusConflict, "数据已被修改，请重试")
	case errors.Is(err, service.ErrPersistenceUnavailable):
		respondError(c, http.StatusServiceUnavailable, "存储暂不可用")
	default:
		respondError(c, http.StatusInternalServerError, "操作失败")
	}
}

// parseOptionalDate 解析 YYYY-MM-DD，空串返回 nil
func parseOptionalDate(value string, loc *time.Location) (*time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, true
	}

	t, err := time.ParseInLocation(dateFormat, value, loc)
	if err != nil {
		return nil, false
	}

	return &t, true
}

func parseLimit(raw string, fallback int) int {
	limit, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
