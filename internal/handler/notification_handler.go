package handler

import (
	"net/http"
	"time"

	"github.com/beontime/internal/db"
	"github.com/beontime/internal/service"
	"github.com/gin-gonic/gin"
)

// ListNotifications 返回最近的通知与未读数
func (a *API) ListNotifications(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), service.DefaultNotificationLimit)

	list, err := a.notifications.List(c.Request.Context(), actorID(c), limit)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	items := make([]gin.H, 0, len(list.Items))
	for _, n := range list.Items {
		items = append(items, notificationToPayload(n))
	}

	c.JSON(http.StatusOK, gin.H{"notifications": items, "unread": list.Unread})
}

// MarkNotificationRead 将单条通知标记为已读，重复调用不报错
func (a *API) MarkNotificationRead(c *gin.Context) {
	n, err := a.notifications.MarkRead(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notification": notificationToPayload(*n)})
}

// MarkAllNotificationsRead 将当前用户的全部未读通知标记为已读
func (a *API) MarkAllNotificationsRead(c *gin.Context) {
	updated, err := a.notifications.MarkAllRead(c.Request.Context(), actorID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func notificationToPayload(n db.Notification) gin.H {
	data := map[string]interface{}(n.Data)
	if data == nil {
		data = map[string]interface{}{}
	}

	item := gin.H{
		"id":         n.ID,
		"type":       n.Type,
		"title":      n.Title,
		"message":    n.Message,
		"read":       n.Read,
		"data":       data,
		"created_at": n.CreatedAt.Format(time.RFC3339),
	}
	if n.ReadAt != nil {
		item["read_at"] = n.ReadAt.Format(time.RFC3339)
	}
	return item
}
