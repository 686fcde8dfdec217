package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/beontime/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 校验用户名密码并写入会话
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	user, err := a.users.GetByUsername(c.Request.Context(), strings.TrimSpace(payload.Username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusUnauthorized, "用户名或密码错误")
			return
		}
		respondError(c, http.StatusServiceUnavailable, "存储暂不可用")
		return
	}
	if !user.CheckPassword(payload.Password) {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Set("username", user.Username)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": user.ID, "username": user.Username})
}

// Logout 清空会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.JSON(http.StatusOK, gin.H{"logged_out": true})
}

// Me 返回当前登录用户
func (a *API) Me(c *gin.Context) {
	user, err := a.users.GetByID(c.Request.Context(), actorID(c))
	if err != nil {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":                  user.ID,
		"username":            user.Username,
		"email":               user.Email,
		"email_notifications": user.EmailNotifications,
		"telegram_linked":     user.TelegramChatID != 0,
	})
}

// AuthRequired 从会话中取出 user_id 作为操作者
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get("user_id").(uint)
		if !ok || userID == 0 {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		c.Set(actorContextKey, userID)
		c.Next()
	}
}
