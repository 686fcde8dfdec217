package handler

import (
	"net/http"
	"time"

	"github.com/beontime/internal/db"
	"github.com/beontime/internal/service"
	"github.com/gin-gonic/gin"
)

type challengePayload struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Frequency   string `json:"frequency"`
	TargetDays  int    `json:"target_days"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

type joinPayload struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ListChallenges 返回全部挑战
func (a *API) ListChallenges(c *gin.Context) {
	challenges, err := a.challenges.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	items := make([]gin.H, 0, len(challenges))
	for _, challenge := range challenges {
		items = append(items, challengeToPayload(challenge))
	}
	c.JSON(http.StatusOK, gin.H{"challenges": items})
}

// GetChallenge 返回挑战详情与参与者进度
func (a *API) GetChallenge(c *gin.Context) {
	challenge, err := a.challenges.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge": challengeToPayload(*challenge)})
}

// CreateChallenge 新建挑战
func (a *API) CreateChallenge(c *gin.Context) {
	var payload challengePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	loc := a.clock.Now().Location()
	start, ok := parseOptionalDate(payload.StartDate, loc)
	if !ok || start == nil {
		respondError(c, http.StatusBadRequest, "无效的开始日期")
		return
	}
	end, ok := parseOptionalDate(payload.EndDate, loc)
	if !ok || end == nil {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return
	}

	challenge, err := a.challenges.Create(c.Request.Context(), actorID(c), service.ChallengeInput{
		Title:       payload.Title,
		Description: payload.Description,
		Category:    payload.Category,
		Frequency:   payload.Frequency,
		TargetDays:  payload.TargetDays,
		StartDate:   *start,
		EndDate:     *end,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"challenge": challengeToPayload(*challenge)})
}

// JoinChallenge 加入挑战并返回派生的习惯
func (a *API) JoinChallenge(c *gin.Context) {
	var payload joinPayload
	if c.Request.ContentLength > 0 && !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	challenge, habit, err := a.challenges.Join(c.Request.Context(), c.Param("id"), actorID(c), service.JoinInput{
		StartTime: payload.StartTime,
		EndTime:   payload.EndTime,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"challenge": challengeToPayload(*challenge),
		"habit":     habitToPayload(*habit),
	})
}

// LeaveChallenge 退出挑战
func (a *API) LeaveChallenge(c *gin.Context) {
	if err := a.challenges.Leave(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"left": true})
}

func challengeToPayload(challenge db.Challenge) gin.H {
	participants := make([]gin.H, 0, len(challenge.Participants))
	for _, p := range challenge.Participants {
		item := gin.H{
			"user_id":   p.UserID,
			"habit_id":  p.HabitID,
			"progress":  p.Progress,
			"completed": p.Completed,
			"joined_at": p.JoinedAt.Format(time.RFC3339),
		}
		if p.CompletionDate != nil {
			item["completion_date"] = p.CompletionDate.Format(time.RFC3339)
		}
		participants = append(participants, item)
	}

	return gin.H{
		"id":           challenge.ID,
		"title":        challenge.Title,
		"description":  challenge.Description,
		"category":     challenge.Category,
		"frequency":    challenge.Frequency,
		"target_days":  challenge.TargetDays,
		"start_date":   challenge.StartDate.Format(dateFormat),
		"end_date":     challenge.EndDate.Format(dateFormat),
		"participants": participants,
	}
}
