package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/beontime/internal/db"
	"github.com/beontime/internal/service"
	"github.com/beontime/internal/store"
	"github.com/gin-gonic/gin"
)

type habitPayload struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	Frequency          string   `json:"frequency"`
	TargetDays         int      `json:"target_days"`
	StartDate          string   `json:"start_date"`
	EndDate            string   `json:"end_date"`
	StartTime          string   `json:"start_time"`
	EndTime            string   `json:"end_time"`
	NotifyEnabled      bool     `json:"notify_enabled"`
	NotifyStart        bool     `json:"notify_start"`
	NotifyEnd          bool     `json:"notify_end"`
	EndReminderMinutes int      `json:"end_reminder_minutes"`
	Tags               []string `json:"tags"`
}

type completePayload struct {
	Date string `json:"date"` // 2006-01-02，可选，默认今天
}

type notePayload struct {
	Content string `json:"content"`
}

// ListHabits 返回当前用户的习惯列表，支持 category/search 过滤
func (a *API) ListHabits(c *gin.Context) {
	filter := store.HabitFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}

	habits, err := a.habits.List(c.Request.Context(), actorID(c), filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habits": habitsToPayload(habits)})
}

// TodayHabits 返回今天处于活跃期的习惯，按开始时间排序
func (a *API) TodayHabits(c *gin.Context) {
	habits, err := a.habits.Today(c.Request.Context(), actorID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habits": habitsToPayload(habits)})
}

// GetHabit 返回单个习惯详情
func (a *API) GetHabit(c *gin.Context) {
	habit, err := a.habits.Get(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// CreateHabit 创建习惯
func (a *API) CreateHabit(c *gin.Context) {
	input, ok := a.parseHabitInput(c)
	if !ok {
		return
	}

	habit, err := a.habits.Create(c.Request.Context(), actorID(c), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"habit": habitToPayload(*habit)})
}

// UpdateHabit 更新习惯
func (a *API) UpdateHabit(c *gin.Context) {
	input, ok := a.parseHabitInput(c)
	if !ok {
		return
	}

	habit, err := a.habits.Update(c.Request.Context(), c.Param("id"), actorID(c), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// DeleteHabit 删除习惯
func (a *API) DeleteHabit(c *gin.Context) {
	if err := a.habits.Delete(c.Request.Context(), c.Param("id"), actorID(c)); err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// CompleteHabit 标记某天完成。当天已完成时返回 409 并附带当前习惯
func (a *API) CompleteHabit(c *gin.Context) {
	var payload completePayload
	if c.Request.ContentLength > 0 && !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	when, ok := parseOptionalDate(payload.Date, a.clock.Now().Location())
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的完成日期")
		return
	}
	var day time.Time
	if when != nil {
		day = *when
	}

	habit, err := a.completion.Complete(c.Request.Context(), c.Param("id"), actorID(c), day)
	if errors.Is(err, service.ErrAlreadyCompleted) && habit != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "今天已经完成", "habit": habitToPayload(*habit)})
		return
	}
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"habit": habitToPayload(*habit)})
}

// AddHabitNote 为习惯追加备注
func (a *API) AddHabitNote(c *gin.Context) {
	var payload notePayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return
	}

	note, err := a.habits.AddNote(c.Request.Context(), c.Param("id"), actorID(c), payload.Content)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"note": noteToPayload(*note)})
}

// GetHabitCalendar 返回日期区间内的完成情况和统计，默认最近 30 天
func (a *API) GetHabitCalendar(c *gin.Context) {
	now := a.clock.Now()
	loc := now.Location()

	end := now
	if parsed, ok := parseOptionalDate(c.Query("end"), loc); !ok {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return
	} else if parsed != nil {
		end = *parsed
	}

	start := end.AddDate(0, 0, -29)
	if parsed, ok := parseOptionalDate(c.Query("start"), loc); !ok {
		respondError(c, http.StatusBadRequest, "无效的开始日期")
		return
	} else if parsed != nil {
		start = *parsed
	}

	stats, err := a.habits.Calendar(c.Request.Context(), c.Param("id"), actorID(c), start, end)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (a *API) parseHabitInput(c *gin.Context) (service.HabitInput, bool) {
	var payload habitPayload
	if !bindJSON(c, &payload, "请求参数不合法") {
		return service.HabitInput{}, false
	}

	loc := a.clock.Now().Location()
	startPtr, ok := parseOptionalDate(payload.StartDate, loc)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的开始日期")
		return service.HabitInput{}, false
	}
	endPtr, ok := parseOptionalDate(payload.EndDate, loc)
	if !ok {
		respondError(c, http.StatusBadRequest, "无效的结束日期")
		return service.HabitInput{}, false
	}

	return service.HabitInput{
		Title:              payload.Title,
		Description:        payload.Description,
		Category:           payload.Category,
		Frequency:          payload.Frequency,
		TargetDays:         payload.TargetDays,
		StartDate:          startPtr,
		EndDate:            endPtr,
		StartTime:          payload.StartTime,
		EndTime:            payload.EndTime,
		NotifyEnabled:      payload.NotifyEnabled,
		NotifyStart:        payload.NotifyStart,
		NotifyEnd:          payload.NotifyEnd,
		EndReminderMinutes: payload.EndReminderMinutes,
		Tags:               payload.Tags,
	}, true
}

func habitsToPayload(habits []db.Habit) []gin.H {
	items := make([]gin.H, 0, len(habits))
	for _, habit := range habits {
		items = append(items, habitToPayload(habit))
	}
	return items
}

func habitToPayload(habit db.Habit) gin.H {
	tags := []string(habit.Tags)
	if tags == nil {
		tags = []string{}
	}

	item := gin.H{
		"id":                   habit.ID,
		"title":                habit.Title,
		"description":          habit.Description,
		"category":             habit.Category,
		"frequency":            habit.Frequency,
		"target_days":          habit.TargetDays,
		"start_date":           habit.StartDate.Format(dateFormat),
		"start_time":           habit.StartTime,
		"end_time":             habit.EndTime,
		"notify_enabled":       habit.NotifyEnabled,
		"notify_start":         habit.NotifyStart,
		"notify_end":           habit.NotifyEnd,
		"end_reminder_minutes": habit.EndReminderMinutes,
		"streak":               habit.Streak,
		"streak_goal":          habit.StreakGoal,
		"progress":             habit.Progress,
		"completed":            habit.Completed,
		"tags":                 tags,
	}

	if habit.EndDate != nil {
		item["end_date"] = habit.EndDate.Format(dateFormat)
	}
	if habit.SourceKind != "" {
		item["source"] = gin.H{"kind": habit.SourceKind, "id": habit.SourceID}
	}
	if len(habit.Notes) > 0 {
		notes := make([]gin.H, 0, len(habit.Notes))
		for _, note := range habit.Notes {
			notes = append(notes, noteToPayload(note))
		}
		item["notes"] = notes
	}

	return item
}

func noteToPayload(note db.HabitNote) gin.H {
	return gin.H{
		"id":         note.ID,
		"content":    note.Content,
		"html":       service.RenderNote(note.Content),
		"created_at": note.CreatedAt.Format(time.RFC3339),
	}
}
