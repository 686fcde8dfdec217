package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/beontime/internal/clock"
	"github.com/beontime/internal/config"
	"github.com/beontime/internal/db"
	"github.com/beontime/internal/handler"
	"github.com/beontime/internal/router"
	"github.com/beontime/internal/service"
	"github.com/beontime/internal/testutil"
	"github.com/gin-gonic/gin"
)

type e2eSuite struct {
	client   httpClient
	baseURL  string
	clock    *clock.Fake
	services *service.Services
	sender   *recordingSender
	password string
	user     *db.User
}

type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type localClient struct {
	handler http.Handler
	jar     http.CookieJar
}

func newLocalClient(handler http.Handler, withJar bool) *localClient {
	var jar http.CookieJar
	if withJar {
		if j, err := cookiejar.New(nil); err == nil {
			jar = j
		}
	}
	return &localClient{handler: handler, jar: jar}
}

func (c *localClient) Do(req *http.Request) (*http.Response, error) {
	if c.jar != nil {
		for _, cookie := range c.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	resp := w.Result()
	if c.jar != nil {
		c.jar.SetCookies(req.URL, resp.Cookies())
	}
	return resp, nil
}

type recordingSender struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recordingSender) Send(_ context.Context, _ uint, subject, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	return nil
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subjects)
}

func TestE2E_HabitLifecycle(t *testing.T) {
	suite := newE2ESuite(t)
	suite.login(t)

	habitID := suite.createHabit(t)
	suite.completeWeek(t, habitID)

	t.Run("scheduler reminders", func(t *testing.T) { suite.testSchedulerReminders(t) })
	t.Run("notification inbox", func(t *testing.T) { suite.testNotificationInbox(t) })
	t.Run("metrics", func(t *testing.T) { suite.testMetrics(t) })
}

func newE2ESuite(t *testing.T) *e2eSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb := testutil.OpenDB(t)
	user, err := db.CreateUser(gdb, "admin", "e2e-secret", "admin@example.com")
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	clk := clock.NewFake(time.Date(2025, 3, 7, 8, 59, 45, 0, time.UTC))
	sender := &recordingSender{}
	services := service.NewServices(gdb, config.Default(), clk, sender)
	r := router.SetupRouter(handler.NewAPI(services, clk), "e2e-secret")

	return &e2eSuite{
		client:   newLocalClient(r, true),
		baseURL:  "http://example.test",
		clock:    clk,
		services: services,
		sender:   sender,
		password: "e2e-secret",
		user:     user,
	}
}

func (s *e2eSuite) login(t *testing.T) {
	t.Helper()

	resp := s.mustRequestJSON(t, http.MethodPost, "/api/login", map[string]interface{}{
		"username": s.user.Username,
		"password": s.password,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed, status %d", resp.StatusCode)
	}
}

func (s *e2eSuite) createHabit(t *testing.T) string {
	t.Helper()

	resp := s.mustRequestJSON(t, http.MethodPost, "/api/habits", map[string]interface{}{
		"title":                "Meditate",
		"category":             "Self-Care",
		"frequency":            "Daily",
		"target_days":          21,
		"start_date":           "2025-03-01",
		"start_time":           "09:00",
		"end_time":             "09:30",
		"notify_enabled":       true,
		"notify_start":         true,
		"notify_end":           true,
		"end_reminder_minutes": 10,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create habit failed: %d %s", resp.StatusCode, readBody(t, resp))
	}

	var payload struct {
		Habit struct {
			ID string `json:"id"`
		} `json:"habit"`
	}
	decodeJSON(t, resp, &payload)
	return payload.Habit.ID
}

// completeWeek 补录过去六天并完成今天，连胜达到 7 天
func (s *e2eSuite) completeWeek(t *testing.T, habitID string) {
	t.Helper()

	for day := 1; day <= 7; day++ {
		date := time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
		resp := s.mustRequestJSON(t, http.MethodPost, "/api/habits/"+habitID+"/complete", map[string]interface{}{"date": date})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("complete %s failed: %d %s", date, resp.StatusCode, readBody(t, resp))
		}
		resp.Body.Close()
	}

	resp := s.mustRequest(t, http.MethodGet, "/api/habits/"+habitID, nil, nil)
	var payload struct {
		Habit struct {
			Streak    int  `json:"streak"`
			Completed bool `json:"completed"`
			Progress  int  `json:"progress"`
		} `json:"habit"`
	}
	decodeJSON(t, resp, &payload)
	if payload.Habit.Streak != 7 || !payload.Habit.Completed || payload.Habit.Progress != 100 {
		t.Fatalf("unexpected derived state: %+v", payload.Habit)
	}
}

func (s *e2eSuite) testSchedulerReminders(t *testing.T) {
	ctx := context.Background()
	scheduler := s.services.Scheduler

	report := scheduler.Tick(ctx)
	if report.Dispatched != 2 {
		t.Fatalf("expected start reminder and streak milestone, got %+v", report)
	}

	report = scheduler.Tick(ctx)
	if report.Dispatched != 0 || report.Skipped != 2 {
		t.Fatalf("expected repeated tick to be deduplicated, got %+v", report)
	}

	s.clock.Set(time.Date(2025, 3, 7, 9, 20, 0, 0, time.UTC))
	report = scheduler.Tick(ctx)
	if report.Dispatched != 1 {
		t.Fatalf("expected ending reminder, got %+v", report)
	}
}

func (s *e2eSuite) testNotificationInbox(t *testing.T) {
	resp := s.mustRequest(t, http.MethodGet, "/api/notifications", nil, nil)
	var list struct {
		Notifications []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
			Read bool   `json:"read"`
		} `json:"notifications"`
		Unread int `json:"unread"`
	}
	decodeJSON(t, resp, &list)

	if list.Unread != 10 || len(list.Notifications) != 10 {
		t.Fatalf("expected 7 completion notices plus 3 reminders, got unread=%d items=%d", list.Unread, len(list.Notifications))
	}
	seen := map[string]int{}
	for _, n := range list.Notifications {
		seen[n.Type]++
	}
	if seen[db.NotificationHabitCompletion] != 7 || seen[db.NotificationHabitStart] != 1 ||
		seen[db.NotificationHabitEnd] != 1 || seen[db.NotificationStreakAchievement] != 1 {
		t.Fatalf("unexpected notification types: %v", seen)
	}
	if s.sender.count() != 10 {
		t.Fatalf("expected every notification to be delivered, got %d", s.sender.count())
	}

	resp = s.mustRequest(t, http.MethodPost, "/api/notifications/"+list.Notifications[0].ID+"/read", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark read failed: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = s.mustRequest(t, http.MethodPost, "/api/notifications/read-all", nil, nil)
	var marked struct {
		Updated int `json:"updated"`
	}
	decodeJSON(t, resp, &marked)
	if marked.Updated != 9 {
		t.Fatalf("expected 9 notifications to be marked read, got %d", marked.Updated)
	}
}

func (s *e2eSuite) testMetrics(t *testing.T) {
	resp := s.mustRequest(t, http.MethodGet, "/metrics", nil, nil)
	body := readBody(t, resp)
	for _, want := range []string{
		`beontime_reminders_dispatched_total{class="start"}`,
		`beontime_reminders_dispatched_total{class="end_approaching"}`,
		`beontime_habit_completions_total{outcome="completed"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected metrics to contain %s", want)
		}
	}
}

func (s *e2eSuite) mustRequest(t *testing.T, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		t.Fatalf("failed to build request %s %s: %v", method, path, err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	return resp
}

func (s *e2eSuite) mustRequestJSON(t *testing.T, method, path string, payload map[string]interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	headers := map[string]string{"Content-Type": "application/json"}
	return s.mustRequest(t, method, path, bytes.NewReader(data), headers)
}

func decodeJSON(t *testing.T, resp *http.Response, dst interface{}) {
	t.Helper()
	body := readBody(t, resp)
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		t.Fatalf("failed to decode json: %v\nbody=%s", err, body)
	}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(data)
}
