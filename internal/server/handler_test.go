package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"running-tracker/internal/model"
	"running-tracker/internal/repository"
	"running-tracker/internal/service"
)

type apiFixture struct {
	router *gin.Engine
	users  *repository.UserRepository
	db     *gorm.DB
	userID string
	token  string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	users := repository.NewUserRepository(db)
	schedules := repository.NewScheduleRepository(db)
	codes := repository.NewLinkingRepository(db)
	linking := service.NewLinkingService(users, codes, zap.NewNop())

	user := &model.User{Email: "runner@example.com", DisplayName: "runner"}
	if err := users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	handler := NewHandler(users, schedules, linking, zap.NewNop())

	router := gin.New()
	api := router.Group("/api/v1", JWTAuth(testSecret))
	api.POST("/line/linking-code", handler.GenerateLinkingCode)
	api.POST("/schedules", handler.CreateSchedule)
	api.GET("/schedules", handler.ListSchedules)
	api.PUT("/notification-preferences", handler.UpdatePreferences)

	return &apiFixture{
		router: router,
		users:  users,
		db:     db,
		userID: user.ID,
		token:  signToken(t, testSecret, user.ID),
	}
}

func (f *apiFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestCreateSchedule_Validation(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{
			"valid one-off",
			`{"title":"朝ラン","scheduledAt":"2026-03-02T18:00","timezone":"Asia/Tokyo"}`,
			http.StatusCreated,
		},
		{
			"valid weekly",
			`{"title":"週ラン","scheduledAt":"2026-03-02T18:00","timezone":"Asia/Tokyo","recurrenceType":"weekly","daysOfWeek":[1,3]}`,
			http.StatusCreated,
		},
		{
			"weekly without weekdays",
			`{"title":"x","scheduledAt":"2026-03-02T18:00","timezone":"Asia/Tokyo","recurrenceType":"weekly"}`,
			http.StatusBadRequest,
		},
		{
			"missing title",
			`{"scheduledAt":"2026-03-02T18:00","timezone":"Asia/Tokyo"}`,
			http.StatusBadRequest,
		},
		{
			"bad timezone",
			`{"title":"x","scheduledAt":"2026-03-02T18:00","timezone":"Nowhere/Here"}`,
			http.StatusBadRequest,
		},
		{
			"bad weekday value",
			`{"title":"x","scheduledAt":"2026-03-02T18:00","timezone":"Asia/Tokyo","recurrenceType":"weekly","daysOfWeek":[7]}`,
			http.StatusBadRequest,
		},
		{
			"unknown recurrence",
			`{"title":"x","scheduledAt":"2026-03-02T18:00","timezone":"Asia/Tokyo","recurrenceType":"hourly"}`,
			http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/v1/schedules", tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body: %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
		})
	}

	rec := f.do(t, http.MethodGet, "/api/v1/schedules", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var runs []model.ScheduledRun
	if err := json.Unmarshal(rec.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("stored schedules = %d, want the 2 valid ones", len(runs))
	}
}

func TestGenerateLinkingCodeEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/line/linking-code", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (body: %s)", rec.Code, rec.Body.String())
	}

	var payload struct {
		Code      string `json:"code"`
		ExpiresAt string `json:"expiresAt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !regexp.MustCompile(`^[A-Z2-9]{8}$`).MatchString(payload.Code) {
		t.Fatalf("code = %q, want 8 uppercase letters/digits", payload.Code)
	}
	if payload.ExpiresAt == "" {
		t.Fatal("expiresAt missing")
	}
}

func TestUpdatePreferences_RejectsUnknownLead(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPut, "/api/v1/notification-preferences", `{"reminderMinutesBefore":45}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/api/v1/notification-preferences", `{"reminderMinutesBefore":120,"enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body: %s)", rec.Code, rec.Body.String())
	}

	user, err := f.users.FindByID(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if user.Notifications.ReminderMinutesBefore != 120 || user.Notifications.Enabled {
		t.Fatalf("preferences not stored: %+v", user.Notifications)
	}
}
