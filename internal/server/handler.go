package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"running-tracker/internal/model"
	"running-tracker/internal/repository"
	"running-tracker/internal/service"
)

// Handler serves the client-facing API: LINE linking, notification
// preferences and scheduled-run CRUD.
type Handler struct {
	users     *repository.UserRepository
	schedules *repository.ScheduleRepository
	linking   *service.LinkingService
	log       *zap.Logger
}

func NewHandler(users *repository.UserRepository, schedules *repository.ScheduleRepository, linking *service.LinkingService, log *zap.Logger) *Handler {
	return &Handler{users: users, schedules: schedules, linking: linking, log: log}
}

// GenerateLinkingCode issues a fresh pairing code for the caller.
func (h *Handler) GenerateLinkingCode(c *gin.Context) {
	code, err := h.linking.GenerateCode(c.Request.Context(), userID(c), time.Now())
	if err != nil {
		h.log.Error("generate linking code", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate linking code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":      code.Code,
		"expiresAt": code.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// DisconnectLine removes the caller's LINE link.
func (h *Handler) DisconnectLine(c *gin.Context) {
	if err := h.linking.Disconnect(c.Request.Context(), userID(c)); err != nil {
		h.log.Error("disconnect line", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type preferencesPayload struct {
	Enabled                   *bool `json:"enabled"`
	ReminderMinutesBefore     *int  `json:"reminderMinutesBefore"`
	NotifyOnScheduleCreated   *bool `json:"notifyOnScheduleCreated"`
	NotifyOnScheduleCompleted *bool `json:"notifyOnScheduleCompleted"`
}

func (h *Handler) GetPreferences(c *gin.Context) {
	user, err := h.users.FindByID(c.Request.Context(), userID(c))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"enabled":                   user.Notifications.Enabled,
		"reminderMinutesBefore":     user.Notifications.ReminderMinutesBefore,
		"notifyOnScheduleCreated":   user.Notifications.NotifyOnScheduleCreated,
		"notifyOnScheduleCompleted": user.Notifications.NotifyOnScheduleCompleted,
	})
}

func (h *Handler) UpdatePreferences(c *gin.Context) {
	var payload preferencesPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), userID(c))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load preferences"})
		return
	}

	prefs := user.Notifications
	if payload.Enabled != nil {
		prefs.Enabled = *payload.Enabled
	}
	if payload.ReminderMinutesBefore != nil {
		if !model.ValidReminderLead(*payload.ReminderMinutesBefore) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported reminderMinutesBefore"})
			return
		}
		prefs.ReminderMinutesBefore = *payload.ReminderMinutesBefore
	}
	if payload.NotifyOnScheduleCreated != nil {
		prefs.NotifyOnScheduleCreated = *payload.NotifyOnScheduleCreated
	}
	if payload.NotifyOnScheduleCompleted != nil {
		prefs.NotifyOnScheduleCompleted = *payload.NotifyOnScheduleCompleted
	}

	if err := h.users.UpdatePreferences(c.Request.Context(), user.ID, prefs); err != nil {
		h.log.Error("update preferences", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update preferences"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type schedulePayload struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	ScheduledAt    string  `json:"scheduledAt"`
	Timezone       string  `json:"timezone"`
	RecurrenceType string  `json:"recurrenceType"`
	DaysOfWeek     []int   `json:"daysOfWeek"`
	DistanceKm     float64 `json:"targetDistanceKm"`
	PaceMinKm      float64 `json:"targetPaceMinKm"`
	DurationMin    int     `json:"targetDurationMin"`
}

func (p *schedulePayload) validate() string {
	if p.Title == "" {
		return "title is required"
	}
	if p.RecurrenceType == "" {
		p.RecurrenceType = model.RecurrenceNone
	}
	switch p.RecurrenceType {
	case model.RecurrenceNone, model.RecurrenceDaily, model.RecurrenceWeekly, model.RecurrenceCustom:
	default:
		return "unknown recurrenceType"
	}
	if p.RecurrenceType == model.RecurrenceWeekly && len(p.DaysOfWeek) == 0 {
		return "weekly recurrence requires daysOfWeek"
	}
	for _, d := range p.DaysOfWeek {
		if d < 0 || d > 6 {
			return "daysOfWeek values must be 0-6"
		}
	}
	if _, err := service.ParseScheduledAt(p.ScheduledAt, p.Timezone); err != nil {
		return "invalid scheduledAt or timezone"
	}
	return ""
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var payload schedulePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if msg := payload.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	run := &model.ScheduledRun{
		UserID:         userID(c),
		Title:          payload.Title,
		Description:    payload.Description,
		ScheduledAt:    payload.ScheduledAt,
		Timezone:       payload.Timezone,
		RecurrenceType: payload.RecurrenceType,
		DaysOfWeek:     model.EncodeWeekdays(payload.DaysOfWeek),
		Goal: model.RunGoal{
			DistanceKm:  payload.DistanceKm,
			PaceMinKm:   payload.PaceMinKm,
			DurationMin: payload.DurationMin,
		},
		IsActive: true,
	}
	if err := h.schedules.Create(c.Request.Context(), run); err != nil {
		h.log.Error("create schedule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create schedule"})
		return
	}
	c.JSON(http.StatusCreated, run)
}

func (h *Handler) ListSchedules(c *gin.Context) {
	runs, err := h.schedules.ListByUser(c.Request.Context(), userID(c))
	if err != nil {
		h.log.Error("list schedules", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list schedules"})
		return
	}
	c.JSON(http.StatusOK, runs)
}

type scheduleUpdatePayload struct {
	Title          *string  `json:"title"`
	Description    *string  `json:"description"`
	ScheduledAt    *string  `json:"scheduledAt"`
	Timezone       *string  `json:"timezone"`
	RecurrenceType *string  `json:"recurrenceType"`
	DaysOfWeek     *[]int   `json:"daysOfWeek"`
	DistanceKm     *float64 `json:"targetDistanceKm"`
	PaceMinKm      *float64 `json:"targetPaceMinKm"`
	DurationMin    *int     `json:"targetDurationMin"`
	IsActive       *bool    `json:"isActive"`
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	var payload scheduleUpdatePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	run, err := h.schedules.FindByID(c.Request.Context(), userID(c), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load schedule"})
		return
	}

	if payload.Title != nil {
		run.Title = *payload.Title
	}
	if payload.Description != nil {
		run.Description = *payload.Description
	}
	if payload.ScheduledAt != nil {
		run.ScheduledAt = *payload.ScheduledAt
	}
	if payload.Timezone != nil {
		run.Timezone = *payload.Timezone
	}
	if payload.RecurrenceType != nil {
		run.RecurrenceType = *payload.RecurrenceType
	}
	if payload.DaysOfWeek != nil {
		run.DaysOfWeek = model.EncodeWeekdays(*payload.DaysOfWeek)
	}
	if payload.DistanceKm != nil {
		run.Goal.DistanceKm = *payload.DistanceKm
	}
	if payload.PaceMinKm != nil {
		run.Goal.PaceMinKm = *payload.PaceMinKm
	}
	if payload.DurationMin != nil {
		run.Goal.DurationMin = *payload.DurationMin
	}
	if payload.IsActive != nil {
		run.IsActive = *payload.IsActive
	}

	check := schedulePayload{
		Title:          run.Title,
		ScheduledAt:    run.ScheduledAt,
		Timezone:       run.Timezone,
		RecurrenceType: run.RecurrenceType,
		DaysOfWeek:     run.Weekdays(),
	}
	if msg := check.validate(); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.schedules.Save(c.Request.Context(), run); err != nil {
		h.log.Error("update schedule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update schedule"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) DeleteSchedule(c *gin.Context) {
	if err := h.schedules.Delete(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		h.log.Error("delete schedule", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete schedule"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
