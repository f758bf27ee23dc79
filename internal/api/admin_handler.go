package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"syllabusai/internal/api/middleware"
	"syllabusai/internal/database"
	"syllabusai/internal/uploads"
)

// AdminHandler renders the read-only admin overview.
type AdminHandler struct {
	db          *gorm.DB
	sessions    *uploads.Store
	aiAvailable bool
}

// NewAdminHandler builds an AdminHandler.
func NewAdminHandler(db *gorm.DB, sessions *uploads.Store, aiAvailable bool) *AdminHandler {
	return &AdminHandler{db: db, sessions: sessions, aiAvailable: aiAvailable}
}

type stateCount struct {
	State uploads.State
	Count int64
}

// Overview lists accounts, the result total and upload sessions per state.
func (h *AdminHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	users, err := database.ListUsers(ctx, h.db)
	if err != nil {
		logger.Error("list users failed", slog.Any("error", err))
		renderPage(c, http.StatusInternalServerError, "error.html", gin.H{"Message": "Could not load the admin overview."})
		return
	}
	results, err := database.CountResults(ctx, h.db)
	if err != nil {
		logger.Error("count results failed", slog.Any("error", err))
		renderPage(c, http.StatusInternalServerError, "error.html", gin.H{"Message": "Could not load the admin overview."})
		return
	}
	byState, err := h.sessions.CountByState(ctx)
	if err != nil {
		logger.Error("count sessions failed", slog.Any("error", err))
		renderPage(c, http.StatusInternalServerError, "error.html", gin.H{"Message": "Could not load the admin overview."})
		return
	}

	states := make([]stateCount, 0, len(byState))
	for state, count := range byState {
		states = append(states, stateCount{State: state, Count: count})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].State < states[j].State })

	renderPage(c, http.StatusOK, "admin.html", gin.H{
		"Users":       users,
		"ResultCount": results,
		"States":      states,
		"AIAvailable": h.aiAvailable,
	})
}

// SessionHistory shows the recorded transitions of one upload session.
func (h *AdminHandler) SessionHistory(c *gin.Context) {
	ctx := c.Request.Context()
	sess, err := h.sessions.Get(ctx, c.Param("id"))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.LoggerFromContext(c).Error("load session failed", slog.Any("error", err))
		}
		redirectWithFlash(c, http.StatusSeeOther, "/admin", flashDanger, "Upload session not found")
		return
	}
	history, err := h.sessions.History(ctx, sess.ID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("load session history failed", slog.Any("error", err))
		renderPage(c, http.StatusInternalServerError, "error.html", gin.H{"Message": "Could not load the session history."})
		return
	}
	renderPage(c, http.StatusOK, "admin_session.html", gin.H{"Session": sess, "History": history})
}
