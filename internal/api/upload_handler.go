package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"syllabusai/internal/analysis"
	"syllabusai/internal/api/middleware"
	"syllabusai/internal/database"
	"syllabusai/internal/genai"
	"syllabusai/internal/scan"
	"syllabusai/internal/uploads"
)

// UploadHandler drives the upload form through staging, validation and analysis.
type UploadHandler struct {
	svc            *analysis.Service
	maxUploadBytes int64
}

// NewUploadHandler builds an UploadHandler.
func NewUploadHandler(svc *analysis.Service, maxUploadBytes int64) *UploadHandler {
	return &UploadHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// ShowUpload renders the upload form.
func (h *UploadHandler) ShowUpload(c *gin.Context) {
	renderPage(c, http.StatusOK, "upload.html", gin.H{
		"AIAvailable": h.svc.AIAvailable(),
		"Extensions":  ".pdf,.doc,.docx,.txt",
	})
}

// Upload stages the file and asks the AI whether it is a syllabus.
func (h *UploadHandler) Upload(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(identity.UserID)))

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			redirectWithFlash(c, http.StatusSeeOther, "/upload", flashDanger, "File is too large")
			return
		}
		redirectWithFlash(c, http.StatusSeeOther, "/upload", flashDanger, "No file part")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		redirectWithFlash(c, http.StatusSeeOther, "/upload", flashDanger, "No selected file")
		return
	}

	ctx := c.Request.Context()
	sess, err := h.svc.Stage(ctx, analysis.Upload{
		UserID:        identity.UserID,
		Username:      identity.Username,
		Filename:      header.Filename,
		Size:          header.Size,
		Body:          file,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		switch {
		case errors.Is(err, analysis.ErrNoFile):
			redirectWithFlash(c, http.StatusSeeOther, "/upload", flashDanger, "No selected file")
		case errors.Is(err, analysis.ErrExtensionNotAllowed):
			redirectWithFlash(c, http.StatusSeeOther, "/upload", flashDanger, "File type not allowed. Upload a pdf, doc, docx or txt file.")
		case errors.Is(err, scan.ErrInfected):
			logger.Warn("infected upload rejected", slog.String("filename", header.Filename))
			redirectWithFlash(c, http.StatusSeeOther, "/upload", flashDanger, "Malicious file detected")
		default:
			logger.Error("stage upload failed", slog.Any("error", err))
			redirectWithFlash(c, http.StatusSeeOther, "/upload", flashDanger, "Could not store the upload, please try again")
		}
		return
	}

	if _, err := h.svc.Validate(ctx, sess.ID, identity.UserID); err != nil {
		switch {
		case errors.Is(err, analysis.ErrNotSyllabus):
			redirectWithFlash(c, http.StatusSeeOther, "/upload", flashDanger, "The uploaded file does not look like a course syllabus.")
		default:
			h.flashPipelineError(c, logger, "validate", err)
			c.Redirect(http.StatusSeeOther, "/upload")
		}
		return
	}

	redirectWithFlash(c, http.StatusSeeOther, "/upload/"+sess.ID, flashSuccess, "Syllabus accepted. Add the course details.")
}

// ShowDetails renders the course details form for a validated session.
func (h *UploadHandler) ShowDetails(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	sess, ok := h.loadSession(c, identity.UserID)
	if !ok {
		return
	}
	if uploads.State(sess.State) != uploads.Validated {
		redirectWithFlash(c, http.StatusSeeOther, "/upload", flashInfo, "This upload is no longer awaiting details.")
		return
	}

	renderPage(c, http.StatusOK, "details.html", gin.H{
		"Session":    sess,
		"CourseName": strings.TrimSuffix(sess.OriginalName, "."+sess.Extension),
	})
}

// Analyze runs summary, resources and calendar generation and stores the result.
func (h *UploadHandler) Analyze(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("user_id", uint64(identity.UserID)))
	sessionID := c.Param("id")
	detailsURL := "/upload/" + sessionID

	start, err := parseOptionalDate(c.PostForm("semester_start"))
	if err != nil {
		redirectWithFlash(c, http.StatusSeeOther, detailsURL, flashDanger, "Semester start must be a date (YYYY-MM-DD)")
		return
	}
	end, err := parseOptionalDate(c.PostForm("semester_end"))
	if err != nil {
		redirectWithFlash(c, http.StatusSeeOther, detailsURL, flashDanger, "Semester end must be a date (YYYY-MM-DD)")
		return
	}
	if start != nil && end != nil && end.Before(*start) {
		redirectWithFlash(c, http.StatusSeeOther, detailsURL, flashDanger, "Semester end must not be before its start")
		return
	}

	result, err := h.svc.Analyze(c.Request.Context(), analysis.Request{
		SessionID:     sessionID,
		UserID:        identity.UserID,
		CourseName:    strings.TrimSpace(c.PostForm("course_name")),
		SemesterStart: start,
		SemesterEnd:   end,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			redirectWithFlash(c, http.StatusSeeOther, "/upload", flashDanger, "Upload not found")
			return
		}
		var transitionErr *uploads.TransitionError
		if errors.As(err, &transitionErr) {
			redirectWithFlash(c, http.StatusSeeOther, "/upload", flashInfo, "This upload is no longer awaiting details.")
			return
		}
		h.flashPipelineError(c, logger, "analyze", err)
		c.Redirect(http.StatusSeeOther, "/upload")
		return
	}

	redirectWithFlash(c, http.StatusSeeOther, "/classes/"+strconv.FormatUint(uint64(result.ID), 10), flashSuccess, "Syllabus analyzed!")
}

// Cancel abandons a staged upload.
func (h *UploadHandler) Cancel(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	if err := h.svc.Cancel(c.Request.Context(), c.Param("id"), identity.UserID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		middleware.LoggerFromContext(c).Error("cancel upload failed", slog.Any("error", err))
	}
	redirectWithFlash(c, http.StatusSeeOther, "/upload", flashInfo, "Upload cancelled")
}

// Status reports the session state as JSON for clients without a websocket.
func (h *UploadHandler) Status(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	sess, err := h.svc.Sessions().GetForUser(c.Request.Context(), c.Param("id"), identity.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			NotFound(c, "upload not found")
			return
		}
		Internal(c, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":        sess.ID,
		"state":     sess.State,
		"error":     sess.Error,
		"result_id": sess.ResultID,
	})
}

func (h *UploadHandler) loadSession(c *gin.Context, userID uint) (*database.UploadSession, bool) {
	sess, err := h.svc.Sessions().GetForUser(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.LoggerFromContext(c).Error("load upload session failed", slog.Any("error", err))
		}
		redirectWithFlash(c, http.StatusSeeOther, "/upload", flashDanger, "Upload not found")
		return nil, false
	}
	return sess, true
}

func (h *UploadHandler) flashPipelineError(c *gin.Context, logger *slog.Logger, step string, err error) {
	logger.Error("analysis pipeline failed", slog.String("step", step), slog.Any("error", err))
	switch {
	case errors.Is(err, genai.ErrUnavailable):
		addFlash(c, flashDanger, "The AI service is not configured. Contact the administrator.")
		return
	case errors.Is(err, genai.ErrEmptyDocument):
		addFlash(c, flashDanger, "The document contains no text.")
		return
	}
	addFlash(c, flashDanger, "Could not analyze the document, please upload it again.")
}

func parseOptionalDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, value, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
