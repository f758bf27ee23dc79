package api

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"syllabusai/internal/api/middleware"
	"syllabusai/internal/calendar"
	"syllabusai/internal/database"
	"syllabusai/internal/export"
	"syllabusai/internal/pdf"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ClassHandler serves stored results: dashboard, detail, downloads.
type ClassHandler struct {
	db        *gorm.DB
	pdf       pdf.Renderer
	templates *template.Template
}

// NewClassHandler builds a ClassHandler. templates is used to print the
// detail page for PDF export.
func NewClassHandler(db *gorm.DB, renderer pdf.Renderer, templates *template.Template) *ClassHandler {
	if renderer == nil {
		renderer = pdf.Disabled{}
	}
	return &ClassHandler{db: db, pdf: renderer, templates: templates}
}

// Index renders the landing page with the most recent result, if any.
func (h *ClassHandler) Index(c *gin.Context) {
	data := gin.H{}
	if identity, ok := middleware.CurrentIdentity(c); ok {
		latest, err := database.LatestResult(c.Request.Context(), h.db, identity.UserID)
		switch {
		case err == nil:
			data["Latest"] = latest
		case !errors.Is(err, gorm.ErrRecordNotFound):
			middleware.LoggerFromContext(c).Error("load latest result failed", slog.Any("error", err))
		}
	}
	renderPage(c, http.StatusOK, "index.html", data)
}

// List renders the dashboard of the user's results, most recent first.
func (h *ClassHandler) List(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	results, err := database.ListResults(c.Request.Context(), h.db, identity.UserID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list results failed", slog.Any("error", err))
		renderPage(c, http.StatusInternalServerError, "error.html", gin.H{"Message": "Could not load your classes."})
		return
	}
	renderPage(c, http.StatusOK, "classes.html", gin.H{"Results": results})
}

// Show renders one result.
func (h *ClassHandler) Show(c *gin.Context) {
	result, ok := h.loadResult(c)
	if !ok {
		return
	}
	renderPage(c, http.StatusOK, "class.html", gin.H{"Result": result})
}

// DownloadCalendar serves the stored calendar bytes unchanged.
func (h *ClassHandler) DownloadCalendar(c *gin.Context) {
	result, ok := h.loadResult(c)
	if !ok {
		return
	}
	if !result.HasCalendar() {
		redirectWithFlash(c, http.StatusSeeOther, classURL(result.ID), flashInfo, "No calendar was generated for this class.")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, calendar.Filename(result.CourseName)))
	c.Data(http.StatusOK, calendar.ContentType, result.Calendar)
}

// ExportXLSX downloads the dashboard as a spreadsheet.
func (h *ClassHandler) ExportXLSX(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	logger := middleware.LoggerFromContext(c)

	results, err := database.ListResults(c.Request.Context(), h.db, identity.UserID)
	if err != nil {
		logger.Error("list results failed", slog.Any("error", err))
		redirectWithFlash(c, http.StatusSeeOther, "/classes", flashDanger, "Export failed, please try again")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, results); err != nil {
		logger.Error("write xlsx failed", slog.Any("error", err))
		redirectWithFlash(c, http.StatusSeeOther, "/classes", flashDanger, "Export failed, please try again")
		return
	}

	c.Header("Content-Disposition", `attachment; filename="classes.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ExportPDF prints the detail page with a headless browser.
func (h *ClassHandler) ExportPDF(c *gin.Context) {
	result, ok := h.loadResult(c)
	if !ok {
		return
	}
	logger := middleware.LoggerFromContext(c).With(slog.Uint64("result_id", uint64(result.ID)))

	var page bytes.Buffer
	if err := h.templates.ExecuteTemplate(&page, "class_print.html", gin.H{"Result": result}); err != nil {
		logger.Error("render print page failed", slog.Any("error", err))
		redirectWithFlash(c, http.StatusSeeOther, classURL(result.ID), flashDanger, "PDF export failed")
		return
	}

	data, err := h.pdf.Render(c.Request.Context(), page.String())
	if err != nil {
		if errors.Is(err, pdf.ErrDisabled) {
			redirectWithFlash(c, http.StatusSeeOther, classURL(result.ID), flashInfo, "PDF export is not enabled on this server.")
			return
		}
		logger.Error("render pdf failed", slog.Any("error", err))
		redirectWithFlash(c, http.StatusSeeOther, classURL(result.ID), flashDanger, "PDF export failed")
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.pdf"`, calendar.SafeName(result.CourseName)))
	c.Data(http.StatusOK, "application/pdf", data)
}

// loadResult resolves :id for the current user. Unknown ids and results of
// other users both send the browser back to the dashboard.
func (h *ClassHandler) loadResult(c *gin.Context) (*database.Result, bool) {
	identity, _ := middleware.CurrentIdentity(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		redirectWithFlash(c, http.StatusSeeOther, "/classes", flashDanger, "Class not found")
		return nil, false
	}

	result, err := database.GetResultForUser(c.Request.Context(), h.db, uint(id), identity.UserID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			middleware.LoggerFromContext(c).Error("load result failed", slog.Any("error", err))
		}
		redirectWithFlash(c, http.StatusSeeOther, "/classes", flashDanger, "Class not found")
		return nil, false
	}
	return result, true
}

func classURL(id uint) string {
	return "/classes/" + strconv.FormatUint(uint64(id), 10)
}
