package api

import (
	"embed"
	"html/template"
	"time"

	"github.com/gin-gonic/gin"

	"syllabusai/internal/api/middleware"
	"syllabusai/internal/database"
	"syllabusai/internal/render"
)

//go:embed templates/*.html
var templateFS embed.FS

const dateLayout = "2006-01-02"

var templateFuncs = template.FuncMap{
	"markdown": render.Markdown,
	"date": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format(dateLayout)
	},
	"datetime": func(t time.Time) string {
		return t.UTC().Format("2006-01-02 15:04 UTC")
	},
}

// loadTemplates parses the embedded page templates. Every page executes the
// "header" and "footer" blocks from layout.html.
func loadTemplates() *template.Template {
	return template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html"))
}

// renderPage adds the logged in user and pending flashes to data.
func renderPage(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["Flashes"] = popFlashes(c)
	if identity, ok := middleware.CurrentIdentity(c); ok {
		data["User"] = identity
		data["IsAdmin"] = identity.Role == database.RoleAdmin
	}
	c.HTML(status, name, data)
}
