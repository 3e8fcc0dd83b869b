package server

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/brojonat/solanapredict/service/idl"
	"github.com/brojonat/solanapredict/service/program"
	"github.com/brojonat/solanapredict/service/solana"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Document-level metadata shared by every page.
const (
	SiteTitle       = "SolanaPredict"
	SiteDescription = "A decentralized prediction market built on Solana where users can bet on real-world events with cryptocurrency."
	ConnectPrompt   = "Connect your wallet to get started."
)

// TemplateRenderer holds parsed HTML templates
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

// NewTemplateRenderer creates a new template renderer from embedded files
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &TemplateRenderer{
		templates: tmpl,
		logger:    logger,
	}, nil
}

// Render renders a template with the given data
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data interface{}) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tr.templates.ExecuteTemplate(w, name, data)
}

// pageData is what the layout and every page template see.
type pageData struct {
	Title         string
	Description   string
	ConnectPrompt string
	Network       string
	IDLProgramID  string
	Status        program.Status
}

// handleLandingPage serves the landing view inside the root shell.
func handleLandingPage(renderer *TemplateRenderer, sessions *SessionStore, conn *solana.Connection, doc *idl.IDL) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData{
			Title:         SiteTitle,
			Description:   SiteDescription,
			ConnectPrompt: ConnectPrompt,
			Network:       conn.Network(),
			IDLProgramID:  doc.ProgramID().String(),
		}
		if sess := sessions.FromRequest(w, r, false); sess != nil {
			data.Status = sess.Status(conn)
		}

		if err := renderer.Render(w, "landing.html", data); err != nil {
			renderer.logger.Error("failed to render template", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}
