package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/MrSnakeDoc/together/internal/auth"
	"github.com/MrSnakeDoc/together/internal/httpserver/deps"
	"github.com/MrSnakeDoc/together/internal/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

// Raw HTML in entries is dropped by the renderer (no WithUnsafe).
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

var funcs = template.FuncMap{
	"markdown": renderMarkdown,
	"bytes":    func(n int64) string { return humanize.IBytes(uint64(n)) },
}

var pages = map[string]*template.Template{}

func init() {
	for _, name := range []string{"login", "home", "journal", "entry_form", "view_entry", "gallery"} {
		pages[name] = template.Must(template.New("base.html").Funcs(funcs).ParseFS(templateFS,
			"templates/base.html", "templates/"+name+".html"))
	}
}

func renderMarkdown(src string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(buf.String())
}

// view is what every page template receives.
type view struct {
	Title    string
	Site     string
	Names    string
	Flash    string
	Year     int
	LoggedIn bool
	Data     any
}

func newView(d deps.Deps, w http.ResponseWriter, r *http.Request, title string, data any) view {
	return view{
		Title:    title,
		Site:     d.Profile.Title,
		Names:    d.Profile.Names(),
		Flash:    auth.PopFlash(w, r),
		Year:     d.Calendar.Now().Year(),
		LoggedIn: d.Sessions.Valid(r),
		Data:     data,
	}
}

func render(d deps.Deps, w http.ResponseWriter, status int, name string, v view) {
	tmpl, ok := pages[name]
	if !ok {
		d.Logger.Error("unknown template", logger.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		d.Logger.Error("failed to render page", logger.String("template", name), logger.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirect sets msg as the flash message, if any, and sends the browser to
// target with 303 so that a POST is never replayed.
func redirect(w http.ResponseWriter, r *http.Request, target, msg string) {
	if msg != "" {
		auth.SetFlash(w, msg)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
