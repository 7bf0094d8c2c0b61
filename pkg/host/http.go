package host

import (
	"encoding/json"
	"html/template"
	"net/http"
	"time"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="{{.Refresh}}">
<title>taskwall</title>
{{with .Stylesheet}}<link rel="stylesheet" href="{{.}}">
{{end}}
<style>
body { background: #000; color: #aaa; font-family: sans-serif; }
.wunderlist .bright { color: #fff; }
.wunderlist .module-header { border-bottom: 1px solid #666; text-transform: uppercase; }
.wunderlist.spaced td { padding: 0.25em 0.5em; }
.wunderlist .assignee { font-size: 0.8em; }
</style>
</head>
<body>
{{.Widget}}
</body>
</html>
`))

type page struct {
	Refresh    int
	Stylesheet string
	Widget     template.HTML
}

type health struct {
	Renders      int    `json:"renders"`
	LastRendered string `json:"last_rendered,omitempty"`
}

// Handler serves the dashboard page at /, the bare table at /widget and a
// render counter at /healthz. The page reloads every refresh and links
// stylesheet for the glyphs when it is set.
func (h *Host) Handler(refresh time.Duration, stylesheet string) http.Handler {
	seconds := int(refresh / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		// the widget markup is built from escaped nodes
		data := page{Refresh: seconds, Stylesheet: stylesheet, Widget: template.HTML(h.Markup())}
		if err := pageTemplate.Execute(w, data); err != nil {
			h.logger.Warn("page render failed", "err", err)
		}
	})
	mux.HandleFunc("/widget", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(h.Markup()))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		count, at := h.Renders()
		body := health{Renders: count}
		if !at.IsZero() {
			body.LastRendered = at.UTC().Format(time.RFC3339)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	})
	return mux
}
