package dispatchserver

import (
	"html/template"
	"net/http"
)

// homeTempl renders the dashboard's single HTML page: a status line and a
// minimal JavaScript websocket client wired to /ws, in place of the
// statik-embedded asset pipeline, which needs a code generator this module
// does not run.
var homeTempl = template.Must(template.New("home").Parse(homePageSource))

const homePageSource = `<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Description}}</p>
<p id="status">disconnected</p>
<pre id="log"></pre>
<script>
(function() {
  var ws = new WebSocket({{.Host}});
  var status = document.getElementById("status");
  var log = document.getElementById("log");
  ws.onopen = function() { status.textContent = "connected"; };
  ws.onclose = function() { status.textContent = "disconnected"; };
  ws.onmessage = function(ev) { log.textContent += ev.data + "\n"; };
})();
</script>
</body>
</html>
`

type homePageData struct {
	Title       string
	Description string
	Host        template.JS
}

// serveHome renders the dashboard at "/": a status line and a websocket
// client pointed at /ws, letting a dispatcher watch solve progress without a
// separate front-end build.
func (s *Server) serveHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := homePageData{
		Title:       "mbsolve dispatch",
		Description: "Moving-block dispatch solver status",
		Host:        template.JS("\"ws://" + r.Host + "/ws\""),
	}
	_ = homeTempl.Execute(w, data)
}
