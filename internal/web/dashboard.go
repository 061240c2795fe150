package web

import (
	"html/template"
	"net/http"
)

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>PasteShield</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #1f2933; }
table { border-collapse: collapse; width: 100%; }
td, th { border-bottom: 1px solid #e4e7eb; padding: .4rem; text-align: left; font-size: .9rem; }
.pii_detection { color: #b44d12; } .phishing_detection, .navigation_decision { color: #ab091e; }
</style>
</head>
<body>
<h1>PasteShield</h1>
<p id="status">Connecting to {{.WebSocketPath}}…</p>
<table>
<thead><tr><th>Time</th><th>Type</th><th>Details</th></tr></thead>
<tbody id="events"></tbody>
</table>
<script>
const path = {{.WebSocketPath}};
const proto = location.protocol === "https:" ? "wss://" : "ws://";
const ws = new WebSocket(proto + location.host + path);
const status = document.getElementById("status");
ws.onopen = () => { status.textContent = "Connected"; };
ws.onclose = () => { status.textContent = "Disconnected"; };
ws.onmessage = (msg) => {
  const ev = JSON.parse(msg.data);
  const row = document.createElement("tr");
  row.className = ev.type;
  for (const text of [new Date(ev.timestamp).toLocaleTimeString(), ev.type, JSON.stringify(ev.data)]) {
    const cell = document.createElement("td");
    cell.textContent = text;
    row.appendChild(cell);
  }
  const body = document.getElementById("events");
  body.insertBefore(row, body.firstChild);
  while (body.children.length > 200) body.removeChild(body.lastChild);
};
</script>
</body>
</html>
`))

// Dashboard serves the live event dashboard
func Dashboard(webSocketPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		noCache(w)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		dashboardTemplate.Execute(w, struct{ WebSocketPath string }{webSocketPath})
	}
}

func noCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
