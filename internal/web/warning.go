package web

import (
	"html/template"
	"net/http"

	"github.com/raaihank/pasteshield/internal/navigation"
)

var warningTemplate = template.Must(template.New("warning").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Phishing site blocked</title>
<style>
body { font-family: system-ui, sans-serif; background: #fff5f5; color: #1f2933; display: flex; justify-content: center; padding-top: 8vh; }
main { max-width: 40rem; background: #fff; border: 2px solid #e12d39; border-radius: 8px; padding: 2rem; }
code { word-break: break-all; background: #f5f7fa; padding: .2rem .4rem; }
.risk { font-size: 2rem; color: #ab091e; }
button { margin-right: 1rem; padding: .6rem 1.2rem; }
</style>
</head>
<body>
<main>
<h1>Warning: suspected phishing site</h1>
<p>PasteShield blocked this page because it looks like a phishing attempt.</p>
<p><code>{{.URL}}</code></p>
<p class="risk">Risk: {{.Risk}}%</p>
<button id="back">Go back to safety</button>
<button id="proceed">Proceed anyway</button>
</main>
<script>
const blocked = {{.URL}};
document.getElementById("back").onclick = () => { history.length > 1 ? history.back() : location.replace("about:blank"); };
document.getElementById("proceed").onclick = async () => {
  const resp = await fetch({{.MessagesPath}}, {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    body: JSON.stringify({action: {{.Action}}, url: blocked}),
  });
  if (resp.ok) location.replace(blocked);
};
</script>
</body>
</html>
`))

type warningView struct {
	URL          string
	Risk         int
	Action       string
	MessagesPath string
}

// Warning serves the phishing warning page. It expects the url and risk
// query parameters written by navigation.BuildWarningURL.
func Warning(messagesPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blocked, risk, err := navigation.ParseWarningURL(r.URL.RequestURI())
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		noCache(w)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		warningTemplate.Execute(w, warningView{
			URL:          blocked,
			Risk:         risk,
			Action:       navigation.MessageAllowPhishingURL,
			MessagesPath: messagesPath,
		})
	}
}
