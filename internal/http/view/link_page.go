package view

import (
	"bytes"
	"html/template"
)

// LinkPageData provides the dynamic fields of the page shown when a short
// link cannot be followed.
type LinkPageData struct {
	Title      string
	StatusCode int
	Code       string
	Heading    string
	Message    string
}

var linkPageTmpl = template.Must(template.New("link_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>{{.Title}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #7dd3fc;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			width: min(520px, 92vw);
			box-shadow: 0 45px 100px rgba(0,0,0,0.35);
		}
		.status {
			font-size: 0.82rem;
			text-transform: uppercase;
			letter-spacing: 0.08em;
			color: var(--accent);
		}
		h1 { font-size: 1.5rem; margin: 6px 0; }
		p { color: var(--muted); margin-top: 0; }
		code { color: var(--text); }
	</style>
</head>
<body>
	<div class="card">
		<div class="status">{{.StatusCode}}</div>
		<h1>{{.Heading}}</h1>
		<p>{{.Message}}</p>
		{{if .Code}}<p>Short link: <code>/{{.Code}}</code></p>{{end}}
	</div>
</body>
</html>
`))

// RenderLinkPage expands the link page template with the provided data.
func RenderLinkPage(data LinkPageData) (string, error) {
	if data.Title == "" {
		data.Title = data.Heading
	}
	var buf bytes.Buffer
	if err := linkPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
