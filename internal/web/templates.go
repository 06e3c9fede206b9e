package web

import "html/template"

// pageTemplates parses the server-rendered pages. The templates are compiled
// into the binary so the web command needs no asset directory.
func pageTemplates() *template.Template {
	return template.Must(template.New("web").Parse(pages))
}

const pages = `
{{define "header"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>mailsort</title>
<style>
body { font-family: sans-serif; margin: 2rem auto; max-width: 48rem; padding: 0 1rem; color: #222; }
h1 a { color: inherit; text-decoration: none; }
nav a { margin-right: 1rem; }
form label { display: block; margin: 0.75rem 0 0.25rem; }
input, textarea { width: 100%; box-sizing: border-box; padding: 0.4rem; }
button { margin-top: 1rem; padding: 0.5rem 1.5rem; }
.error { background: #fdecea; border: 1px solid #b71c1c; padding: 0.75rem; }
.report { background: #edf7ed; border: 1px solid #2e7d32; padding: 0.75rem; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; border-bottom: 1px solid #ddd; padding: 0.5rem; }
.snippet { color: #666; }
pre { white-space: pre-wrap; background: #f6f6f6; padding: 1rem; }
</style>
</head>
<body>
<h1><a href="/">mailsort</a></h1>
<nav><a href="/">Run</a><a href="/folders">Folders</a></nav>
{{end}}

{{define "footer"}}</body>
</html>
{{end}}

{{define "index"}}{{template "header"}}
{{if .Error}}<p class="error">{{.Error}}</p>{{end}}
<h2>Organize inbox</h2>
<form method="post" action="/run">
<label for="max_count">Max messages</label>
<input id="max_count" name="max_count" type="number" min="1" placeholder="{{.DefaultMaxCount}}">
<label for="categories">Categories (comma-separated; empty means all)</label>
<input id="categories" name="categories" type="text" placeholder="Work, Personal, Promotions, Social, Updates">
<label for="custom_prompt">Custom prompt (optional)</label>
<textarea id="custom_prompt" name="custom_prompt" rows="3" placeholder="Sort my email only into Work and Social"></textarea>
<button type="submit">Run</button>
</form>
{{if .Report}}
<h2>Last run</h2>
<div class="report">
<p>{{.Report.Summary}}</p>
<ul>
{{range .Report.Lines}}<li>{{.}}</li>
{{end}}</ul>
</div>
{{end}}
{{template "footer"}}{{end}}

{{define "folders"}}{{template "header"}}
<h2>Folders</h2>
{{if .Labels}}
<table>
<tr><th>Name</th><th>Type</th></tr>
{{range .Labels}}<tr><td><a href="/folders/{{.Id}}">{{.Name}}</a></td><td>{{.Type}}</td></tr>
{{end}}</table>
{{else}}<p>No labels found.</p>{{end}}
{{template "footer"}}{{end}}

{{define "folder"}}{{template "header"}}
<h2>{{.LabelName}}</h2>
{{if .Messages}}
<table>
<tr><th>Subject</th><th>Snippet</th></tr>
{{range .Messages}}<tr><td><a href="/messages/{{.ID}}">{{if .Subject}}{{.Subject}}{{else}}(no subject){{end}}</a></td><td class="snippet">{{.Snippet}}</td></tr>
{{end}}</table>
{{else}}<p>No messages in this folder.</p>{{end}}
{{template "footer"}}{{end}}

{{define "message"}}{{template "header"}}
<h2>{{if .Message.Subject}}{{.Message.Subject}}{{else}}(no subject){{end}}</h2>
<p><a href="{{.WebLink}}">Open in Gmail</a></p>
{{if .Body}}<pre>{{.Body}}</pre>{{else}}<p class="snippet">{{.Message.Snippet}}</p>{{end}}
{{template "footer"}}{{end}}

{{define "error"}}{{template "header"}}
<p class="error">{{.Error}}</p>
{{template "footer"}}{{end}}
`
