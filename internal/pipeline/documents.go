package pipeline

import (
	"fmt"

	"golang.org/x/net/html"
)

// LoadingDocument is shown while a navigation is in progress.
const LoadingDocument = `<!DOCTYPE html><html><head><meta charset="UTF-8"><title>Loading</title></head>` +
	`<body style="font-family: sans-serif;"><p>Processing, please wait...</p></body></html>`

// ErrorDocument is shown when a navigation fails. target may be empty when
// the input could not be normalized.
func ErrorDocument(target string, err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}

	where := ""
	if target != "" {
		where = fmt.Sprintf("<p>Target: <code>%s</code></p>", html.EscapeString(target))
	}

	return fmt.Sprintf(`<!DOCTYPE html><html><head><meta charset="UTF-8"><title>Error</title></head>`+
		`<body style="font-family: sans-serif;"><h1>The page could not be displayed</h1>%s`+
		`<p style="color: #a00;">%s</p></body></html>`,
		where, html.EscapeString(msg))
}
