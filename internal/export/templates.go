package export

import (
	"bytes"
	"embed"
	"html/template"
	"strconv"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"score": formatScore,
	"inc":   func(i int) int { return i + 1 },
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/report.html"))

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// RenderReportHTML renders the printable report page.
func RenderReportHTML(view ReportView) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}
