package report

import (
	"fmt"
	"html/template"
	"io"

	"github.com/dpup/routepoi/internal/lib/correlate"
)

var htmlTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"km":        func(v float64) string { return fmt.Sprintf("%.2f", v) },
	"meters":    func(v float64) string { return fmt.Sprintf("%.0f", v) },
	"coords":    Coordinates,
	"mapsURL":   GoogleMapsURL,
	"elevation": formatElevation,
	"place":     settlementColumns,
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Summary.Title}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px 8px; text-align: left; }
th { background: #f0f0f0; }
tr.on_route { background: #e8f5e9; }
tr.distant { color: #888; }
</style>
</head>
<body>
<h1>{{.Summary.Title}}</h1>
<p>
Route length {{km .Summary.LengthKm}} km, corridor {{meters .Summary.BufferMeters}} m,
{{.Summary.Chunks}} chunks{{if .Summary.FailedChunks}} ({{.Summary.FailedChunks}} failed){{end}}.
{{len .Records}} records{{if .Summary.Skipped}}, {{.Summary.Skipped}} skipped{{end}}{{if .Summary.Dropped}}, {{.Summary.Dropped}} dropped{{end}}.
</p>
{{if .Summary.Classification}}<ul>
{{range $class, $n := .Summary.Classification}}<li>{{$class}}: {{$n}}</li>
{{end}}</ul>{{end}}
<table>
<thead>
<tr><th>Distance (km)</th><th>Name</th><th>Type</th><th>Classification</th><th>Offset (m)</th><th>Nearest Settlement</th><th>Region</th><th>Country</th><th>Elevation (m)</th><th>Map</th></tr>
</thead>
<tbody>
{{range .Records}}{{$p := place .}}<tr class="{{.Classification}}">
<td>{{km .DistanceKm}}</td><td>{{.Name}}</td><td>{{.Subtype}}</td><td>{{.Classification}}</td><td>{{meters .OffsetMeters}}</td>
<td>{{index $p 0}}{{if .Settlement}} ({{index $p 1}} km){{end}}</td><td>{{index $p 3}}</td><td>{{index $p 4}}</td>
<td>{{elevation .Elevation}}</td><td><a href="{{mapsURL .Location}}">{{coords .Location}}</a></td>
</tr>
{{end}}</tbody>
</table>
<p><small>Run {{.Summary.RunID}}</small></p>
</body>
</html>
`))

// WriteHTML renders records as a standalone HTML table.
func WriteHTML(w io.Writer, summary Summary, records []correlate.Record) error {
	data := struct {
		Summary Summary
		Records []correlate.Record
	}{summary, records}
	if err := htmlTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render HTML report: %w", err)
	}
	return nil
}
