package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dpup/routepoi/internal/lib/correlate"
)

var csvHeader = []string{
	"Distance (km)", "Name", "Type", "Category", "Coordinates", "Google Maps",
	"Offset (m)", "Classification", "Nearest Settlement", "Settlement Distance (km)",
	"Locality", "Region", "Country", "Elevation (m)",
}

// WriteCSV writes one row per record in the given order.
func WriteCSV(w io.Writer, records []correlate.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		s := settlementColumns(rec)
		row := []string{
			fmt.Sprintf("%.2f", rec.DistanceKm),
			rec.Name,
			rec.Subtype,
			string(rec.Category),
			Coordinates(rec.Location),
			GoogleMapsURL(rec.Location),
			fmt.Sprintf("%.0f", rec.OffsetMeters),
			string(rec.Classification),
			s[0], s[1], s[2], s[3], s[4],
			formatElevation(rec.Elevation),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", rec.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
