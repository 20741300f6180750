package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-kml"

	"github.com/dpup/routepoi/internal/lib/correlate"
	"github.com/dpup/routepoi/internal/lib/route"
)

// KML builds a document with folders for the route, the corridor and the
// records.
func KML(name string, r *route.Route, b *route.Buffer, records []correlate.Record) *kml.CompoundElement {
	children := []kml.Element{kml.Name(name)}

	if r != nil {
		children = append(children, kml.Folder(
			kml.Name("Route"),
			kml.Placemark(
				kml.Name(name),
				kml.Description(fmt.Sprintf("%.2f km", route.RoundKm(r.Length()))),
				kml.LineString(
					kml.Tessellate(true),
					kml.Coordinates(coordinates(r.LineString())...),
				),
			),
		))
	}

	if b != nil {
		polygon := b.Polygon()
		if len(polygon) > 0 {
			children = append(children, kml.Folder(
				kml.Name("Corridor"),
				kml.Placemark(
					kml.Name(fmt.Sprintf("%.0f m corridor", b.Distance())),
					kml.Polygon(
						kml.Tessellate(true),
						kml.OuterBoundaryIs(kml.LinearRing(kml.Coordinates(coordinates(polygon[0])...))),
					),
				),
			))
		}
	}

	placemarks := []kml.Element{kml.Name("Points of interest")}
	for _, rec := range records {
		placemarks = append(placemarks, kml.Placemark(
			kml.Name(rec.Name),
			kml.Description(describe(rec)),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: rec.Location.Longitude, Lat: rec.Location.Latitude})),
		))
	}
	children = append(children, kml.Folder(placemarks...))

	return kml.KML(kml.Document(children...))
}

// WriteKML writes the document built by KML.
func WriteKML(w io.Writer, name string, r *route.Route, b *route.Buffer, records []correlate.Record) error {
	if err := KML(name, r, b, records).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

func describe(rec correlate.Record) string {
	lines := []string{
		fmt.Sprintf("%s (%s)", rec.Subtype, rec.Category),
		fmt.Sprintf("%.2f km along route, %.0f m off", rec.DistanceKm, rec.OffsetMeters),
	}
	if rec.Settlement != nil {
		lines = append(lines, fmt.Sprintf("Near %s, %s, %s", rec.Settlement.Name, rec.Settlement.Region, rec.Settlement.Country))
	}
	if e := formatElevation(rec.Elevation); e != "" {
		lines = append(lines, "Elevation "+e+" m")
	}
	return strings.Join(lines, "\n")
}

func coordinates[T ~[]orb.Point](pts T) []kml.Coordinate {
	out := make([]kml.Coordinate, len(pts))
	for i, p := range pts {
		out[i] = kml.Coordinate{Lon: p[0], Lat: p[1]}
	}
	return out
}
