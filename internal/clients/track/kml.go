package track

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/dpup/routepoi/internal/lib/geo"
)

type kmlPlacemark struct {
	Name        string          `xml:"name"`
	LineStrings []kmlLineString `xml:"LineString"`
	Multi       []struct {
		LineStrings []kmlLineString `xml:"LineString"`
	} `xml:"MultiGeometry"`
}

type kmlLineString struct {
	Coordinates string `xml:"coordinates"`
}

// ParseKML joins the LineString placemarks of a KML document in document
// order. Folders and documents may nest to any depth.
func ParseKML(data []byte) (*Track, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	t := &Track{}
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "Placemark" {
			continue
		}

		var pm kmlPlacemark
		if err := dec.DecodeElement(&pm, &start); err != nil {
			return nil, fmt.Errorf("failed to parse KML: %w", err)
		}
		lines := pm.LineStrings
		for _, m := range pm.Multi {
			lines = append(lines, m.LineStrings...)
		}
		for _, ls := range lines {
			added, err := t.addCoordinates(ls.Coordinates)
			if err != nil {
				return nil, err
			}
			if added && t.Name == "" {
				t.Name = strings.TrimSpace(pm.Name)
			}
		}
	}
	return t.validate()
}

// addCoordinates parses "lon,lat[,alt]" tuples separated by whitespace.
func (t *Track) addCoordinates(text string) (bool, error) {
	added := false
	for _, tuple := range strings.Fields(text) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			return added, fmt.Errorf("invalid KML coordinate %q", tuple)
		}
		lon, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return added, fmt.Errorf("invalid KML longitude %q: %w", parts[0], err)
		}
		lat, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return added, fmt.Errorf("invalid KML latitude %q: %w", parts[1], err)
		}
		t.append(geo.Point{Latitude: lat, Longitude: lon})
		added = true
	}
	return added, nil
}
