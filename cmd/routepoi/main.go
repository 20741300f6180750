package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dpup/routepoi/internal/cache"
	"github.com/dpup/routepoi/internal/clients/elevation"
	"github.com/dpup/routepoi/internal/clients/overpass"
	"github.com/dpup/routepoi/internal/clients/track"
	"github.com/dpup/routepoi/internal/config"
	"github.com/dpup/routepoi/internal/lib/correlate"
	"github.com/dpup/routepoi/internal/lib/geo"
	"github.com/dpup/routepoi/internal/lib/route"
	"github.com/dpup/routepoi/internal/logging"
	"github.com/dpup/routepoi/internal/report"
	"github.com/dpup/routepoi/internal/services"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	command := os.Args[1]

	switch command {
	case "pois":
		handleCorrelate(command, services.KindPOIs)
	case "settlements":
		handleCorrelate(command, services.KindSettlements)
	case "buffer":
		handleBuffer()
	case "segments":
		handleSegments()
	case "locate":
		handleLocate()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

// common holds the flags every subcommand shares.
type common struct {
	track  *string
	config *string
}

func commonFlags(fs *flag.FlagSet) common {
	return common{
		track:  fs.String("track", "", "Path to route file (.gpx, .geojson, .polyline)"),
		config: fs.String("config", "", "Path to YAML configuration file"),
	}
}

func (c common) load() (*config.Config, *track.Track) {
	if *c.track == "" {
		fmt.Println("--track is required")
		os.Exit(1)
	}
	cfg, err := config.Load(*c.config)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	tr, err := track.Load(*c.track)
	if err != nil {
		log.Fatalf("Error loading track: %v", err)
	}
	return cfg, tr
}

func handleCorrelate(command, kind string) {
	fs := flag.NewFlagSet(command, flag.ExitOnError)
	flags := commonFlags(fs)
	outDir := fs.String("out", ".", "Directory for report files")
	formats := fs.String("formats", "csv,html,geojson,kml", "Comma-separated report formats")
	buffer := fs.Float64("buffer", 0, "Corridor half-width in meters (overrides config)")
	dropDistant := fs.Bool("drop-distant", false, "Omit records outside the corridor")
	withElevation := fs.Bool("elevation", false, "Look up record elevations (overrides config)")
	withSettlements := fs.Bool("with-settlements", false, "Also write the settlement report (pois only)")
	fs.Parse(os.Args[2:])

	cfg, tr := flags.load()
	if *buffer > 0 {
		cfg.Correlation.BufferDistanceMeters = *buffer
	}
	if *dropDistant {
		cfg.Correlation.DropDistant = true
	}
	if *withElevation {
		cfg.Elevation.Enabled = true
	}

	logger, err := logging.New(cfg.LoggingOptions())
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := cache.NewFeatureStore(cache.NewCache(), cfg.Cache.TTL)
	store.Cache().StartPeriodicCleanup(ctx, cfg.Cache.CleanupInterval, logger)
	source := services.NewCachedSource("overpass", overpass.NewClient(cfg.Overpass), store, logger)

	var elevations services.ElevationSource
	if cfg.Elevation.Enabled {
		elevations = elevation.NewClient(cfg.Elevation, logger)
	}
	svc := services.NewCorrelationService(source, elevations, cfg.Correlation, logger)

	kinds := []string{kind}
	if kind == services.KindPOIs && *withSettlements {
		kinds = append(kinds, services.KindSettlements)
	}

	for _, k := range kinds {
		var rep *services.Report
		if k == services.KindPOIs {
			rep, err = svc.FindPOIs(ctx, tr.Points)
		} else {
			rep, err = svc.FindSettlements(ctx, tr.Points)
		}
		if err != nil {
			log.Fatalf("Error correlating %s: %v", k, err)
		}
		rep.Name = tr.Name

		files, err := writeReports(*outDir, strings.Split(*formats, ","), rep)
		if err != nil {
			log.Fatalf("Error writing reports: %v", err)
		}
		printSummary(rep, files)
	}

	stats := source.Stats()
	fmt.Printf("Cache: %d entries (%d fresh, %d stale)\n", stats.TotalEntries, stats.FreshEntries, stats.StaleEntries)
}

func writeReports(dir string, formats []string, rep *services.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	records := rep.Result.Records
	title := fmt.Sprintf("%s: %s", rep.Name, rep.Kind)
	var files []string
	for _, format := range formats {
		format = strings.TrimSpace(strings.ToLower(format))
		if format == "" {
			continue
		}

		var write func(w io.Writer) error
		switch format {
		case "csv":
			write = func(w io.Writer) error { return report.WriteCSV(w, records) }
		case "html":
			summary := report.Summary{
				Title:          title,
				RunID:          rep.RunID,
				LengthKm:       route.RoundKm(rep.LengthMeters),
				BufferMeters:   rep.Buffer.Distance(),
				Chunks:         len(rep.Chunks),
				FailedChunks:   len(rep.FailedChunks),
				Skipped:        len(rep.Result.Skipped),
				Dropped:        rep.Result.Dropped,
				Classification: rep.Result.Counts(),
			}
			write = func(w io.Writer) error { return report.WriteHTML(w, summary, records) }
		case "geojson":
			write = func(w io.Writer) error { return report.WriteGeoJSON(w, rep.Route, rep.Buffer, records) }
		case "kml":
			write = func(w io.Writer) error { return report.WriteKML(w, title, rep.Route, rep.Buffer, records) }
		default:
			return files, fmt.Errorf("unknown report format %q", format)
		}

		path := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", fileSafe(rep.Name), rep.Kind, format))
		if err := writeFile(path, write); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fileSafe(name string) string {
	if name == "" {
		return "route"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

func printSummary(rep *services.Report, files []string) {
	fmt.Printf("Run %s (%s)\n", rep.RunID, rep.Kind)
	fmt.Printf("  Route:    %.2f km planar, %.2f km geodesic, zone %s\n",
		rep.LengthMeters/1000, rep.GeodesicLengthMeters/1000, rep.Zone)
	fmt.Printf("  Chunks:   %d", len(rep.Chunks))
	if len(rep.FailedChunks) > 0 {
		fmt.Printf(" (%d failed: %v)", len(rep.FailedChunks), rep.FailedChunks)
	}
	fmt.Println()
	counts := rep.Result.Counts()
	fmt.Printf("  Records:  %d (on route %d, nearby %d, distant %d, unlocated %d), skipped %d, dropped %d\n",
		len(rep.Result.Records), counts[correlate.OnRoute], counts[correlate.Nearby], counts[correlate.Distant],
		counts[correlate.Unlocated], len(rep.Result.Skipped), rep.Result.Dropped)
	for _, f := range files {
		fmt.Printf("  Wrote %s\n", f)
	}
}

func handleBuffer() {
	fs := flag.NewFlagSet("buffer", flag.ExitOnError)
	flags := commonFlags(fs)
	distance := fs.Float64("distance", 0, "Corridor half-width in meters (defaults to config)")
	output := fs.String("output", "", "Output GeoJSON file (defaults to stdout)")
	fs.Parse(os.Args[2:])

	cfg, tr := flags.load()
	if *distance <= 0 {
		*distance = cfg.Correlation.BufferDistanceMeters
	}

	r, err := route.FromPoints(tr.Points)
	if err != nil {
		log.Fatalf("Error building route: %v", err)
	}
	b, err := route.NewBuffer(r, *distance)
	if err != nil {
		log.Fatalf("Error building buffer: %v", err)
	}

	write := func(w io.Writer) error { return report.WriteGeoJSON(w, r, b, nil) }
	if *output == "" {
		if err := write(os.Stdout); err != nil {
			log.Fatalf("Error writing GeoJSON: %v", err)
		}
		return
	}
	if err := writeFile(*output, write); err != nil {
		log.Fatalf("Error writing %s: %v", *output, err)
	}
	fmt.Printf("Wrote %.0f m corridor around %.2f km route to %s\n", *distance, r.Length()/1000, *output)
}

func handleSegments() {
	fs := flag.NewFlagSet("segments", flag.ExitOnError)
	flags := commonFlags(fs)
	length := fs.Float64("length", 0, "Maximum chunk length in meters (defaults to config)")
	overlap := fs.Float64("overlap", -1, "Chunk overlap in meters (defaults to config)")
	fs.Parse(os.Args[2:])

	cfg, tr := flags.load()
	if *length <= 0 {
		*length = cfg.Correlation.ChunkLengthMeters
	}
	if *overlap < 0 {
		*overlap = cfg.Correlation.ChunkOverlapMeters
	}

	r, err := route.FromPoints(tr.Points)
	if err != nil {
		log.Fatalf("Error building route: %v", err)
	}
	chunks, err := route.Segment(r, *length, *overlap)
	if err != nil {
		log.Fatalf("Error segmenting route: %v", err)
	}

	fmt.Printf("Route %s: %.2f km, %d chunks\n", tr.Name, r.Length()/1000, len(chunks))
	for _, c := range chunks {
		fmt.Printf("%3d  %9.2f km - %9.2f km  %4d points  %s\n",
			c.Index, c.Start/1000, c.End/1000, c.Route.NumPoints(), geo.EncodePolyline(c.Route.Points()))
	}
}

func handleLocate() {
	fs := flag.NewFlagSet("locate", flag.ExitOnError)
	flags := commonFlags(fs)
	point := fs.String("point", "", "Point as lat,lon")
	fs.Parse(os.Args[2:])

	if *point == "" {
		fmt.Println("Example usage:")
		fmt.Println("  routepoi locate --track ride.gpx --point 47.05,9.12")
		os.Exit(1)
	}
	pt, err := parsePoint(*point)
	if err != nil {
		log.Fatalf("Error parsing point: %v", err)
	}

	_, tr := flags.load()
	r, err := route.FromPoints(tr.Points)
	if err != nil {
		log.Fatalf("Error building route: %v", err)
	}

	km, offset, err := route.NewDistanceProjector(r, nil).Measure(pt)
	if err != nil {
		log.Fatalf("Error locating point: %v", err)
	}
	fmt.Printf("Distance along route: %.2f km\n", km)
	fmt.Printf("Offset from route:    %.0f m\n", offset)
	fmt.Printf("Route length:         %.2f km\n", route.RoundKm(r.Length()))
}

func parsePoint(s string) (geo.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("expected lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("invalid longitude: %w", err)
	}
	return geo.NewPoint(lat, lon)
}

func printUsage() {
	fmt.Println("routepoi - find points of interest along a route")
	fmt.Println("")
	fmt.Println("Usage:")
	fmt.Println("  routepoi pois        --track FILE [--out DIR] [--formats csv,html,geojson,kml] [--buffer M] [--elevation] [--with-settlements]")
	fmt.Println("  routepoi settlements --track FILE [--out DIR] [--formats ...] [--buffer M]")
	fmt.Println("  routepoi buffer      --track FILE [--distance M] [--output FILE]")
	fmt.Println("  routepoi segments    --track FILE [--length M] [--overlap M]")
	fmt.Println("  routepoi locate      --track FILE --point LAT,LON")
	fmt.Println("  routepoi help")
	fmt.Println("")
	fmt.Println("All commands accept --config FILE. Settings can also be set with ROUTEPOI_ environment")
	fmt.Println("variables, e.g. ROUTEPOI_CORRELATION__BUFFER_DISTANCE_METERS=750.")
}
