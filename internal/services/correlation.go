package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dpup/routepoi/internal/clients/overpass"
	"github.com/dpup/routepoi/internal/config"
	"github.com/dpup/routepoi/internal/lib/correlate"
	"github.com/dpup/routepoi/internal/lib/geo"
	"github.com/dpup/routepoi/internal/lib/poi"
	"github.com/dpup/routepoi/internal/lib/route"
	"github.com/dpup/routepoi/internal/lib/settlement"
	"github.com/dpup/routepoi/internal/logging"
)

// ErrNoData is returned when every chunk of a route failed to fetch.
var ErrNoData = errors.New("no chunk could be fetched")

// Report kinds
const (
	KindPOIs        = "pois"
	KindSettlements = "settlements"
)

// Report is the outcome of correlating one route.
type Report struct {
	RunID                string            `json:"run_id"`
	Kind                 string            `json:"kind"`
	Name                 string            `json:"name,omitempty"`
	LengthMeters         float64           `json:"length_meters"`
	GeodesicLengthMeters float64           `json:"geodesic_length_meters"`
	Zone                 string            `json:"zone"`
	Route                *route.Route      `json:"-"`
	Buffer               *route.Buffer     `json:"-"`
	Chunks               []route.Chunk     `json:"chunks"`
	FailedChunks         []int             `json:"failed_chunks,omitempty"`
	Result               *correlate.Result `json:"result"`
}

// CorrelationService fetches features along a route and correlates them.
type CorrelationService struct {
	source    FeatureSource
	elevation ElevationSource
	cfg       config.CorrelationConfig
	log       logging.Logger
}

// NewCorrelationService creates a service. elevation may be nil.
func NewCorrelationService(source FeatureSource, elevation ElevationSource, cfg config.CorrelationConfig, log logging.Logger) *CorrelationService {
	return &CorrelationService{
		source:    source,
		elevation: elevation,
		cfg:       cfg,
		log:       logging.OrNop(log),
	}
}

// FindPOIs correlates shops and campsites along the route.
func (s *CorrelationService) FindPOIs(ctx context.Context, points []geo.Point) (*Report, error) {
	return s.run(ctx, KindPOIs, points)
}

// FindSettlements correlates the settlements along the route themselves.
func (s *CorrelationService) FindSettlements(ctx context.Context, points []geo.Point) (*Report, error) {
	return s.run(ctx, KindSettlements, points)
}

type fetched struct {
	pois        []poi.Candidate
	settlements []poi.Candidate
	boundaries  []poi.Candidate
}

func (s *CorrelationService) run(ctx context.Context, kind string, points []geo.Point) (*Report, error) {
	r, err := route.FromPoints(points)
	if err != nil {
		return nil, err
	}
	buffer, err := route.NewBuffer(r, s.cfg.BufferDistanceMeters)
	if err != nil {
		return nil, err
	}
	chunks, err := route.Segment(r, s.cfg.ChunkLengthMeters, s.cfg.ChunkOverlapMeters)
	if err != nil {
		return nil, err
	}

	s.log.Infow("correlating route", "kind", kind, "points", r.NumPoints(),
		"length_meters", r.Length(), "zone", r.Projector().Zone().String(), "chunks", len(chunks))

	data, failed, err := s.fetchChunks(ctx, kind, chunks)
	if err != nil {
		return nil, err
	}

	matcher := settlement.NewMatcher(r.Projector(), data.settlements, data.boundaries, s.log)
	candidates := data.pois
	if kind == KindSettlements {
		candidates = data.settlements
	}

	pipeline := correlate.New(r, s.log,
		correlate.WithMatcher(matcher),
		correlate.WithWorkers(s.cfg.Workers),
		correlate.WithOnRouteMeters(s.cfg.OnRouteMeters),
		correlate.WithNearbyMeters(s.cfg.BufferDistanceMeters),
		correlate.WithDropDistant(s.cfg.DropDistant),
	)
	result, err := pipeline.Run(ctx, candidates)
	if err != nil {
		return nil, err
	}

	s.enrichElevation(ctx, result)

	return &Report{
		RunID:                result.RunID,
		Kind:                 kind,
		LengthMeters:         r.Length(),
		GeodesicLengthMeters: r.GeodesicLength(),
		Zone:                 r.Projector().Zone().String(),
		Route:                r,
		Buffer:               buffer,
		Chunks:               chunks,
		FailedChunks:         failed,
		Result:               result,
	}, nil
}

// fetchChunks queries every chunk corridor. A chunk with any failed query is
// skipped; only a route where every chunk failed is an error.
func (s *CorrelationService) fetchChunks(ctx context.Context, kind string, chunks []route.Chunk) (fetched, []int, error) {
	var data fetched
	var failed []int

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return fetched{}, nil, err
		}

		corridor := overpass.Corridor{Path: chunk.Route.Points(), RadiusMeters: s.cfg.BufferDistanceMeters}
		chunkData, err := s.fetchChunk(ctx, kind, corridor)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fetched{}, nil, ctxErr
			}
			s.log.Warnw("skipping chunk", "chunk", chunk.Index,
				"start_meters", chunk.Start, "end_meters", chunk.End, "error", err)
			failed = append(failed, chunk.Index)
			continue
		}

		s.log.Debugw("fetched chunk", "chunk", chunk.Index, "pois", len(chunkData.pois),
			"settlements", len(chunkData.settlements), "boundaries", len(chunkData.boundaries))
		data.pois = append(data.pois, chunkData.pois...)
		data.settlements = append(data.settlements, chunkData.settlements...)
		data.boundaries = append(data.boundaries, chunkData.boundaries...)
	}

	if len(failed) == len(chunks) {
		return fetched{}, failed, fmt.Errorf("%w: %d chunks failed", ErrNoData, len(failed))
	}

	data.pois = poi.Dedupe(data.pois)
	data.settlements = poi.Dedupe(data.settlements)
	data.boundaries = poi.Dedupe(data.boundaries)
	return data, failed, nil
}

func (s *CorrelationService) fetchChunk(ctx context.Context, kind string, corridor overpass.Corridor) (fetched, error) {
	var data fetched
	var err error

	if kind == KindPOIs {
		if data.pois, err = s.source.FetchPOIs(ctx, corridor); err != nil {
			return fetched{}, fmt.Errorf("pois: %w", err)
		}
	}
	if data.settlements, err = s.source.FetchSettlements(ctx, corridor); err != nil {
		return fetched{}, fmt.Errorf("settlements: %w", err)
	}
	if data.boundaries, err = s.source.FetchBoundaries(ctx, corridor); err != nil {
		return fetched{}, fmt.Errorf("boundaries: %w", err)
	}
	return data, nil
}

// enrichElevation fills record elevations. Failures leave them unset.
func (s *CorrelationService) enrichElevation(ctx context.Context, result *correlate.Result) {
	if s.elevation == nil || len(result.Records) == 0 {
		return
	}

	points := make([]geo.Point, len(result.Records))
	for i, rec := range result.Records {
		points[i] = rec.Location
	}
	values, err := s.elevation.Lookup(ctx, points)
	if err != nil {
		s.log.Warnw("elevation lookup failed", "run_id", result.RunID, "error", err)
		return
	}
	for i := range result.Records {
		if i < len(values) {
			result.Records[i].Elevation = values[i]
		}
	}
}
