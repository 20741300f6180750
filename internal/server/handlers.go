package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/paulmach/orb/geojson"

	"github.com/dpup/routepoi/internal/config"
	"github.com/dpup/routepoi/internal/lib/correlate"
	"github.com/dpup/routepoi/internal/lib/geo"
	"github.com/dpup/routepoi/internal/lib/poi"
	"github.com/dpup/routepoi/internal/lib/route"
	"github.com/dpup/routepoi/internal/lib/settlement"
	"github.com/dpup/routepoi/internal/logging"
)

const maxBodyBytes = 32 << 20

// Handler serves the correlation API
type Handler struct {
	cfg config.CorrelationConfig
	log logging.Logger
}

// NewHandler creates a handler using cfg for unset request parameters
func NewHandler(cfg config.CorrelationConfig, log logging.Logger) *Handler {
	return &Handler{cfg: cfg, log: logging.OrNop(log)}
}

// RouteInput is a route given as points or as an encoded polyline.
type RouteInput struct {
	Points   []geo.Point `json:"points,omitempty"`
	Polyline string      `json:"polyline,omitempty"`
}

func (in RouteInput) build() (*route.Route, error) {
	points := in.Points
	if len(points) == 0 && in.Polyline != "" {
		decoded, err := geo.DecodePolyline(in.Polyline)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", route.ErrInvalidRoute, err)
		}
		points = decoded
	}
	return route.FromPoints(points)
}

type correlateRequest struct {
	Route                RouteInput                 `json:"route"`
	Candidates           *geojson.FeatureCollection `json:"candidates"`
	Settlements          *geojson.FeatureCollection `json:"settlements,omitempty"`
	Boundaries           *geojson.FeatureCollection `json:"boundaries,omitempty"`
	BufferDistanceMeters *float64                   `json:"buffer_distance_meters,omitempty"`
	OnRouteMeters        *float64                   `json:"on_route_meters,omitempty"`
	DropDistant          *bool                      `json:"drop_distant,omitempty"`
}

type correlateResponse struct {
	LengthMeters         float64           `json:"length_meters"`
	GeodesicLengthMeters float64           `json:"geodesic_length_meters"`
	Zone                 string            `json:"zone"`
	InvalidFeatures      int               `json:"invalid_features"`
	Result               *correlate.Result `json:"result"`
}

// Correlate runs the pipeline over supplied candidates
func (h *Handler) Correlate(w http.ResponseWriter, r *http.Request) {
	var req correlateRequest
	if !h.decode(w, r, &req) {
		return
	}

	rt, err := req.Route.build()
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	nearby := valueOr(req.BufferDistanceMeters, h.cfg.BufferDistanceMeters)
	onRoute := valueOr(req.OnRouteMeters, h.cfg.OnRouteMeters)
	if !(nearby >= 0) || !(onRoute >= 0) {
		h.respondWithError(w, fmt.Errorf("%w: thresholds must not be negative", route.ErrInvalidParameter))
		return
	}

	candidates, invalid := poi.FromFeatureCollection(req.Candidates)
	candidates = poi.Dedupe(candidates)
	settlements, invalidSettlements := poi.FromFeatureCollection(req.Settlements)
	boundaries, invalidBoundaries := poi.FromFeatureCollection(req.Boundaries)

	opts := []correlate.Option{
		correlate.WithWorkers(h.cfg.Workers),
		correlate.WithOnRouteMeters(onRoute),
		correlate.WithNearbyMeters(nearby),
		correlate.WithDropDistant(valueOr(req.DropDistant, h.cfg.DropDistant)),
	}
	if len(settlements) > 0 || len(boundaries) > 0 {
		opts = append(opts, correlate.WithMatcher(settlement.NewMatcher(rt.Projector(), settlements, boundaries, h.log)))
	}

	result, err := correlate.New(rt, h.log, opts...).Run(r.Context(), candidates)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, correlateResponse{
		LengthMeters:         rt.Length(),
		GeodesicLengthMeters: rt.GeodesicLength(),
		Zone:                 rt.Projector().Zone().String(),
		InvalidFeatures:      invalid + invalidSettlements + invalidBoundaries,
		Result:               result,
	})
}

type bufferRequest struct {
	Route          RouteInput `json:"route"`
	DistanceMeters *float64   `json:"distance_meters,omitempty"`
}

// Buffer returns the corridor polygon as a GeoJSON feature
func (h *Handler) Buffer(w http.ResponseWriter, r *http.Request) {
	var req bufferRequest
	if !h.decode(w, r, &req) {
		return
	}

	rt, err := req.Route.build()
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	b, err := route.NewBuffer(rt, valueOr(req.DistanceMeters, h.cfg.BufferDistanceMeters))
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	f := geojson.NewFeature(b.Polygon())
	f.Properties["distance_meters"] = b.Distance()
	f.Properties["zone"] = rt.Projector().Zone().String()
	respondWithJSON(w, http.StatusOK, f)
}

type segmentsRequest struct {
	Route              RouteInput `json:"route"`
	ChunkLengthMeters  *float64   `json:"chunk_length_meters,omitempty"`
	ChunkOverlapMeters *float64   `json:"chunk_overlap_meters,omitempty"`
}

type segmentResponse struct {
	route.Chunk
	Polyline string `json:"polyline"`
}

// Segments splits the route into overlapping chunks
func (h *Handler) Segments(w http.ResponseWriter, r *http.Request) {
	var req segmentsRequest
	if !h.decode(w, r, &req) {
		return
	}

	rt, err := req.Route.build()
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	chunks, err := route.Segment(rt,
		valueOr(req.ChunkLengthMeters, h.cfg.ChunkLengthMeters),
		valueOr(req.ChunkOverlapMeters, h.cfg.ChunkOverlapMeters))
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	out := make([]segmentResponse, len(chunks))
	for i, c := range chunks {
		out[i] = segmentResponse{Chunk: c, Polyline: geo.EncodePolyline(c.Route.Points())}
	}
	respondWithJSON(w, http.StatusOK, out)
}

type locateRequest struct {
	Route  RouteInput  `json:"route"`
	Points []geo.Point `json:"points"`
}

type locateResponse struct {
	Point        geo.Point `json:"point"`
	DistanceKm   float64   `json:"distance_km"`
	OffsetMeters float64   `json:"offset_meters"`
	Error        string    `json:"error,omitempty"`
}

// Locate reports along-route distances for points
func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if !h.decode(w, r, &req) {
		return
	}

	rt, err := req.Route.build()
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	distances := route.NewDistanceProjector(rt, h.log)
	out := make([]locateResponse, len(req.Points))
	for i, p := range req.Points {
		out[i].Point = p
		km, offset, err := distances.Measure(p)
		if err != nil {
			out[i].Error = err.Error()
			continue
		}
		out[i].DistanceKm, out[i].OffsetMeters = km, offset
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondWithJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// respondWithError maps domain errors to 400 and everything else to 500.
func (h *Handler) respondWithError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, route.ErrInvalidRoute), errors.Is(err, route.ErrInvalidParameter), errors.Is(err, geo.ErrGeometryDegenerate):
		code = http.StatusBadRequest
	default:
		h.log.Errorw("request failed", "error", err)
	}
	respondWithJSON(w, code, map[string]string{"error": err.Error()})
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func valueOr[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}
