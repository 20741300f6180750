package correlate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/dpup/routepoi/internal/lib/geo"
	"github.com/dpup/routepoi/internal/lib/poi"
	"github.com/dpup/routepoi/internal/lib/route"
	"github.com/dpup/routepoi/internal/logging"
)

// Defaults for classification thresholds and concurrency
const (
	DefaultOnRouteMeters = 100.0
	DefaultNearbyMeters  = 500.0
	DefaultWorkers       = 1
)

// Pipeline turns candidates into distance-ordered records for one route.
type Pipeline struct {
	route         *route.Route
	distances     measurer
	matcher       SettlementResolver
	log           logging.Logger
	workers       int
	onRouteMeters float64
	nearbyMeters  float64
	dropDistant   bool
}

// measurer is satisfied by *route.DistanceProjector.
type measurer interface {
	Measure(pt geo.Point) (km, offsetMeters float64, err error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMatcher resolves the nearest settlement for every record.
func WithMatcher(m SettlementResolver) Option {
	return func(p *Pipeline) { p.matcher = m }
}

// WithWorkers processes candidates concurrently. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(p *Pipeline) { p.workers = n }
}

// WithOnRouteMeters sets the offset below which a record is on the route.
func WithOnRouteMeters(m float64) Option {
	return func(p *Pipeline) { p.onRouteMeters = m }
}

// WithNearbyMeters sets the offset below which a record is nearby, normally
// the buffer distance.
func WithNearbyMeters(m float64) Option {
	return func(p *Pipeline) { p.nearbyMeters = m }
}

// WithDropDistant omits records classified as distant.
func WithDropDistant(drop bool) Option {
	return func(p *Pipeline) { p.dropDistant = drop }
}

// New creates a pipeline for r.
func New(r *route.Route, log logging.Logger, opts ...Option) *Pipeline {
	log = logging.OrNop(log)
	p := &Pipeline{
		route:         r,
		distances:     route.NewDistanceProjector(r, log),
		log:           log,
		workers:       DefaultWorkers,
		onRouteMeters: DefaultOnRouteMeters,
		nearbyMeters:  DefaultNearbyMeters,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

type outcome struct {
	record  Record
	skip    *Skip
	dropped bool
}

// Run correlates every candidate. A candidate that cannot be processed is
// reported in Result.Skipped and never aborts the batch. Output order does
// not depend on the number of workers.
func (p *Pipeline) Run(ctx context.Context, candidates []poi.Candidate) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	outcomes := make([]outcome, len(candidates))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < p.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = p.process(candidates[i])
			}
		}()
	}

	var err error
dispatch:
	for i := range candidates {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:   uuid.NewString(),
		Records: make([]Record, 0, len(candidates)),
	}
	for _, o := range outcomes {
		switch {
		case o.skip != nil:
			p.log.Warnw("skipping candidate", "run_id", result.RunID,
				"id", o.skip.CandidateID, "name", o.skip.Name, "reason", o.skip.Reason)
			result.Skipped = append(result.Skipped, *o.skip)
		case o.dropped:
			result.Dropped++
		default:
			result.Records = append(result.Records, o.record)
		}
	}

	sort.SliceStable(result.Records, func(i, j int) bool {
		return result.Records[i].DistanceKm < result.Records[j].DistanceKm
	})

	p.log.Infow("correlation complete", "run_id", result.RunID,
		"candidates", len(candidates), "records", len(result.Records),
		"skipped", len(result.Skipped), "dropped", result.Dropped)
	return result, nil
}

// process handles one candidate. Panics are contained to the candidate.
func (p *Pipeline) process(c poi.Candidate) (o outcome) {
	defer func() {
		if r := recover(); r != nil {
			o = outcome{skip: &Skip{CandidateID: c.ID, Name: c.Name, Reason: fmt.Sprintf("panic: %v", r)}}
		}
	}()

	record, err := p.Correlate(c)
	if err != nil {
		return outcome{skip: &Skip{CandidateID: c.ID, Name: c.Name, Reason: err.Error()}}
	}
	if p.dropDistant && record.Classification == Distant {
		return outcome{dropped: true}
	}
	return outcome{record: record}
}

// Correlate builds the record for a single candidate.
func (p *Pipeline) Correlate(c poi.Candidate) (Record, error) {
	pt, err := c.RepresentativePoint(p.route.Projector())
	if err != nil {
		return Record{}, fmt.Errorf("no representative point: %w", err)
	}

	class := Unlocated
	km, offset, err := p.distances.Measure(pt)
	if err != nil {
		p.log.Warnw("distance along route unavailable",
			"candidate", c.ID, "lat", pt.Latitude, "lon", pt.Longitude, "error", err)
		km, offset = 0, 0
	} else {
		class = p.classify(offset)
	}

	record := Record{
		ID:             c.ID,
		Name:           c.DisplayName(),
		Category:       c.Category,
		Subtype:        c.Subtype,
		Location:       pt,
		DistanceKm:     km,
		OffsetMeters:   offset,
		Classification: class,
		Attributes:     c.Attributes,
	}
	if p.matcher != nil {
		match := p.matcher.Nearest(pt)
		record.Settlement = &match
	}
	return record, nil
}

func (p *Pipeline) classify(offset float64) Classification {
	switch {
	case offset <= p.onRouteMeters:
		return OnRoute
	case offset <= p.nearbyMeters:
		return Nearby
	default:
		return Distant
	}
}
