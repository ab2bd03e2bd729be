// Package pipeline turns accepted credential events into enriched, counted,
// broadcast records.
//
// A single goroutine consumes the mailbox, so events are aggregated one at a
// time in arrival order. The time-bucket tables depend on that: their
// advance is a read-then-write with no database-level guard. Intake stays
// concurrent on one side of the mailbox, hub fan-out on the other.
package pipeline

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/brute-sh/brute/internal/hub"
	"github.com/brute-sh/brute/internal/ipintel"
	"github.com/brute-sh/brute/internal/metrics"
	"github.com/brute-sh/brute/internal/model"
	"github.com/brute-sh/brute/internal/store"
)

var log = logrus.WithField("prefix", "pipeline")

// MailboxSize bounds how many accepted events may queue while one is being
// aggregated.
const MailboxSize = 1024

// enrichmentTTLMS is how long a stored enrichment row may keep answering for
// its address before the provider is consulted again.
const enrichmentTTLMS = 300_000

// Broadcaster fans a completed record out to live subscribers and returns
// the serialized frame.
type Broadcaster interface {
	Broadcast(parseType string, payload interface{}) ([]byte, error)
}

// Publisher mirrors broadcast frames to an external feed.
type Publisher interface {
	Publish(ctx context.Context, frame []byte)
}

// Pipeline owns the mailbox and the aggregation steps behind it.
type Pipeline struct {
	store   *store.Store
	intel   ipintel.Provider
	bus     Broadcaster
	mirror  Publisher
	mailbox chan model.Individual
}

// New wires the aggregation pipeline. mirror may be nil when no external
// feed is configured.
func New(st *store.Store, intel ipintel.Provider, bus Broadcaster, mirror Publisher) *Pipeline {
	return &Pipeline{
		store:   st,
		intel:   intel,
		bus:     bus,
		mirror:  mirror,
		mailbox: make(chan model.Individual, MailboxSize),
	}
}

// Enqueue hands an accepted event to the consumer. It blocks while the
// mailbox is full and gives up when ctx expires, so a request can bound how
// long it is willing to wait.
func (p *Pipeline) Enqueue(ctx context.Context, ev model.Individual) error {
	select {
	case p.mailbox <- ev:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "pipeline backlog full")
	}
}

// Run consumes the mailbox until ctx is canceled. Only one Run loop may
// exist per pipeline; the bucket advance depends on the single consumer.
func (p *Pipeline) Run(ctx context.Context) error {
	log.Info("aggregation pipeline started")
	for {
		select {
		case <-ctx.Done():
			log.WithField("queued", len(p.mailbox)).Info("aggregation pipeline stopped")
			return ctx.Err()
		case ev := <-p.mailbox:
			p.process(ctx, ev)
		}
	}
}

// process runs the full aggregation for one event. A failing step aborts the
// remainder for this event only; completed steps are not rolled back and the
// event is not retried.
func (p *Pipeline) process(ctx context.Context, ev model.Individual) {
	start := time.Now()

	ev.ID = model.NewID()
	ev.Timestamp = start.UnixMilli()

	elog := log.WithFields(logrus.Fields{
		"id":       ev.ID,
		"ip":       ev.IP,
		"protocol": ev.Protocol,
	})

	stored, err := p.store.InsertIndividual(ctx, ev)
	if err != nil {
		p.abort(elog, "insert_individual", err)
		return
	}

	enriched, err := p.enrich(ctx, stored)
	if err != nil {
		p.abort(elog, "enrich", err)
		return
	}

	final, err := p.store.InsertProcessed(ctx, enriched)
	if err != nil {
		p.abort(elog, "insert_processed", err)
		return
	}

	counters := []struct {
		name string
		run  func(context.Context) error
	}{
		{"top_username", func(ctx context.Context) error {
			_, err := p.store.BumpUsername(ctx, final.Username)
			return err
		}},
		{"top_password", func(ctx context.Context) error {
			_, err := p.store.BumpPassword(ctx, final.Password)
			return err
		}},
		{"top_ip", func(ctx context.Context) error {
			_, err := p.store.BumpIP(ctx, final.IP)
			return err
		}},
		{"top_protocol", func(ctx context.Context) error {
			_, err := p.store.BumpProtocol(ctx, final.Protocol, 1)
			return err
		}},
		{"top_city", func(ctx context.Context) error {
			_, err := p.store.BumpCity(ctx, final.City)
			return err
		}},
		{"top_region", func(ctx context.Context) error {
			_, err := p.store.BumpRegion(ctx, final.Region)
			return err
		}},
		{"top_country", func(ctx context.Context) error {
			_, err := p.store.BumpCountry(ctx, final.Country)
			return err
		}},
		{"top_timezone", func(ctx context.Context) error {
			_, err := p.store.BumpTimezone(ctx, final.Timezone)
			return err
		}},
		{"top_org", func(ctx context.Context) error {
			_, err := p.store.BumpOrg(ctx, final.Org)
			return err
		}},
		{"top_postal", func(ctx context.Context) error {
			_, err := p.store.BumpPostal(ctx, final.Postal)
			return err
		}},
		{"top_usr_pass_combo", func(ctx context.Context) error {
			_, err := p.store.BumpCombo(ctx, final.Username, final.Password)
			return err
		}},
	}
	for _, c := range counters {
		if err := c.run(ctx); err != nil {
			p.abort(elog, c.name, err)
			return
		}
	}

	now := time.Now().UnixMilli()
	advances := []struct {
		name string
		run  func(context.Context, int64) (model.Bucket, error)
	}{
		{"top_hourly", p.store.AdvanceHourly},
		{"top_daily", p.store.AdvanceDaily},
		{"top_weekly", p.store.AdvanceWeekly},
		{"top_yearly", p.store.AdvanceYearly},
	}
	for _, a := range advances {
		if _, err := a.run(ctx, now); err != nil {
			p.abort(elog, a.name, err)
			return
		}
	}

	frame, err := p.bus.Broadcast(hub.ParseTypeProcessedIndividual, final)
	if err != nil {
		p.abort(elog, "broadcast", err)
		return
	}
	if p.mirror != nil {
		p.mirror.Publish(ctx, frame)
	}

	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	elog.WithField("took", time.Since(start)).Debug("event aggregated")
}

// enrich builds the processed record for a stored event, reusing the newest
// row already held for the same address when it is fresh enough. Freshness
// is judged against the event's own timestamp, not the wall clock.
func (p *Pipeline) enrich(ctx context.Context, ev model.Individual) (model.ProcessedIndividual, error) {
	out := model.ProcessedIndividual{
		ID:        ev.ID,
		Username:  ev.Username,
		Password:  ev.Password,
		IP:        ev.IP,
		Protocol:  ev.Protocol,
		Timestamp: ev.Timestamp,
	}

	cached, err := p.store.LatestProcessedByIP(ctx, ev.IP)
	if err != nil {
		return out, err
	}
	if cached != nil && ev.Timestamp-cached.Timestamp <= enrichmentTTLMS {
		metrics.EnrichmentCacheHits.Inc()
		out.CopyEnrichmentFrom(cached)
		return out, nil
	}

	details, err := p.intel.Lookup(ctx, ev.IP)
	if err != nil {
		return out, err
	}
	details.Fill(&out)
	return out, nil
}

func (p *Pipeline) abort(elog *logrus.Entry, step string, err error) {
	metrics.PipelineFailures.WithLabelValues(step).Inc()
	elog.WithError(err).WithField("step", step).Error("aggregation aborted")
}
