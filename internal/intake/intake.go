// Package intake is the producer side of the pipeline: validate the raw
// submission, count it, enqueue it.
package intake

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/brute-sh/brute/internal/metrics"
	"github.com/brute-sh/brute/internal/model"
	"github.com/brute-sh/brute/internal/pipeline"
)

var log = logrus.WithField("prefix", "intake")

// Sink admits raw credential submissions into the aggregation pipeline.
type Sink struct {
	pipe *pipeline.Pipeline
}

func NewSink(pipe *pipeline.Pipeline) *Sink {
	return &Sink{pipe: pipe}
}

// Submit validates one submission and queues it for aggregation. A rejected
// submission comes back as *model.ValidationError; a full backlog comes back
// as the pipeline's enqueue error once ctx expires.
func (s *Sink) Submit(ctx context.Context, username, password, ip, protocol string) error {
	ev, err := model.NewIndividual(username, password, ip, protocol)
	if err != nil {
		reason := "invalid"
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			reason = verr.Field
		}
		metrics.EventsRejected.WithLabelValues(reason).Inc()
		log.WithError(err).WithField("ip", ip).Debug("submission rejected")
		return err
	}

	if err := s.pipe.Enqueue(ctx, ev); err != nil {
		return err
	}
	metrics.EventsIngested.WithLabelValues(ev.Protocol).Inc()
	return nil
}
