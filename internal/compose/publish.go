package compose

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tlcclub/tlcbot/core/logger"
	"github.com/tlcclub/tlcbot/internal/listing"
)

// BatchSender delivers an image batch to a chat.
type BatchSender interface {
	SendImageBatch(ctx context.Context, chatID int64, batch Batch) error
}

// Destination names a chat a listing is delivered to.
type Destination struct {
	Name   string
	ChatID int64
}

// Delivery is the outcome of one send.
type Delivery struct {
	Destination
	Err error
}

// Report collects per-destination outcomes of a publish.
type Report struct {
	Deliveries []Delivery
}

// OK reports whether the send to the named destination succeeded.
func (r Report) OK(name string) bool {
	for _, d := range r.Deliveries {
		if d.Name == name {
			return d.Err == nil
		}
	}
	return false
}

// Failed lists the destinations whose send failed.
func (r Report) Failed() []Delivery {
	var out []Delivery
	for _, d := range r.Deliveries {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

// Publish sends the same batch to every destination. Sends are independent:
// a failure is recorded in the report and never stops or undoes the others.
func Publish(ctx context.Context, sender BatchSender, batch Batch, dests ...Destination) Report {
	report := Report{Deliveries: make([]Delivery, len(dests))}
	var g errgroup.Group
	for i, d := range dests {
		report.Deliveries[i].Destination = d
		g.Go(func() error {
			start := time.Now()
			err := sender.SendImageBatch(ctx, d.ChatID, batch)
			report.Deliveries[i].Err = err
			attrs := []slog.Attr{
				slog.String("destination", d.Name),
				slog.Int64("chat_id", d.ChatID),
				slog.Int("photos", len(batch.Images)),
				slog.Duration("duration", logger.Took(start)),
			}
			if err != nil {
				wrapped := listing.Wrap(err, listing.CodePublishSendFailure, "send listing", "destination", d.Name)
				attrs = append(attrs,
					slog.String("err", wrapped.Error()),
					slog.String("err_code", string(listing.CodePublishSendFailure)),
				)
				logger.Error(ctx, "publish", "send.fail", attrs...)
				return nil
			}
			logger.Info(ctx, "publish", "send.ok", attrs...)
			return nil
		})
	}
	_ = g.Wait()
	return report
}
