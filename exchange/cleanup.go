package exchange

import (
	"context"
	"log/slog"
	"time"

	"github.com/aixprotocol/aix/model"
	"github.com/aixprotocol/aix/pkg/events"
)

// Cleanup purges expired sharing requests and expired marketplace bids. It
// returns the number of requests and bids removed.
func (svc *service) Cleanup(ctx context.Context) (int, int, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	now := svc.now()

	removedRequests := 0
	data, _, err := svc.requestsDB.List(ctx, 0, 1000)
	if err != nil {
		return 0, 0, err
	}
	for _, d := range data {
		r, ok := d.(model.SharingRequest)
		if !ok {
			continue
		}
		if !r.Expired(now) {
			continue
		}
		if err := svc.requestsDB.Delete(ctx, r.ID); err != nil {
			return removedRequests, 0, err
		}
		removedRequests++

		_ = svc.publisher.Publish(ctx, events.Event{
			Kind:       events.SharingExpired,
			NodeID:     r.RequesterID,
			EntityID:   r.ID,
			OccurredAt: now,
		})
	}

	removedBids := 0
	bidData, _, err := svc.bidsDB.List(ctx, 0, 1000)
	if err != nil {
		return removedRequests, removedBids, err
	}
	for _, d := range bidData {
		list, ok := d.([]model.MarketplaceBid)
		if !ok || len(list) == 0 {
			continue
		}

		kept := list[:0:0]
		for _, bid := range list {
			if !bid.Expired(now) {
				kept = append(kept, bid)
				continue
			}
			removedBids++

			_ = svc.publisher.Publish(ctx, events.Event{
				Kind:       events.BidExpired,
				NodeID:     bid.BidderID,
				EntityID:   bid.ID,
				OccurredAt: now,
			})
		}
		if len(kept) == len(list) {
			continue
		}
		if err := svc.storeBids(ctx, list[0].ModelID, kept); err != nil {
			return removedRequests, removedBids, err
		}
	}

	return removedRequests, removedBids, nil
}

// RunCleanup runs Cleanup on the given interval until the context is done.
func (svc *service) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			requests, bids, err := svc.Cleanup(ctx)
			if err != nil {
				svc.logger.Warn("cleanup pass failed", slog.Any("error", err))

				continue
			}
			if requests > 0 || bids > 0 {
				svc.logger.Info("cleanup pass",
					slog.Int("expired_requests", requests),
					slog.Int("expired_bids", bids),
				)
			}
		}
	}
}
