package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/findesk/findesk/internal/auth"
	"github.com/findesk/findesk/internal/feed"
	apperrors "github.com/findesk/findesk/pkg/util"
)

const (
	defaultFeedWait = 25 * time.Second
	maxFeedWait     = 55 * time.Second
	feedBatchWindow = 250 * time.Millisecond
)

// FeedHandler exposes the live ticket feed over long-polling. Clients hold
// the request open until an update arrives or the wait window expires, then
// immediately poll again.
type FeedHandler struct {
	feed *feed.Feed
}

// NewFeedHandler constructs handler.
func NewFeedHandler(f *feed.Feed) *FeedHandler {
	return &FeedHandler{feed: f}
}

// Poll GET /tickets/feed.
func (h *FeedHandler) Poll(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	wait := defaultFeedWait
	if v := parseInt(c.Query("wait"), 0); v > 0 {
		wait = time.Duration(v) * time.Second
		if wait > maxFeedWait {
			wait = maxFeedWait
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), wait)
	defer cancel()

	updates, release := h.feed.Subscribe(ctx)
	defer release()

	var batch []feed.Update
	select {
	case update, ok := <-updates:
		if !ok {
			return c.JSON(fiber.Map{"data": []feed.Update{}})
		}
		batch = append(batch, update)
	case <-ctx.Done():
		return c.JSON(fiber.Map{"data": []feed.Update{}})
	}

	// Drain updates arriving in a short window so bursts come back together.
	window := time.NewTimer(feedBatchWindow)
	defer window.Stop()
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return c.JSON(fiber.Map{"data": batch})
			}
			batch = append(batch, update)
		case <-window.C:
			return c.JSON(fiber.Map{"data": batch})
		}
	}
}
