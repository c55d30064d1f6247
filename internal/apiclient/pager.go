package apiclient

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/chatrooms/internal/models"
)

type fetchFunc func(ctx context.Context, before string, limit int) ([]models.Message, error)

// Pager loads room history backwards, page by page.
// Loads are serialized so a view never has more than one request in flight.
type Pager struct {
	mu     sync.Mutex
	fetch  fetchFunc
	limit  int
	cursor string
	end    bool
}

func (c *Client) MessagePager(roomID uuid.UUID, limit int) *Pager {
	return newPager(func(ctx context.Context, before string, limit int) ([]models.Message, error) {
		return c.ListMessages(ctx, roomID, before, limit)
	}, limit)
}

func newPager(fetch fetchFunc, limit int) *Pager {
	return &Pager{fetch: fetch, limit: limit}
}

// Next returns the next older page. At the end of history it returns nothing and sends no request
func (p *Pager) Next(ctx context.Context) ([]models.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.end {
		return nil, nil
	}

	page, err := p.fetch(ctx, p.cursor, p.limit)
	if err != nil {
		return nil, err
	}

	if len(page) == 0 {
		p.end = true
		return nil, nil
	}

	p.cursor = page[len(page)-1].ID.String()
	return page, nil
}

func (p *Pager) End() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.end
}

// Reset starts over from the newest page, e.g. after switching rooms
func (p *Pager) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cursor = ""
	p.end = false
}
