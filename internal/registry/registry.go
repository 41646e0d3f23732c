package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/mailtrack/internal/pkg/logger"
)

// ErrLinkNotFound is returned by RecordClick for tokens that were never
// issued. Callers surface it as a client-visible "invalid link" response,
// not a server error.
var ErrLinkNotFound = errors.New("tracking link not found")

// Registry handles recipient registration, token issuance and open/click
// event recording against the store. The cache is optional; a nil cache
// means every click resolves its token from the database.
type Registry struct {
	store *Store
	cache *LinkCache
}

// New creates a registry over the given store.
func New(store *Store) *Registry {
	return &Registry{store: store}
}

// SetLinkCache attaches a read-through token→link cache. Links are
// immutable once minted, so entries never go stale.
func (r *Registry) SetLinkCache(cache *LinkCache) {
	r.cache = cache
}

// RegisterRecipient returns the id for the given email, inserting a new
// recipient when none exists. Registration is idempotent and
// first-write-wins: the stored name is never updated on repeat calls.
func (r *Registry) RegisterRecipient(ctx context.Context, email, name string) (int64, error) {
	rec, err := r.store.GetRecipientByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("lookup recipient: %w", err)
	}
	if rec != nil {
		return rec.ID, nil
	}

	id, inserted, err := r.store.InsertRecipient(ctx, name, email)
	if err != nil {
		return 0, fmt.Errorf("insert recipient: %w", err)
	}
	if inserted {
		return id, nil
	}

	// Lost a registration race; the row exists now.
	rec, err = r.store.GetRecipientByEmail(ctx, email)
	if err != nil {
		return 0, fmt.Errorf("re-lookup recipient: %w", err)
	}
	if rec == nil {
		return 0, fmt.Errorf("recipient %s missing after conflict", logger.RedactEmail(email))
	}
	return rec.ID, nil
}

// IssueTrackingLink mints a new random token bound to the recipient and
// target URL and persists it. The token is a v4 UUID: 122 bits from a
// CSPRNG, not derivable from the recipient id or issue time. The caller
// must have registered the recipient first; an unknown id surfaces as the
// store's FK violation.
func (r *Registry) IssueTrackingLink(ctx context.Context, recipientID int64, targetURL string) (string, error) {
	token := uuid.NewString()
	if err := r.store.InsertLink(ctx, recipientID, token, targetURL); err != nil {
		return "", fmt.Errorf("insert tracking link: %w", err)
	}
	return token, nil
}

// RecordOpen appends an open event for the recipient and reports whether
// one was recorded. Unknown ids are dropped without error: scanners and
// bots probe arbitrary pixel URLs, and the pixel response must not reveal
// which ids exist.
func (r *Registry) RecordOpen(ctx context.Context, recipientID int64, ip, userAgent string) (bool, error) {
	exists, err := r.store.RecipientExists(ctx, recipientID)
	if err != nil {
		return false, fmt.Errorf("check recipient: %w", err)
	}
	if !exists {
		logger.Debug("open for unknown recipient dropped", "recipient_id", recipientID, "ip", ip)
		return false, nil
	}

	if err := r.store.InsertOpen(ctx, recipientID, ip, userAgent); err != nil {
		return false, fmt.Errorf("insert open: %w", err)
	}
	return true, nil
}

// RecordClick resolves a token to its link, appends a click event and
// returns the link's target URL for redirect. Unknown tokens return
// ErrLinkNotFound with no row written. A double click inserts two rows;
// clicks are a log, not a counter.
func (r *Registry) RecordClick(ctx context.Context, token, ip, userAgent string) (string, error) {
	link, err := r.resolveLink(ctx, token)
	if err != nil {
		return "", err
	}
	if link == nil {
		return "", ErrLinkNotFound
	}

	if err := r.store.InsertClick(ctx, link.RecipientID, token, ip, userAgent); err != nil {
		return "", fmt.Errorf("insert click: %w", err)
	}
	return link.TargetURL, nil
}

// resolveLink checks the cache before the store. Only known tokens are
// cached, so a miss always falls through to the database.
func (r *Registry) resolveLink(ctx context.Context, token string) (*TrackingLink, error) {
	if r.cache != nil {
		if link := r.cache.Get(ctx, token); link != nil {
			return link, nil
		}
	}

	link, err := r.store.GetLinkByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("lookup link: %w", err)
	}
	if link != nil && r.cache != nil {
		r.cache.Put(ctx, link)
	}
	return link, nil
}

// Recipients returns the full roster for a campaign send.
func (r *Registry) Recipients(ctx context.Context) ([]Recipient, error) {
	return r.store.ListRecipients(ctx)
}

// Report assembles the three read-only projections for the dashboard.
func (r *Registry) Report(ctx context.Context) (*Report, error) {
	recipients, err := r.store.ListRecipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	opens, err := r.store.ListOpens(ctx)
	if err != nil {
		return nil, fmt.Errorf("list opens: %w", err)
	}
	clicks, err := r.store.ListClicks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clicks: %w", err)
	}
	return &Report{Recipients: recipients, Opens: opens, Clicks: clicks}, nil
}
