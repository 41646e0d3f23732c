package registry

import (
	"context"
	"database/sql"
)

// Store provides database operations for tracking entities. It holds no
// business logic; every method maps to one parameterized statement.
type Store struct {
	db *sql.DB
}

// NewStore creates a new tracking store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetRecipientByEmail retrieves a recipient by email address.
// Returns (nil, nil) when no row exists.
func (s *Store) GetRecipientByEmail(ctx context.Context, email string) (*Recipient, error) {
	query := `SELECT id, name, email, created_at FROM recipients WHERE email = $1`

	r := &Recipient{}
	err := s.db.QueryRowContext(ctx, query, email).Scan(&r.ID, &r.Name, &r.Email, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// InsertRecipient inserts a new recipient and returns its id. The UNIQUE
// constraint on email is the backstop against concurrent registration:
// on conflict nothing is inserted and ok is false, so the caller re-reads.
func (s *Store) InsertRecipient(ctx context.Context, name, email string) (id int64, ok bool, err error) {
	query := `INSERT INTO recipients (name, email) VALUES ($1, $2)
		ON CONFLICT (email) DO NOTHING RETURNING id`

	err = s.db.QueryRowContext(ctx, query, name, email).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// RecipientExists reports whether a recipient id is known.
func (s *Store) RecipientExists(ctx context.Context, recipientID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM recipients WHERE id = $1)`, recipientID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListRecipients retrieves the full roster, most-recently-registered first.
func (s *Store) ListRecipients(ctx context.Context) ([]Recipient, error) {
	query := `SELECT id, name, email, created_at FROM recipients ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recipients []Recipient
	for rows.Next() {
		var r Recipient
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.CreatedAt); err != nil {
			return nil, err
		}
		recipients = append(recipients, r)
	}
	return recipients, rows.Err()
}

// InsertLink persists a freshly minted tracking link.
func (s *Store) InsertLink(ctx context.Context, recipientID int64, token, targetURL string) error {
	query := `INSERT INTO click_links (recipient_id, token, target_url) VALUES ($1, $2, $3)`
	_, err := s.db.ExecContext(ctx, query, recipientID, token, targetURL)
	return err
}

// GetLinkByToken retrieves a tracking link by its token.
// Returns (nil, nil) when the token is unknown.
func (s *Store) GetLinkByToken(ctx context.Context, token string) (*TrackingLink, error) {
	query := `SELECT id, recipient_id, token, target_url, created_at
		FROM click_links WHERE token = $1`

	l := &TrackingLink{}
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&l.ID, &l.RecipientID, &l.Token, &l.TargetURL, &l.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// InsertOpen appends an open event for a known recipient.
func (s *Store) InsertOpen(ctx context.Context, recipientID int64, ip, userAgent string) error {
	query := `INSERT INTO opens (recipient_id, ip, user_agent) VALUES ($1, $2, $3)`
	_, err := s.db.ExecContext(ctx, query, recipientID, ip, userAgent)
	return err
}

// InsertClick appends a click event bound to a link's token and recipient.
func (s *Store) InsertClick(ctx context.Context, recipientID int64, token, ip, userAgent string) error {
	query := `INSERT INTO click_logs (recipient_id, token, ip, user_agent) VALUES ($1, $2, $3, $4)`
	_, err := s.db.ExecContext(ctx, query, recipientID, token, ip, userAgent)
	return err
}

// ListOpens retrieves all open events joined to recipient identity,
// newest first.
func (s *Store) ListOpens(ctx context.Context) ([]OpenEvent, error) {
	query := `SELECT o.id, o.recipient_id, COALESCE(r.name, ''), COALESCE(r.email, ''),
		o.ip, o.user_agent, o.created_at
		FROM opens o
		LEFT JOIN recipients r ON o.recipient_id = r.id
		ORDER BY o.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opens []OpenEvent
	for rows.Next() {
		var o OpenEvent
		if err := rows.Scan(&o.ID, &o.RecipientID, &o.Name, &o.Email, &o.IP, &o.UserAgent, &o.CreatedAt); err != nil {
			return nil, err
		}
		opens = append(opens, o)
	}
	return opens, rows.Err()
}

// ListClicks retrieves all click events joined to recipient identity and
// the link's target URL, newest first.
func (s *Store) ListClicks(ctx context.Context) ([]ClickEvent, error) {
	query := `SELECT cl.id, cl.recipient_id, cl.token, COALESCE(r.name, ''), COALESCE(r.email, ''),
		COALESCE(l.target_url, ''), cl.ip, cl.user_agent, cl.created_at
		FROM click_logs cl
		LEFT JOIN recipients r ON cl.recipient_id = r.id
		LEFT JOIN click_links l ON cl.token = l.token
		ORDER BY cl.created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clicks []ClickEvent
	for rows.Next() {
		var c ClickEvent
		if err := rows.Scan(&c.ID, &c.RecipientID, &c.Token, &c.Name, &c.Email,
			&c.TargetURL, &c.IP, &c.UserAgent, &c.CreatedAt); err != nil {
			return nil, err
		}
		clicks = append(clicks, c)
	}
	return clicks, rows.Err()
}
