package campaign

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/ignite/mailtrack/internal/config"
	"github.com/ignite/mailtrack/internal/metrics"
	"github.com/ignite/mailtrack/internal/pkg/logger"
	"github.com/ignite/mailtrack/internal/registry"
)

// Directory is the slice of the tracking registry the dispatcher needs:
// registration, link issuance and the send roster.
type Directory interface {
	RegisterRecipient(ctx context.Context, email, name string) (int64, error)
	IssueTrackingLink(ctx context.Context, recipientID int64, targetURL string) (string, error)
	Recipients(ctx context.Context) ([]registry.Recipient, error)
}

// SendError records one recipient's failure within a campaign send.
type SendError struct {
	Email string
	Err   error
}

func (e SendError) Error() string {
	return fmt.Sprintf("send to %s: %v", logger.RedactEmail(e.Email), e.Err)
}

// Report aggregates the outcome of a campaign send. Failed holds one
// entry per recipient whose pipeline failed; a failure never aborts the
// rest of the batch.
type Report struct {
	Total     int
	Succeeded int
	Failed    []SendError
}

// Dispatcher runs the per-recipient send pipeline (register, issue
// tracking link, render, transport) across a bounded worker pool.
type Dispatcher struct {
	directory Directory
	transport Transport
	renderer  *Renderer
	baseURL   string
	campaign  config.CampaignConfig
	workers   int
}

// NewDispatcher creates a dispatcher. baseURL is the public address
// tracked links and pixel URLs point back to.
func NewDispatcher(directory Directory, transport Transport, renderer *Renderer, baseURL string, campaign config.CampaignConfig) *Dispatcher {
	workers := campaign.Workers
	if workers <= 0 {
		workers = 5
	}
	return &Dispatcher{
		directory: directory,
		transport: transport,
		renderer:  renderer,
		baseURL:   baseURL,
		campaign:  campaign,
		workers:   workers,
	}
}

// SendOne runs the full pipeline for a single recipient. Registration
// is idempotent, so sending to an address that is already on the roster
// reuses its id; the tracking link is minted fresh for every send.
func (d *Dispatcher) SendOne(ctx context.Context, rec registry.Recipient) error {
	id, err := d.directory.RegisterRecipient(ctx, rec.Email, rec.Name)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	token, err := d.directory.IssueTrackingLink(ctx, id, d.campaign.TargetURL)
	if err != nil {
		return fmt.Errorf("issue link: %w", err)
	}

	trackedURL := fmt.Sprintf("%s/click/%s", d.baseURL, token)
	pixelURL := fmt.Sprintf("%s/tracker/%d.png", d.baseURL, id)

	html, err := d.renderer.RenderEmail(rec.Name, trackedURL, pixelURL)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	msg := &Message{
		FromName:  d.campaign.FromName,
		FromEmail: d.campaign.FromEmail,
		To:        rec.Email,
		Subject:   d.campaign.Subject,
		HTML:      html,
	}
	if err := d.transport.Send(ctx, msg); err != nil {
		return err
	}
	return nil
}

// SendCampaign sends to the full roster. Recipients are fanned out to
// the worker pool; each failure is captured in the report and the rest
// of the batch proceeds. Returns an error only when the roster itself
// cannot be loaded or the context is cancelled mid-send.
func (d *Dispatcher) SendCampaign(ctx context.Context) (*Report, error) {
	recipients, err := d.directory.Recipients(ctx)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}

	report := &Report{Total: len(recipients)}
	if len(recipients) == 0 {
		return report, nil
	}

	log.Printf("[Dispatcher] Sending campaign to %d recipients (workers=%d, transport=%s)",
		len(recipients), d.workers, d.transport.Name())

	jobs := make(chan registry.Recipient)
	var wg sync.WaitGroup
	var succeeded int64
	var mu sync.Mutex

	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			for rec := range jobs {
				if err := d.SendOne(ctx, rec); err != nil {
					metrics.SendFailures.Inc()
					log.Printf("[Dispatcher %d] Failed for %s: %v", workerNum, logger.RedactEmail(rec.Email), err)
					mu.Lock()
					report.Failed = append(report.Failed, SendError{Email: rec.Email, Err: err})
					mu.Unlock()
					continue
				}
				metrics.EmailsSent.Inc()
				atomic.AddInt64(&succeeded, 1)
			}
		}(i)
	}

feed:
	for _, rec := range recipients {
		select {
		case jobs <- rec:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	report.Succeeded = int(atomic.LoadInt64(&succeeded))
	log.Printf("[Dispatcher] Campaign done: %d sent, %d failed", report.Succeeded, len(report.Failed))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}
