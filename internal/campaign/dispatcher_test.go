package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ignite/mailtrack/internal/config"
	"github.com/ignite/mailtrack/internal/registry"
)

// fakeDirectory implements Directory in memory and records every call.
type fakeDirectory struct {
	mu        sync.Mutex
	roster    []registry.Recipient
	nextID    int64
	ids       map[string]int64
	links     []string
	rosterErr error
}

func newFakeDirectory(roster []registry.Recipient) *fakeDirectory {
	return &fakeDirectory{roster: roster, ids: make(map[string]int64)}
}

func (f *fakeDirectory) RegisterRecipient(_ context.Context, email, _ string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id, ok := f.ids[email]; ok {
		return id, nil
	}
	f.nextID++
	f.ids[email] = f.nextID
	return f.nextID, nil
}

func (f *fakeDirectory) IssueTrackingLink(_ context.Context, recipientID int64, targetURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := fmt.Sprintf("token-%d-%d", recipientID, len(f.links))
	f.links = append(f.links, token)
	return token, nil
}

func (f *fakeDirectory) Recipients(_ context.Context) ([]registry.Recipient, error) {
	if f.rosterErr != nil {
		return nil, f.rosterErr
	}
	return f.roster, nil
}

func (f *fakeDirectory) linkCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.links)
}

// flakyTransport fails for one address and accepts everything else.
type flakyTransport struct {
	mu       sync.Mutex
	failFor  string
	accepted []string
}

func (t *flakyTransport) Name() string { return "fake" }

func (t *flakyTransport) Send(_ context.Context, msg *Message) error {
	if msg.To == t.failFor {
		return errors.New("mailbox unavailable")
	}
	t.mu.Lock()
	t.accepted = append(t.accepted, msg.To)
	t.mu.Unlock()
	return nil
}

func testRoster(n int) []registry.Recipient {
	roster := make([]registry.Recipient, n)
	for i := range roster {
		roster[i] = registry.Recipient{
			Name:  fmt.Sprintf("User %d", i),
			Email: fmt.Sprintf("user%d@example.com", i),
		}
	}
	return roster
}

func testDispatcher(dir *fakeDirectory, tr Transport, workers int) *Dispatcher {
	renderer, _ := NewRenderer("")
	return NewDispatcher(dir, tr, renderer, "http://localhost:4000", config.CampaignConfig{
		Subject:   "Hi",
		FromName:  "Acme",
		FromEmail: "news@acme.test",
		TargetURL: "https://example.com",
		Workers:   workers,
	})
}

func TestSendCampaignIsolatesFailures(t *testing.T) {
	const n = 8
	dir := newFakeDirectory(testRoster(n))
	tr := &flakyTransport{failFor: "user3@example.com"}
	d := testDispatcher(dir, tr, 3)

	report, err := d.SendCampaign(context.Background())
	if err != nil {
		t.Fatalf("SendCampaign: %v", err)
	}

	if report.Total != n {
		t.Errorf("Total = %d, want %d", report.Total, n)
	}
	if report.Succeeded != n-1 {
		t.Errorf("Succeeded = %d, want %d", report.Succeeded, n-1)
	}
	if len(report.Failed) != 1 || report.Failed[0].Email != "user3@example.com" {
		t.Errorf("Failed = %+v, want one entry for user3", report.Failed)
	}

	// Registration and link issuance happen before the transport, so the
	// failed recipient still gets both.
	if got := len(dir.ids); got != n {
		t.Errorf("registrations = %d, want %d", got, n)
	}
	if got := dir.linkCount(); got != n {
		t.Errorf("links issued = %d, want %d", got, n)
	}
}

func TestSendCampaignEmptyRoster(t *testing.T) {
	d := testDispatcher(newFakeDirectory(nil), &flakyTransport{}, 2)

	report, err := d.SendCampaign(context.Background())
	if err != nil {
		t.Fatalf("SendCampaign: %v", err)
	}
	if report.Total != 0 || report.Succeeded != 0 || len(report.Failed) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
}

func TestSendCampaignRosterError(t *testing.T) {
	dir := newFakeDirectory(nil)
	dir.rosterErr = errors.New("db down")
	d := testDispatcher(dir, &flakyTransport{}, 2)

	if _, err := d.SendCampaign(context.Background()); err == nil {
		t.Error("expected roster error")
	}
}

func TestSendCampaignCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := newFakeDirectory(testRoster(50))
	d := testDispatcher(dir, &flakyTransport{}, 2)

	report, err := d.SendCampaign(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if report == nil {
		t.Fatal("cancelled send must still return the partial report")
	}
}

func TestSendOneBuildsTrackedMessage(t *testing.T) {
	dir := newFakeDirectory(nil)
	tr := &captureTransport{}
	d := testDispatcher(dir, tr, 1)

	rec := registry.Recipient{Name: "Ann", Email: "ann@example.com"}
	if err := d.SendOne(context.Background(), rec); err != nil {
		t.Fatalf("SendOne: %v", err)
	}

	if tr.last == nil {
		t.Fatal("no message sent")
	}
	if tr.last.To != "ann@example.com" || tr.last.Subject != "Hi" {
		t.Errorf("message header = %+v", tr.last)
	}
	if !strings.Contains(tr.last.HTML, "http://localhost:4000/click/") {
		t.Error("message body missing tracked click URL")
	}
	if !strings.Contains(tr.last.HTML, "http://localhost:4000/tracker/1.png") {
		t.Error("message body missing pixel URL")
	}
}

// captureTransport keeps the last message for inspection.
type captureTransport struct {
	mu   sync.Mutex
	last *Message
}

func (t *captureTransport) Name() string { return "capture" }

func (t *captureTransport) Send(_ context.Context, msg *Message) error {
	t.mu.Lock()
	t.last = msg
	t.mu.Unlock()
	return nil
}
