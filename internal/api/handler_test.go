package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ignite/mailtrack/internal/campaign"
	"github.com/ignite/mailtrack/internal/pkg/distlock"
	"github.com/ignite/mailtrack/internal/registry"
)

type fakeTracker struct {
	knownRecipient int64
	knownToken     string
	targetURL      string
	openErr        error
	clickErr       error
	reportErr      error
	report         *registry.Report

	openCalls  int
	clickCalls int
}

func (f *fakeTracker) RecordOpen(_ context.Context, recipientID int64, _, _ string) (bool, error) {
	f.openCalls++
	if f.openErr != nil {
		return false, f.openErr
	}
	return recipientID == f.knownRecipient, nil
}

func (f *fakeTracker) RecordClick(_ context.Context, token, _, _ string) (string, error) {
	f.clickCalls++
	if f.clickErr != nil {
		return "", f.clickErr
	}
	if token != f.knownToken {
		return "", registry.ErrLinkNotFound
	}
	return f.targetURL, nil
}

func (f *fakeTracker) Report(_ context.Context) (*registry.Report, error) {
	if f.reportErr != nil {
		return nil, f.reportErr
	}
	if f.report != nil {
		return f.report, nil
	}
	return &registry.Report{}, nil
}

type fakeSender struct {
	report *campaign.Report
	err    error
}

func (f *fakeSender) SendCampaign(_ context.Context) (*campaign.Report, error) {
	return f.report, f.err
}

func newTestServer(t *testing.T, tracker *fakeTracker, sender *fakeSender) *httptest.Server {
	t.Helper()
	h, err := NewHandler(tracker, sender)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestPixelAlwaysSameImage(t *testing.T) {
	tracker := &fakeTracker{knownRecipient: 1}
	srv := newTestServer(t, tracker, &fakeSender{})

	tests := []struct {
		name string
		path string
	}{
		{"known recipient", "/tracker/1.png"},
		{"unknown recipient", "/tracker/999.png"},
		{"non-numeric id", "/tracker/abc.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
				t.Errorf("content type = %q, want image/png", ct)
			}
			var buf bytes.Buffer
			buf.ReadFrom(resp.Body)
			if !bytes.Equal(buf.Bytes(), pixelPNG) {
				t.Error("response body differs from the pixel image")
			}
		})
	}
}

func TestPixelServedOnStoreError(t *testing.T) {
	tracker := &fakeTracker{openErr: errors.New("db down")}
	srv := newTestServer(t, tracker, &fakeSender{})

	resp, err := http.Get(srv.URL + "/tracker/1.png")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 even when recording fails", resp.StatusCode)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !bytes.Equal(buf.Bytes(), pixelPNG) {
		t.Error("response body differs from the pixel image")
	}
}

func TestPixelSkipsRecordForMalformedID(t *testing.T) {
	tracker := &fakeTracker{}
	srv := newTestServer(t, tracker, &fakeSender{})

	resp, err := http.Get(srv.URL + "/tracker/not-a-number.png")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if tracker.openCalls != 0 {
		t.Errorf("openCalls = %d, want 0 for malformed id", tracker.openCalls)
	}
}

func TestClickRedirectsKnownToken(t *testing.T) {
	tracker := &fakeTracker{knownToken: "tok-1", targetURL: "https://example.com/video"}
	srv := newTestServer(t, tracker, &fakeSender{})

	resp, err := noRedirectClient().Get(srv.URL + "/click/tok-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://example.com/video" {
		t.Errorf("Location = %q, want target URL", loc)
	}
}

func TestClickUnknownToken(t *testing.T) {
	tracker := &fakeTracker{knownToken: "tok-1"}
	srv := newTestServer(t, tracker, &fakeSender{})

	resp, err := noRedirectClient().Get(srv.URL + "/click/bogus")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "Invalid link") {
		t.Errorf("body = %q, want Invalid link", buf.String())
	}
}

func TestClickStoreError(t *testing.T) {
	tracker := &fakeTracker{clickErr: errors.New("db down")}
	srv := newTestServer(t, tracker, &fakeSender{})

	resp, err := noRedirectClient().Get(srv.URL + "/click/tok-1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestSendAll(t *testing.T) {
	sender := &fakeSender{report: &campaign.Report{
		Total:     3,
		Succeeded: 2,
		Failed:    []campaign.SendError{{Email: "x@y.com", Err: errors.New("mailbox unavailable")}},
	}}
	srv := newTestServer(t, &fakeTracker{}, sender)

	resp, err := http.Post(srv.URL+"/api/send-all-emails", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status    string `json:"status"`
		Total     int    `json:"total"`
		Succeeded int    `json:"succeeded"`
		Failed    []struct {
			Email string `json:"email"`
			Error string `json:"error"`
		} `json:"failed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "success" || body.Total != 3 || body.Succeeded != 2 {
		t.Errorf("body = %+v", body)
	}
	if len(body.Failed) != 1 || body.Failed[0].Email != "x@y.com" {
		t.Errorf("failed = %+v", body.Failed)
	}
}

func TestSendAllRosterFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("db down")}
	srv := newTestServer(t, &fakeTracker{}, sender)

	resp, err := http.Post(srv.URL+"/api/send-all-emails", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "error" || body["error"] == "" {
		t.Errorf("body = %+v", body)
	}
}

func TestDashboard(t *testing.T) {
	now := time.Now()
	tracker := &fakeTracker{report: &registry.Report{
		Recipients: []registry.Recipient{{ID: 1, Name: "Ann", Email: "a@x.com", CreatedAt: now}},
		Opens: []registry.OpenEvent{
			{ID: 1, RecipientID: 1, Name: "Ann", Email: "a@x.com", IP: "1.2.3.4", UserAgent: "Mail.app", CreatedAt: now},
		},
		Clicks: []registry.ClickEvent{},
	}}
	srv := newTestServer(t, tracker, &fakeSender{})

	resp, err := http.Get(srv.URL + "/dashboard")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	html := buf.String()

	for _, want := range []string{"a@x.com", "Mail.app", "No clicks recorded", "Send All Emails"} {
		if !strings.Contains(html, want) {
			t.Errorf("dashboard missing %q", want)
		}
	}
}

func TestDashboardStoreError(t *testing.T) {
	tracker := &fakeTracker{reportErr: errors.New("db down")}
	srv := newTestServer(t, tracker, &fakeSender{})

	resp, err := http.Get(srv.URL + "/dashboard")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &fakeTracker{}, &fakeSender{})

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "127.0.0.1:1234", "10.0.0.1"},
		{"single forwarded", map[string]string{"X-Forwarded-For": "10.0.0.9"}, "127.0.0.1:1234", "10.0.0.9"},
		{"real ip header", map[string]string{"X-Real-Ip": "10.1.1.1"}, "127.0.0.1:1234", "10.1.1.1"},
		{"remote addr fallback", nil, "192.168.1.5:9999", "192.168.1.5:9999"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := realIP(req); got != tt.want {
				t.Errorf("realIP = %q, want %q", got, tt.want)
			}
		})
	}
}

// heldLock always reports the lock as taken.
type heldLock struct{}

func (heldLock) Acquire(context.Context) (bool, error) { return false, nil }
func (heldLock) Release(context.Context) error         { return nil }

func TestSendAllRejectsConcurrentRun(t *testing.T) {
	sender := &fakeSender{report: &campaign.Report{}}
	h, err := NewHandler(&fakeTracker{}, sender)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	h.SetSendLockFactory(func() distlock.Lock { return heldLock{} })

	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/send-all-emails", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}
