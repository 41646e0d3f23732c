package campaign

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRenderEmail(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	html, err := r.RenderEmail("Ann", "http://localhost:4000/click/tok-1", "http://localhost:4000/tracker/1.png")
	if err != nil {
		t.Fatalf("RenderEmail: %v", err)
	}

	for _, want := range []string{
		"Hello Ann",
		`href="http://localhost:4000/click/tok-1"`,
		`src="http://localhost:4000/tracker/1.png"`,
		fmt.Sprintf("&copy; %d", time.Now().Year()),
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered email missing %q", want)
		}
	}
}

func TestRenderEmailEmptyNameFallsBack(t *testing.T) {
	r, err := NewRenderer("")
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	html, err := r.RenderEmail("", "http://x/click/t", "http://x/tracker/1.png")
	if err != nil {
		t.Fatalf("RenderEmail: %v", err)
	}
	if !strings.Contains(html, "Hello Friend") {
		t.Error("empty name should render the default greeting")
	}
}

func TestNewRendererCustomTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creative.html")
	if err := os.WriteFile(path, []byte(`<p>{{ name }}: {{ tracked_url }}</p>`), 0644); err != nil {
		t.Fatalf("write template: %v", err)
	}

	r, err := NewRenderer(path)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	html, err := r.RenderEmail("Bea", "http://x/click/t", "")
	if err != nil {
		t.Fatalf("RenderEmail: %v", err)
	}
	if html != "<p>Bea: http://x/click/t</p>" {
		t.Errorf("rendered = %q", html)
	}
}

func TestNewRendererMissingFile(t *testing.T) {
	if _, err := NewRenderer("/nonexistent/creative.html"); err == nil {
		t.Error("expected error for missing template file")
	}
}
