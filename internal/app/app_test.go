package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestApp_NewWiresMemoryBackend(t *testing.T) {
	t.Parallel()
	a, err := New(context.Background(), testConfig(), &Providers{}, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Store() == nil {
		t.Fatal("Store() returned nil")
	}
	if a.Manager() == nil {
		t.Fatal("Manager() returned nil")
	}
}

func TestApp_NewRejectsUnknownBackend(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Storage.Backend = "etcd"

	if _, err := New(context.Background(), cfg, &Providers{}); err == nil {
		t.Fatal("New with unknown storage backend should fail")
	}
}

func TestApp_HTTPEndpoints(t *testing.T) {
	t.Parallel()
	a, err := New(context.Background(), testConfig(), &Providers{}, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := []struct {
		path       string
		wantStatus int
	}{
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path, nil)
			rec := httptest.NewRecorder()
			a.httpSrv.Handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("GET %s = %d, want %d", tc.path, rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestApp_RunStopsOnContextCancel(t *testing.T) {
	t.Parallel()
	a, err := New(context.Background(), testConfig(), &Providers{}, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()

	// Give the listener a moment to come up, then stop.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelShutdown()
	if err := a.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestApp_LoadsStoryCatalogFromDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	storyYAML := "id: my-story\ntitle: My Story\nlevel: 1\ntext: the cat sat on the mat\n"
	if err := os.WriteFile(filepath.Join(dir, "my-story.yaml"), []byte(storyYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig()
	cfg.Stories.Dir = dir

	a, err := New(context.Background(), cfg, &Providers{}, WithMetrics(testMetrics(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	st, err := a.stories.Story(context.Background(), "my-story")
	if err != nil {
		t.Fatalf("catalog story: %v", err)
	}
	if len(st.Words) != 6 {
		t.Errorf("got %d words, want 6", len(st.Words))
	}
}

func TestApp_RejectsBrokenStoryCatalog(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Stories.Dir = filepath.Join(t.TempDir(), "missing")

	if _, err := New(context.Background(), cfg, &Providers{}); err == nil {
		t.Fatal("New with a missing catalog dir should fail")
	}
}
