package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeS3 answers the handful of S3 calls the store makes.
type fakeS3 struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.SplitN(strings.Trim(r.URL.Path, "/"), "/", 2)
	bucket := parts[0]
	switch {
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !f.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case len(parts) == 1 && r.Method == http.MethodPut:
		f.buckets[bucket] = true
		w.WriteHeader(http.StatusOK)
	case len(parts) == 2 && r.Method == http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[bucket+"/"+parts[1]] = body
		f.types[bucket+"/"+parts[1]] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func newTestStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{buckets: map[string]bool{}, objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	store, err := New(Config{
		Endpoint:  srv.URL,
		AccessKey: "tornado",
		SecretKey: "tornado-secret",
		Bucket:    "screenshots",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store, fake
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{Bucket: "b"}); err == nil {
		t.Fatal("expected missing endpoint to fail")
	}
	if _, err := New(Config{Endpoint: "localhost:9000"}); err == nil {
		t.Fatal("expected missing bucket to fail")
	}
}

func TestEnsureBucketCreatesOnce(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()
	if err := store.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket() error = %v", err)
	}
	if !fake.buckets["screenshots"] {
		t.Fatal("expected bucket to be created")
	}
	if err := store.EnsureBucket(ctx); err != nil {
		t.Fatalf("second EnsureBucket() error = %v", err)
	}
}

func TestPutObjectAndPresign(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	if err := store.PutObject(ctx, "/bug-reports/r1.png", "image/png", []byte("png-bytes")); err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	// Plain-HTTP uploads may arrive aws-chunked, so only look for the payload.
	if got := string(fake.objects["screenshots/bug-reports/r1.png"]); !strings.Contains(got, "png-bytes") {
		t.Fatalf("stored body = %q", got)
	}
	if got := fake.types["screenshots/bug-reports/r1.png"]; got != "image/png" {
		t.Fatalf("stored content type = %q", got)
	}

	link, err := store.PresignedURL(ctx, "bug-reports/r1.png", 15*time.Minute)
	if err != nil {
		t.Fatalf("PresignedURL() error = %v", err)
	}
	if !strings.Contains(link, "/screenshots/bug-reports/r1.png") || !strings.Contains(link, "X-Amz-Expires=900") {
		t.Fatalf("unexpected presigned url %q", link)
	}
	if err := store.PutObject(ctx, " ", "image/png", nil); err == nil {
		t.Fatal("expected empty key to fail")
	}
}
