package vehicleimage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/autogenius/autogenius/internal/catalog"
)

func TestFindReadsOGImage(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/Honda_Civic":
			w.Write([]byte(`<html><head><meta property="og:image" content="//upload.wikimedia.org/civic.jpg"></head></html>`))
		case "/Corolla":
			w.Write([]byte(`<html><head><meta property="og:image" content="https://upload.wikimedia.org/corolla.jpg"></head></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := New(srv.URL+"/", nil)
	ctx := context.Background()

	civic := catalog.Vehicle{Manufacturer: "Honda", Model: "Civic", Year: 2018}
	if got := f.Find(ctx, civic); got != "https://upload.wikimedia.org/civic.jpg" {
		t.Errorf("Find(civic) = %q", got)
	}
	f.Find(ctx, civic)
	if hits.Load() != 1 {
		t.Errorf("expected cached second lookup, got %d requests", hits.Load())
	}

	corolla := catalog.Vehicle{Manufacturer: "Toyota", Model: "Corolla", Year: 2020}
	if got := f.Find(ctx, corolla); got != "https://upload.wikimedia.org/corolla.jpg" {
		t.Errorf("Find(corolla) = %q, want model-only fallback", got)
	}
}

func TestFindMissingImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>no image</title></head></html>`))
	}))
	defer srv.Close()

	f := New(srv.URL+"/", nil)
	if got := f.Find(context.Background(), catalog.Vehicle{Manufacturer: "Kia", Model: "Rio", Year: 2020}); got != "" {
		t.Errorf("Find = %q, want empty", got)
	}
}

func TestFindUnreachable(t *testing.T) {
	f := New("http://127.0.0.1:1/", nil)
	if got := f.Find(context.Background(), catalog.Vehicle{Manufacturer: "Kia", Model: "Rio", Year: 2020}); got != "" {
		t.Errorf("Find = %q, want empty", got)
	}
}
