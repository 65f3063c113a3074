package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vigorish/oddscore/internal/fetcher"
	"github.com/vigorish/oddscore/pkg/models"
)

func TestFetchAllIsolatesFailures(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}))
	defer good.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer slow.Close()

	f := fetcher.New([]fetcher.Provider{
		{Name: "good", Adapter: "oddsapi", URL: good.URL, Timeout: 2 * time.Second},
		{Name: "broken", Adapter: "oddsapi", URL: broken.URL, Timeout: 2 * time.Second},
		{Name: "slow", Adapter: "oddsapi", URL: slow.URL, Timeout: 50 * time.Millisecond},
	})

	results := f.FetchAll(context.Background())
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	// Results stay in configuration order.
	if results[0].Provider.Name != "good" || results[1].Provider.Name != "broken" || results[2].Provider.Name != "slow" {
		t.Fatalf("results out of order: %s, %s, %s",
			results[0].Provider.Name, results[1].Provider.Name, results[2].Provider.Name)
	}

	if results[0].Err != nil {
		t.Errorf("good provider failed: %v", results[0].Err)
	}
	if string(results[0].Payload) != `{"ok":true}` {
		t.Errorf("good payload = %q", results[0].Payload)
	}

	if !errors.Is(results[1].Err, models.ErrProviderUnavailable) {
		t.Errorf("broken provider error = %v, want ErrProviderUnavailable", results[1].Err)
	}

	if !errors.Is(results[2].Err, models.ErrProviderTimeout) {
		t.Errorf("slow provider error = %v, want ErrProviderTimeout", results[2].Err)
	}
}

func TestFetchAllSetsHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	f := fetcher.New([]fetcher.Provider{
		{Name: "p", Adapter: "oddsapi", URL: srv.URL, Timeout: time.Second},
	})

	results := f.FetchAll(context.Background())
	if results[0].Err != nil {
		t.Fatalf("unexpected error: %v", results[0].Err)
	}
	if gotUA != "oddscore/1.0" {
		t.Errorf("User-Agent = %q, want oddscore/1.0", gotUA)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q, want application/json", gotAccept)
	}
}
