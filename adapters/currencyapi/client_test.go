package currencyapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/arvend/tokengate/adapters/currencyapi"
)

func TestFetchRate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" {
			t.Errorf("path = %q, want /latest", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("base") != "USD" {
			t.Errorf("base = %q, want USD", q.Get("base"))
		}
		if q.Get("symbols") != "BRL" {
			t.Errorf("symbols = %q, want BRL", q.Get("symbols"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"base":"USD","rates":{"BRL":5.43}}`))
	}))
	defer srv.Close()

	c := currencyapi.NewClient(currencyapi.Config{BaseURL: srv.URL})
	rate, err := c.FetchRate(context.Background(), "BRL")
	if err != nil {
		t.Fatal(err)
	}
	if rate != 5.43 {
		t.Errorf("rate = %g, want 5.43", rate)
	}
}

func TestFetchRateMissingCurrency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rates":{}}`))
	}))
	defer srv.Close()

	c := currencyapi.NewClient(currencyapi.Config{BaseURL: srv.URL})
	if _, err := c.FetchRate(context.Background(), "BRL"); err == nil {
		t.Error("FetchRate with missing currency: got nil error")
	}
}

func TestFetchRateInvalidValues(t *testing.T) {
	for _, body := range []string{
		`{"rates":{"BRL":0}}`,
		`{"rates":{"BRL":-2}}`,
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(body))
		}))

		c := currencyapi.NewClient(currencyapi.Config{BaseURL: srv.URL})
		if _, err := c.FetchRate(context.Background(), "BRL"); err == nil {
			t.Errorf("FetchRate with body %s: got nil error", body)
		}
		srv.Close()
	}
}

func TestFetchRateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := currencyapi.NewClient(currencyapi.Config{BaseURL: srv.URL})
	if _, err := c.FetchRate(context.Background(), "BRL"); err == nil {
		t.Error("FetchRate with 500: got nil error")
	}
}
