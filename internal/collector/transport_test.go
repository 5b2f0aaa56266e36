package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestHTTPTransport_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"page":"` + r.URL.Query().Get("page") + `"}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport("")
	resp, err := tr.Get(context.Background(), srv.URL, url.Values{"page": {"7"}},
		map[string]string{"Accept": "application/json"}, time.Second)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != 200 || string(resp.Body) != `{"page":"7"}` {
		t.Errorf("unexpected response %d %s", resp.StatusCode, resp.Body)
	}
}

func TestHTTPTransport_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	tr := NewHTTPTransport("")
	if _, err := tr.Get(context.Background(), srv.URL, nil, nil, 50*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestRegistry(t *testing.T) {
	ft := &fakeTransport{}
	chotot, err := NewAdapter(ChototName, Settings{}, ft)
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	r := NewRegistry(chotot)
	if err := r.Register(NewBatdongsanAdapter(Settings{}, ft)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(chotot); err == nil {
		t.Error("expected duplicate registration error")
	}
	if names := r.Names(); len(names) != 2 || names[0] != "batdongsan" || names[1] != "chotot" {
		t.Errorf("unexpected names %v", names)
	}
	if _, err := r.Get("zillow"); err == nil {
		t.Error("expected unknown source error")
	}
	if _, err := NewAdapter("zillow", Settings{}, ft); err == nil {
		t.Error("expected unknown source error from NewAdapter")
	}
}
