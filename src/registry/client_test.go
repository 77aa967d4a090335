package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestManifestExists(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.Method != http.MethodHead {
			t.Errorf("method = %s", r.Method)
		}
		switch r.URL.Path {
		case "/v2/org/app/manifests/1.0":
			w.WriteHeader(http.StatusOK)
		case "/v2/org/app/manifests/missing":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	c := &Client{Base: srv.URL, Token: "tok"}

	ok, err := c.ManifestExists(context.Background(), "org/app", "1.0")
	if err != nil || !ok {
		t.Errorf("ManifestExists(1.0) = %v, %v", ok, err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}

	ok, err = c.ManifestExists(context.Background(), "org/app", "missing")
	if err != nil || ok {
		t.Errorf("ManifestExists(missing) = %v, %v", ok, err)
	}

	if _, err = c.ManifestExists(context.Background(), "org/app", "weird"); err == nil {
		t.Error("unexpected status did not error")
	}
}

func TestTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/org/app/tags/list" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		u, p, _ := r.BasicAuth()
		if u != "bob" || p != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"name":"org/app","tags":["1.0","1.1"]}`))
	}))
	defer srv.Close()

	c := &Client{Base: srv.URL, Username: "bob", Password: "hunter2"}
	tags, err := c.Tags(context.Background(), "org/app")
	if err != nil {
		t.Fatalf("Tags() = %v", err)
	}
	if len(tags) != 2 || tags[0] != "1.0" || tags[1] != "1.1" {
		t.Errorf("tags = %v", tags)
	}

	c.Username = "eve"
	if _, err := c.Tags(context.Background(), "org/app"); err == nil {
		t.Error("unauthorized request did not error")
	}
}
