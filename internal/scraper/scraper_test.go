package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/text/encoding/japanese"
)

func newTestClient() *Client {
	return New(5*time.Second, WithRetry(2, time.Millisecond))
}

func TestFetch_Success(t *testing.T) {
	var gotUA, gotLang, gotCustom string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotCustom = r.Header.Get("X-Requested-With")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<a href="#">12月14日(日) 空き枠：1組</a>`))
	}))
	defer server.Close()

	body, err := newTestClient().Fetch(context.Background(), server.URL, map[string]string{"X-Requested-With": "XMLHttpRequest"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(body, "空き枠") {
		t.Errorf("body = %q", body)
	}
	if !strings.Contains(gotUA, "Mozilla/5.0") {
		t.Errorf("User-Agent = %q, want browser-like", gotUA)
	}
	if !strings.HasPrefix(gotLang, "ja") {
		t.Errorf("Accept-Language = %q", gotLang)
	}
	if gotCustom != "XMLHttpRequest" {
		t.Errorf("custom header = %q", gotCustom)
	}
}

func TestFetch_ShiftJIS(t *testing.T) {
	encoded, err := japanese.ShiftJIS.NewEncoder().String(`<p>空き枠：2組</p>`)
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=Shift_JIS")
		w.Write([]byte(encoded))
	}))
	defer server.Close()

	body, err := newTestClient().Fetch(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body != `<p>空き枠：2組</p>` {
		t.Errorf("body = %q", body)
	}
}

func TestFetch_MetaCharset(t *testing.T) {
	encoded, err := japanese.EUCJP.NewEncoder().String(`<html><head><meta charset="euc-jp"></head><body>満席</body></html>`)
	if err != nil {
		t.Fatal(err)
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(encoded))
	}))
	defer server.Close()

	body, err := newTestClient().Fetch(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(body, "満席") {
		t.Errorf("body = %q", body)
	}
}

func TestFetch_UTF8AfterLongASCIIHead(t *testing.T) {
	page := "<html><head>" + strings.Repeat("<!-- padding -->", 100) + "</head><body>空き枠</body></html>"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer server.Close()

	body, err := newTestClient().Fetch(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if !strings.Contains(body, "空き枠") {
		t.Error("UTF-8 text after a long ASCII head was mangled")
	}
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := newTestClient().Fetch(context.Background(), server.URL, nil)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Fatalf("Fetch() error = %v, want HTTPError 404", err)
	}
	if !IsHTTPStatus(err, http.StatusNotFound) {
		t.Error("IsHTTPStatus() = false, want true")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
	if !strings.Contains(err.Error(), "HTTP 404") {
		t.Errorf("error message = %q", err.Error())
	}
}

func TestFetch_ServerErrorRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	body, err := newTestClient().Fetch(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body != "ok" {
		t.Errorf("body = %q", body)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("server called %d times, want 3", n)
	}
}

func TestFetch_ServerErrorExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient().Fetch(context.Background(), server.URL, nil)
	if !IsHTTPStatus(err, http.StatusBadGateway) {
		t.Errorf("Fetch() error = %v, want HTTPError 502", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("server called %d times, want 3", n)
	}
}

func TestFetch_TooManyRequestsRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	body, err := newTestClient().Fetch(context.Background(), server.URL, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if body != "ok" {
		t.Errorf("body = %q", body)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("server called %d times, want 2", n)
	}
}

func TestFetch_NoRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(5*time.Second, WithRetry(0, time.Millisecond)).Fetch(context.Background(), server.URL, nil)
	if !IsHTTPStatus(err, http.StatusServiceUnavailable) {
		t.Errorf("Fetch() error = %v, want HTTPError 503", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestFetch_BodyTooLarge(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(strings.Repeat("x", 2048)))
	}))
	defer server.Close()

	c := New(5*time.Second, WithRetry(2, time.Millisecond), WithMaxBody(1024))
	if _, err := c.Fetch(context.Background(), server.URL, nil); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("Fetch() error = %v, want size error", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("server called %d times, want 1", n)
	}
}

func TestFetch_InvalidURL(t *testing.T) {
	for _, u := range []string{"ftp://example.jp/file", "/relative", "not a url"} {
		if _, err := newTestClient().Fetch(context.Background(), u, nil); err == nil {
			t.Errorf("Fetch(%q) expected error", u)
		}
	}
}

func TestFetch_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(5*time.Second, WithRetry(5, time.Second)).Fetch(ctx, server.URL, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
}
