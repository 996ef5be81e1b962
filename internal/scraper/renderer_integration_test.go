//go:build integration

package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pauljones0/aki-watcher/internal/config"
)

// Runs a real browser against a local login-protected site. Needs Chrome
// (or CHROME_PATH) for chromedp and installed browsers for playwright.

func newLoginSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if r.FormValue("user") == "alice" && r.FormValue("pass") == "secret" {
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "ok", Path: "/"})
			}
			http.Redirect(w, r, "/calendar", http.StatusSeeOther)
			return
		}
		w.Write([]byte(`<form method="post" action="/login">
			<input id="user" name="user"><input id="pass" name="pass" type="password">
			<button id="go" type="submit">login</button></form>`))
	})
	mux.HandleFunc("/calendar", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "ok" {
			w.Write([]byte(`<p>ログインしてください</p>`))
			return
		}
		w.Write([]byte(`<div id="cal"></div><script>
			for (let i = 0; i < 3; i++) {
				const td = document.createElement("td");
				td.className = "open";
				document.getElementById("cal").appendChild(td);
			}</script>`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRenderers_LoginAndRender(t *testing.T) {
	for _, kind := range []string{config.RendererChromedp, config.RendererPlaywright} {
		t.Run(kind, func(t *testing.T) {
			server := newLoginSite(t)
			ctx := context.Background()

			r, err := NewRenderer(ctx, kind, os.Getenv("CHROME_PATH"), 20*time.Second)
			if err != nil {
				t.Skipf("renderer unavailable: %v", err)
			}
			defer r.Close()

			login := config.Login{
				URL:              server.URL + "/login",
				UsernameSelector: "#user",
				PasswordSelector: "#pass",
				SubmitSelector:   "#go",
				Username:         "alice",
				Password:         "secret",
			}
			if err := r.Authenticate(ctx, login); err != nil {
				t.Fatalf("Authenticate() error = %v", err)
			}

			html, err := r.Fetch(ctx, server.URL+"/calendar", nil)
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if got := strings.Count(html, `class="open"`); got != 3 {
				t.Errorf("rendered %d open cells, want 3:\n%s", got, html)
			}
		})
	}
}
