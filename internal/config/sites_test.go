package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pauljones0/aki-watcher/internal/condition"
)

const sitesYAML = `
sites:
  - name: 森林公園ゴルフ場
    url: https://golf.example.jp/reserve
    notifyWhen:
      textContains: 空き枠
    minDaysAhead: 7
  - name: 会員サイト
    url: https://members.example.jp/calendar
    login:
      url: https://members.example.jp/login
      usernameSelector: "#user"
      passwordSelector: "#pass"
      submitSelector: "button[type=submit]"
      usernameEnv: MEMBER_USER
      passwordEnv: MEMBER_PASS
    notifyWhen:
      elementCountGreaterThan:
        selector: td.open
        count: 0
  - name: ショップ
    url: https://shop.example.jp/list
    notifyWhen:
      productScan:
        productNameRegex: '<h3 class="item">([^<]+)</h3>'
        productUrlRegex: 'href="([^"]+)"'
        baseUrl: https://shop.example.jp
        excludeProducts:
          - 見本品
`

func TestParseSites_YAML(t *testing.T) {
	t.Setenv("MEMBER_USER", "alice")
	t.Setenv("MEMBER_PASS", "secret")

	sites, err := ParseSites([]byte(sitesYAML), false)
	if err != nil {
		t.Fatalf("ParseSites() error = %v", err)
	}
	if len(sites) != 3 {
		t.Fatalf("got %d sites, want 3", len(sites))
	}

	golf := sites[0]
	if c, ok := golf.Condition.(condition.TextContains); !ok || c.Needle != "空き枠" {
		t.Errorf("golf condition = %#v", golf.Condition)
	}
	if golf.MinDaysAhead == nil || *golf.MinDaysAhead != 7 {
		t.Errorf("golf MinDaysAhead = %v", golf.MinDaysAhead)
	}
	if golf.NeedsRendering() {
		t.Error("golf should use the plain fetcher")
	}

	members := sites[1]
	if members.Login == nil || members.Login.Username != "alice" || members.Login.Password != "secret" {
		t.Errorf("members login = %+v", members.Login)
	}
	if !members.NeedsRendering() {
		t.Error("a login site must be rendered")
	}
	if c, ok := members.Condition.(condition.ElementCountGreaterThan); !ok || c.Selector != "td.open" || c.Count != 0 {
		t.Errorf("members condition = %#v", members.Condition)
	}

	shop := sites[2]
	scan, ok := shop.Condition.(condition.ProductScan)
	if !ok {
		t.Fatalf("shop condition = %#v", shop.Condition)
	}
	if scan.URL == nil || scan.BaseURL != "https://shop.example.jp" || len(scan.Exclude) != 1 {
		t.Errorf("shop scan = %+v", scan)
	}
}

func TestParseSites_JSON(t *testing.T) {
	doc := `{"sites":[{"name":"a","url":"https://a.example.jp","notifyWhen":{"textNotContains":"満席"}}]}`
	sites, err := ParseSites([]byte(doc), true)
	if err != nil {
		t.Fatalf("ParseSites() error = %v", err)
	}
	if c, ok := sites[0].Condition.(condition.TextNotContains); !ok || c.Needle != "満席" {
		t.Errorf("condition = %#v", sites[0].Condition)
	}
}

func TestParseSites_NoCondition(t *testing.T) {
	doc := "sites:\n  - name: a\n    url: https://a.example.jp\n"
	sites, err := ParseSites([]byte(doc), false)
	if err != nil {
		t.Fatalf("ParseSites() error = %v", err)
	}
	if sites[0].Condition != nil {
		t.Errorf("condition = %#v, want nil", sites[0].Condition)
	}
}

func TestParseSites_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "Empty",
			doc:     "",
			wantErr: "no sites configured",
		},
		{
			name:    "Missing URL",
			doc:     "sites:\n  - name: a\n",
			wantErr: "URL is required",
		},
		{
			name:    "Duplicate names",
			doc:     "sites:\n  - {name: a, url: 'https://a.example.jp'}\n  - {name: a, url: 'https://b.example.jp'}\n",
			wantErr: "duplicate site name",
		},
		{
			name:    "Two modes",
			doc:     "sites:\n  - name: a\n    url: https://a.example.jp\n    notifyWhen:\n      textContains: x\n      textNotContains: y\n",
			wantErr: "more than one condition",
		},
		{
			name:    "Bad regex",
			doc:     "sites:\n  - name: a\n    url: https://a.example.jp\n    notifyWhen:\n      textMatchesRegex: '(x'\n",
			wantErr: "not a valid regular expression",
		},
		{
			name:    "Structural without rendering",
			doc:     "sites:\n  - name: a\n    url: https://a.example.jp\n    notifyWhen:\n      elementExists: td.open\n",
			wantErr: "needs a rendered page",
		},
		{
			name:    "Unknown key",
			doc:     "sites:\n  - name: a\n    url: https://a.example.jp\n    notify: {textContains: x}\n",
			wantErr: "failed to parse sites YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSites([]byte(tt.doc), false)
			if err == nil {
				t.Fatalf("ParseSites() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ParseSites() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseSites_MissingLoginSecret(t *testing.T) {
	t.Setenv("MEMBER_USER", "alice")
	t.Setenv("MEMBER_PASS", "")

	_, err := ParseSites([]byte(sitesYAML), false)
	if err == nil || !strings.Contains(err.Error(), "MEMBER_PASS") {
		t.Errorf("ParseSites() error = %v, want missing MEMBER_PASS", err)
	}
}

func TestLoadSites(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "sites.yml")
	if err := os.WriteFile(path, []byte("sites:\n  - name: a\n    url: https://a.example.jp\n    render: true\n    notifyWhen:\n      elementExists: td.open\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	sites, err := LoadSites(path)
	if err != nil {
		t.Fatalf("LoadSites() error = %v", err)
	}
	if len(sites) != 1 || !sites[0].Render {
		t.Errorf("sites = %+v", sites)
	}

	if _, err := LoadSites(filepath.Join(dir, "missing.yml")); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`{"sites":[]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSites(empty); !errors.Is(err, ErrNoSites) {
		t.Errorf("LoadSites() error = %v, want ErrNoSites", err)
	}
}
