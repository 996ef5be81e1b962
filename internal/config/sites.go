package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pauljones0/aki-watcher/internal/condition"
	"github.com/pauljones0/aki-watcher/internal/validator"
)

var ErrNoSites = errors.New("no sites configured")

// Login describes a form login performed in the rendering browser before
// the site is fetched. Username and Password are resolved from the named
// environment variables at load time.
type Login struct {
	URL              string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
	UsernameEnv      string
	PasswordEnv      string

	Username string
	Password string
}

// Site is one watched page. It does not change during a run.
type Site struct {
	Name         string
	URL          string
	Login        *Login
	Condition    condition.Condition // nil when the sites file sets none
	MinDaysAhead *int
	Render       bool
	Headers      map[string]string
}

// NeedsRendering reports whether the site is fetched through a browser.
func (s Site) NeedsRendering() bool {
	return s.Render || s.Login != nil
}

type sitesFile struct {
	Sites []rawSite `yaml:"sites" json:"sites" validate:"required,min=1,dive"`
}

type rawSite struct {
	Name         string            `yaml:"name" json:"name" validate:"required"`
	URL          string            `yaml:"url" json:"url" validate:"required,http_url"`
	Login        *rawLogin         `yaml:"login" json:"login"`
	NotifyWhen   rawCondition      `yaml:"notifyWhen" json:"notifyWhen"`
	MinDaysAhead *int              `yaml:"minDaysAhead" json:"minDaysAhead" validate:"omitempty,gte=0"`
	Render       bool              `yaml:"render" json:"render"`
	Headers      map[string]string `yaml:"headers" json:"headers"`
}

type rawLogin struct {
	URL              string `yaml:"url" json:"url" validate:"required,http_url"`
	UsernameSelector string `yaml:"usernameSelector" json:"usernameSelector" validate:"required,selector"`
	PasswordSelector string `yaml:"passwordSelector" json:"passwordSelector" validate:"required,selector"`
	SubmitSelector   string `yaml:"submitSelector" json:"submitSelector" validate:"required,selector"`
	UsernameEnv      string `yaml:"usernameEnv" json:"usernameEnv" validate:"required"`
	PasswordEnv      string `yaml:"passwordEnv" json:"passwordEnv" validate:"required"`
}

type rawCondition struct {
	ElementExists           string          `yaml:"elementExists" json:"elementExists" validate:"omitempty,selector"`
	ElementNotExists        string          `yaml:"elementNotExists" json:"elementNotExists" validate:"omitempty,selector"`
	TextContains            string          `yaml:"textContains" json:"textContains"`
	TextNotContains         string          `yaml:"textNotContains" json:"textNotContains"`
	TextMatchesRegex        string          `yaml:"textMatchesRegex" json:"textMatchesRegex" validate:"omitempty,regexp"`
	ElementCountGreaterThan *rawCount       `yaml:"elementCountGreaterThan" json:"elementCountGreaterThan"`
	ProductScan             *rawProductScan `yaml:"productScan" json:"productScan"`
}

type rawCount struct {
	Selector string `yaml:"selector" json:"selector" validate:"required,selector"`
	Count    int    `yaml:"count" json:"count" validate:"gte=0"`
}

type rawProductScan struct {
	ProductNameRegex string   `yaml:"productNameRegex" json:"productNameRegex" validate:"required,regexp"`
	ProductURLRegex  string   `yaml:"productUrlRegex" json:"productUrlRegex" validate:"omitempty,regexp"`
	BaseURL          string   `yaml:"baseUrl" json:"baseUrl" validate:"omitempty,http_url"`
	ExcludeProducts  []string `yaml:"excludeProducts" json:"excludeProducts"`
}

// LoadSites reads the sites file at path. Files ending in .json are parsed
// as JSON, anything else as YAML.
func LoadSites(path string) ([]Site, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}
	sites, err := ParseSites(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sites, nil
}

// ParseSites decodes and validates a sites document. Unknown keys are rejected.
func ParseSites(data []byte, isJSON bool) ([]Site, error) {
	var f sitesFile
	if isJSON {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to parse sites JSON: %w", err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse sites YAML: %w", err)
		}
	}

	if len(f.Sites) == 0 {
		return nil, ErrNoSites
	}
	if err := validator.New().ValidateStruct(f); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(f.Sites))
	sites := make([]Site, 0, len(f.Sites))
	for _, raw := range f.Sites {
		if seen[raw.Name] {
			return nil, fmt.Errorf("duplicate site name %q", raw.Name)
		}
		seen[raw.Name] = true

		site, err := raw.compile()
		if err != nil {
			return nil, fmt.Errorf("site %q: %w", raw.Name, err)
		}
		sites = append(sites, site)
	}
	return sites, nil
}

func (r rawSite) compile() (Site, error) {
	cond, err := r.NotifyWhen.compile()
	if err != nil {
		return Site{}, err
	}
	if cond == nil {
		slog.Warn("No valid condition specified, site will never be available", "site", r.Name)
	}

	site := Site{
		Name:         r.Name,
		URL:          r.URL,
		Condition:    cond,
		MinDaysAhead: r.MinDaysAhead,
		Render:       r.Render,
		Headers:      r.Headers,
	}

	if r.Login != nil {
		login := &Login{
			URL:              r.Login.URL,
			UsernameSelector: r.Login.UsernameSelector,
			PasswordSelector: r.Login.PasswordSelector,
			SubmitSelector:   r.Login.SubmitSelector,
			UsernameEnv:      r.Login.UsernameEnv,
			PasswordEnv:      r.Login.PasswordEnv,
			Username:         os.Getenv(r.Login.UsernameEnv),
			Password:         os.Getenv(r.Login.PasswordEnv),
		}
		if login.Username == "" {
			return Site{}, fmt.Errorf("login username environment variable %s is not set", login.UsernameEnv)
		}
		if login.Password == "" {
			return Site{}, fmt.Errorf("login password environment variable %s is not set", login.PasswordEnv)
		}
		site.Login = login
	}

	if condition.RequiresRendering(cond) && !site.NeedsRendering() {
		return Site{}, fmt.Errorf("%s needs a rendered page: set render: true or configure login", cond.Mode())
	}
	return site, nil
}

// compile turns the notifyWhen block into a condition. At most one mode may
// be set; none yields a nil condition.
func (r rawCondition) compile() (condition.Condition, error) {
	var conds []condition.Condition

	if r.ElementExists != "" {
		conds = append(conds, condition.ElementExists{Selector: r.ElementExists})
	}
	if r.ElementNotExists != "" {
		conds = append(conds, condition.ElementNotExists{Selector: r.ElementNotExists})
	}
	if r.TextContains != "" {
		conds = append(conds, condition.TextContains{Needle: r.TextContains})
	}
	if r.TextNotContains != "" {
		conds = append(conds, condition.TextNotContains{Needle: r.TextNotContains})
	}
	if r.TextMatchesRegex != "" {
		re, err := regexp.Compile(r.TextMatchesRegex)
		if err != nil {
			return nil, fmt.Errorf("invalid textMatchesRegex: %w", err)
		}
		conds = append(conds, condition.MatchesPattern{Pattern: re})
	}
	if c := r.ElementCountGreaterThan; c != nil {
		conds = append(conds, condition.ElementCountGreaterThan{Selector: c.Selector, Count: c.Count})
	}
	if p := r.ProductScan; p != nil {
		scan, err := p.compile()
		if err != nil {
			return nil, err
		}
		conds = append(conds, scan)
	}

	switch len(conds) {
	case 0:
		return nil, nil
	case 1:
		return conds[0], nil
	default:
		modes := make([]string, len(conds))
		for i, c := range conds {
			modes[i] = string(c.Mode())
		}
		return nil, fmt.Errorf("notifyWhen sets more than one condition: %s", strings.Join(modes, ", "))
	}
}

func (p rawProductScan) compile() (condition.ProductScan, error) {
	name, err := regexp.Compile(p.ProductNameRegex)
	if err != nil {
		return condition.ProductScan{}, fmt.Errorf("invalid productNameRegex: %w", err)
	}
	scan := condition.ProductScan{
		Name:    name,
		BaseURL: p.BaseURL,
		Exclude: p.ExcludeProducts,
	}
	if p.ProductURLRegex != "" {
		if scan.URL, err = regexp.Compile(p.ProductURLRegex); err != nil {
			return condition.ProductScan{}, fmt.Errorf("invalid productUrlRegex: %w", err)
		}
	}
	return scan, nil
}
