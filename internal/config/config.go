package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on minimal container images

	"github.com/pauljones0/aki-watcher/internal/util"
)

const (
	BackendFile      = "file"
	BackendGCS       = "gcs"
	BackendFirestore = "firestore"

	RendererChromedp   = "chromedp"
	RendererPlaywright = "playwright"

	DefaultSitesPath  = "config/sites.yml"
	DefaultStatusPath = "docs/status.json"
	DefaultTimezone   = "Asia/Tokyo"
)

type Config struct {
	SitesPath string

	StateBackend   string
	StatusFilePath string
	StorageBucket  string
	StatusObject   string
	ProjectID      string

	LineChannelAccessToken string
	LineUserID             string
	DiscordWebhookURL      string
	NotifyOnError          bool

	Port         string
	FetchTimeout time.Duration
	RunTimeout   time.Duration
	Renderer     string
	ChromePath   string
	Location     *time.Location

	NATSURL        string
	NATSSubject    string
	PushgatewayURL string

	LogLevel string
	LogFile  string
}

func Load() (*Config, error) {
	sitesPath := os.Getenv("SITES_CONFIG_PATH")
	if sitesPath == "" {
		sitesPath = DefaultSitesPath
	}

	backend := os.Getenv("STATE_BACKEND")
	if backend == "" {
		backend = BackendFile
	}
	projectID := os.Getenv("GOOGLE_CLOUD_PROJECT")
	bucket := os.Getenv("STORAGE_BUCKET")
	switch backend {
	case BackendFile:
	case BackendGCS:
		if bucket == "" {
			return nil, fmt.Errorf("STORAGE_BUCKET environment variable is required when STATE_BACKEND=gcs")
		}
	case BackendFirestore:
		if projectID == "" {
			return nil, fmt.Errorf("GOOGLE_CLOUD_PROJECT environment variable is required when STATE_BACKEND=firestore")
		}
	default:
		return nil, fmt.Errorf("invalid STATE_BACKEND %q: want file, gcs or firestore", backend)
	}

	statusPath := os.Getenv("STATUS_FILE_PATH")
	if statusPath == "" {
		statusPath = DefaultStatusPath
	}
	statusObject := os.Getenv("STATUS_OBJECT")
	if statusObject == "" {
		statusObject = "status.json"
	}

	lineToken := os.Getenv("LINE_CHANNEL_ACCESS_TOKEN")
	lineUser := os.Getenv("LINE_USER_ID")
	if (lineToken == "") != (lineUser == "") {
		slog.Warn("Only one of LINE_CHANNEL_ACCESS_TOKEN and LINE_USER_ID is set, LINE notifications will be skipped")
		lineToken, lineUser = "", ""
	}
	discordWebhookURL := os.Getenv("DISCORD_WEBHOOK_URL")
	if lineToken == "" && discordWebhookURL == "" {
		slog.Warn("No notification channel configured, notifications will be skipped")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	fetchTimeout, err := durationEnv("FETCH_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	runTimeout, err := durationEnv("RUN_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	renderer := os.Getenv("RENDERER")
	if renderer == "" {
		renderer = RendererChromedp
	}
	if renderer != RendererChromedp && renderer != RendererPlaywright {
		return nil, fmt.Errorf("invalid RENDERER %q: want chromedp or playwright", renderer)
	}

	tz := os.Getenv("TIMEZONE")
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	natsSubject := os.Getenv("NATS_SUBJECT")
	if natsSubject == "" {
		natsSubject = "aki.checks"
	}

	return &Config{
		SitesPath:              sitesPath,
		StateBackend:           backend,
		StatusFilePath:         statusPath,
		StorageBucket:          bucket,
		StatusObject:           statusObject,
		ProjectID:              projectID,
		LineChannelAccessToken: lineToken,
		LineUserID:             lineUser,
		DiscordWebhookURL:      discordWebhookURL,
		NotifyOnError:          util.ParseBool(os.Getenv("NOTIFY_ON_ERROR")),
		Port:                   port,
		FetchTimeout:           fetchTimeout,
		RunTimeout:             runTimeout,
		Renderer:               renderer,
		ChromePath:             os.Getenv("CHROME_PATH"),
		Location:               loc,
		NATSURL:                os.Getenv("NATS_URL"),
		NATSSubject:            natsSubject,
		PushgatewayURL:         os.Getenv("PUSHGATEWAY_URL"),
		LogLevel:               os.Getenv("LOG_LEVEL"),
		LogFile:                os.Getenv("LOG_FILE"),
	}, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}
