package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cadence is one reconciliation loop's timing.
type Cadence struct {
	Interval time.Duration
	Warmup   time.Duration
}

// ClientConfig configures the caravan CLI.
type ClientConfig struct {
	APIURL string
	WSURL  string

	SessionFile string
	SessionKey  string

	HTTPTimeout    time.Duration
	ReadAttempts   int
	ReconnectDelay time.Duration
	HistoryLimit   int

	Discovery Cadence
	MyPlans   Cadence
	Detail    Cadence
	Polls     Cadence
	Expenses  Cadence
}

// LoadClient reads the client configuration.
func LoadClient() *ClientConfig {
	_ = godotenv.Load()

	apiURL := strings.TrimRight(getEnv("CARAVAN_API_URL", "http://localhost:8080/api"), "/")
	return &ClientConfig{
		APIURL:         apiURL,
		WSURL:          getEnv("CARAVAN_WS_URL", deriveWSURL(apiURL)),
		SessionFile:    getEnv("CARAVAN_SESSION_FILE", defaultSessionFile()),
		SessionKey:     getEnv("CARAVAN_SESSION_KEY", ""),
		HTTPTimeout:    getDurationEnv("CARAVAN_HTTP_TIMEOUT", 10*time.Second),
		ReadAttempts:   getIntEnv("CARAVAN_READ_ATTEMPTS", 3),
		ReconnectDelay: getDurationEnv("CARAVAN_RECONNECT_DELAY", 5*time.Second),
		HistoryLimit:   getIntEnv("CARAVAN_CHAT_HISTORY", 100),

		Discovery: cadence("DISCOVERY", 15*time.Second, 5*time.Second),
		MyPlans:   cadence("MYPLANS", 12*time.Second, 4*time.Second),
		Detail:    cadence("DETAIL", 10*time.Second, 3*time.Second),
		Polls:     cadence("POLLS", 8*time.Second, 3*time.Second),
		Expenses:  cadence("EXPENSES", 10*time.Second, 4*time.Second),
	}
}

// SetAPIURL points the client at another server and derives the push URL
// from it.
func (c *ClientConfig) SetAPIURL(apiURL string) {
	c.APIURL = strings.TrimRight(apiURL, "/")
	c.WSURL = deriveWSURL(c.APIURL)
}

func cadence(resource string, interval, warmup time.Duration) Cadence {
	prefix := "CARAVAN_POLL_" + resource
	return Cadence{
		Interval: getDurationEnv(prefix+"_INTERVAL", interval),
		Warmup:   getDurationEnv(prefix+"_WARMUP", warmup),
	}
}

// deriveWSURL maps http(s)://host/api to ws(s)://host/ws.
func deriveWSURL(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return "ws://localhost:8080/ws"
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return scheme + "://" + u.Host + "/ws"
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".caravan-session"
	}
	return filepath.Join(home, ".caravan", "session")
}
