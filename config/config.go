// Package config builds the run configuration from the environment.
package config

import (
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"palinsesto-booker/client"
)

// DefaultCourses is the course set accepted when COURSES is unset.
var DefaultCourses = []string{
	"Biomechanics",
	"Cross Training",
	"Functional Training",
	"GAG",
	"Pilates",
	"Spinning",
	"Total Body",
	"Yoga",
}

const (
	usernameSuffix = "_USERNAME"
	passwordSuffix = "_PASSWORD"
)

// Config is built once at startup and handed to every component.
type Config struct {
	APIURL  string
	VenueID string

	// Users maps an upper-cased user id to its credentials.
	Users map[string]client.Credentials
	// Default is used when no user is named on the command line.
	Default *client.Credentials

	MaxRetries  int
	RetryDelay  time.Duration
	HTTPTimeout time.Duration

	TelegramToken  string
	TelegramChatID string

	MatchEndTime   bool
	ProxyURLs      []string
	FingerprintTLS bool
	UserAgents     []string
	Courses        []string
	LogLevel       string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}
	return FromEnv(environ())
}

func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

// FromEnv builds a Config from a key/value environment.
func FromEnv(env map[string]string) (*Config, error) {
	g := getter(env)
	cfg := &Config{
		APIURL:         g.getStr("API_URL", ""),
		VenueID:        g.getStr("ID_SEDE", ""),
		Users:          make(map[string]client.Credentials),
		TelegramToken:  g.getStr("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: g.getStr("TELEGRAM_CHAT_ID", ""),
		ProxyURLs:      splitList(g.getStr("PROXY_URLS", ""), ","),
		UserAgents:     splitList(g.getStr("USER_AGENTS", ""), "|"),
		Courses:        splitList(g.getStr("COURSES", ""), ","),
		LogLevel:       strings.ToLower(g.getStr("LOG_LEVEL", "info")),
	}
	if len(cfg.Courses) == 0 {
		cfg.Courses = append([]string(nil), DefaultCourses...)
	}

	var err error
	if cfg.MaxRetries, err = g.getInt("MAX_RETRIES", client.DefaultMaxRetries); err != nil {
		return nil, err
	}
	if cfg.MaxRetries < 1 {
		return nil, &configError{message: "MAX_RETRIES must be at least 1"}
	}
	delaySeconds, err := g.getInt("RETRY_DELAY", int(client.DefaultRetryDelay/time.Second))
	if err != nil {
		return nil, err
	}
	if delaySeconds < 0 {
		return nil, &configError{message: "RETRY_DELAY must not be negative"}
	}
	cfg.RetryDelay = time.Duration(delaySeconds) * time.Second
	if cfg.HTTPTimeout, err = g.getDuration("HTTP_TIMEOUT", client.DefaultTimeout); err != nil {
		return nil, err
	}
	if cfg.MatchEndTime, err = g.getBool("MATCH_END_TIME", false); err != nil {
		return nil, err
	}
	if cfg.FingerprintTLS, err = g.getBool("FINGERPRINT_TLS", false); err != nil {
		return nil, err
	}

	for key, value := range env {
		name, ok := strings.CutSuffix(key, usernameSuffix)
		if !ok || name == "" || strings.TrimSpace(value) == "" {
			continue
		}
		cfg.Users[strings.ToUpper(name)] = client.Credentials{
			Username: strings.TrimSpace(value),
			Password: env[name+passwordSuffix],
		}
	}
	if user := g.getStr("USERNAME", ""); user != "" {
		cfg.Default = &client.Credentials{Username: user, Password: env["PASSWORD"]}
	}

	return cfg, nil
}

// CredentialsFor looks up a user case-insensitively.
func (c *Config) CredentialsFor(user string) (client.Credentials, error) {
	creds, ok := c.Users[strings.ToUpper(strings.TrimSpace(user))]
	if !ok {
		return client.Credentials{}, &configError{message: "no credentials for user " + user + " (set " + strings.ToUpper(user) + usernameSuffix + " and " + strings.ToUpper(user) + passwordSuffix + ")"}
	}
	if creds.Password == "" {
		return client.Credentials{}, &configError{message: "missing " + strings.ToUpper(user) + passwordSuffix}
	}
	return creds, nil
}

// UserNames lists the configured user ids in sorted order.
func (c *Config) UserNames() []string {
	names := make([]string, 0, len(c.Users))
	for name := range c.Users {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)
	return names
}

// HasCourse reports whether course belongs to the accepted course set.
func (c *Config) HasCourse(course string) bool {
	for _, known := range c.Courses {
		if known == course {
			return true
		}
	}
	return false
}

type getter map[string]string

func (g getter) getStr(key, fallback string) string {
	value := strings.TrimSpace(g[key])
	if value == "" {
		return fallback
	}
	return value
}

func (g getter) getInt(key string, fallback int) (int, error) {
	value := g.getStr(key, "")
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, &configError{message: "invalid int for " + key + ": " + err.Error()}
	}
	return parsed, nil
}

func (g getter) getBool(key string, fallback bool) (bool, error) {
	value := g.getStr(key, "")
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, &configError{message: "invalid bool for " + key + ": " + err.Error()}
	}
	return parsed, nil
}

func (g getter) getDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := g.getStr(key, "")
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, &configError{message: "invalid duration for " + key + ": " + err.Error()}
	}
	return parsed, nil
}

func splitList(value, sep string) []string {
	var out []string
	for _, item := range strings.Split(value, sep) {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

type configError struct {
	message string
}

func (e *configError) Error() string {
	return e.message
}

var _ error = (*configError)(nil)
