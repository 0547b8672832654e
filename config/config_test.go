package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(map[string]string{"API_URL": "https://api.example.com", "ID_SEDE": "7"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxRetries != 5 || cfg.RetryDelay != 10*time.Second || cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("wrong retry/timeout defaults: %+v", cfg)
	}
	if cfg.MatchEndTime || cfg.FingerprintTLS {
		t.Fatalf("boolean options should default to false")
	}
	if !cfg.HasCourse("Biomechanics") || cfg.HasCourse("Aquagym") {
		t.Fatalf("unexpected default course set %v", cfg.Courses)
	}
	if cfg.Default != nil || len(cfg.Users) != 0 {
		t.Fatalf("no users expected")
	}
}

func TestFromEnvUsers(t *testing.T) {
	cfg, err := FromEnv(map[string]string{
		"MARIO_USERNAME": "mario@example.com",
		"MARIO_PASSWORD": "pw1",
		"anna_USERNAME":  "anna@example.com",
		"USERNAME":       "me@example.com",
		"PASSWORD":       "pw0",
		"MAX_RETRIES":    "3",
		"RETRY_DELAY":    "2",
		"COURSES":        "Yoga, Pilates",
		"PROXY_URLS":     "socks5://a:1080, socks5://b:1080",
		"USER_AGENTS":    "UA one|UA two",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	creds, err := cfg.CredentialsFor("mario")
	if err != nil || creds.Username != "mario@example.com" || creds.Password != "pw1" {
		t.Fatalf("wrong credentials for mario: %+v %v", creds, err)
	}
	if _, err := cfg.CredentialsFor("anna"); err == nil {
		t.Fatalf("anna has no password and should be rejected")
	}
	if _, err := cfg.CredentialsFor("luigi"); err == nil {
		t.Fatalf("unknown user should be rejected")
	}
	if cfg.Default == nil || cfg.Default.Username != "me@example.com" || cfg.Default.Password != "pw0" {
		t.Fatalf("wrong default credentials %+v", cfg.Default)
	}
	if names := cfg.UserNames(); len(names) != 2 || names[0] != "anna" || names[1] != "mario" {
		t.Fatalf("unexpected user names %v", names)
	}
	if cfg.MaxRetries != 3 || cfg.RetryDelay != 2*time.Second {
		t.Fatalf("retry settings not applied: %d %s", cfg.MaxRetries, cfg.RetryDelay)
	}
	if !cfg.HasCourse("Pilates") || cfg.HasCourse("Biomechanics") {
		t.Fatalf("COURSES should replace the default set: %v", cfg.Courses)
	}
	if len(cfg.ProxyURLs) != 2 || len(cfg.UserAgents) != 2 {
		t.Fatalf("lists not split: %v %v", cfg.ProxyURLs, cfg.UserAgents)
	}
}

func TestFromEnvInvalid(t *testing.T) {
	bad := []map[string]string{
		{"MAX_RETRIES": "tanti"},
		{"MAX_RETRIES": "0"},
		{"RETRY_DELAY": "-1"},
		{"HTTP_TIMEOUT": "10"},
		{"MATCH_END_TIME": "forse"},
	}
	for _, env := range bad {
		if _, err := FromEnv(env); err == nil {
			t.Errorf("expected error for %v", env)
		}
	}
}
