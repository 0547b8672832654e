package client

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
	"Mozilla/5.0 (Linux; Android 10; K) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
}

// FingerprintManager handles User-Agent and header randomization.
type FingerprintManager struct {
	userAgents []string
	mu         sync.Mutex
	random     *rand.Rand
}

// NewFingerprintManager creates a FingerprintManager. An empty list falls back
// to a small built-in pool.
func NewFingerprintManager(userAgents []string) *FingerprintManager {
	var loaded []string
	for _, ua := range userAgents {
		if ua = strings.TrimSpace(ua); ua != "" {
			loaded = append(loaded, ua)
		}
	}
	if len(loaded) == 0 {
		loaded = defaultUserAgents
	}
	return &FingerprintManager{
		userAgents: loaded,
		random:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// UserAgent returns a random User-Agent string.
func (fm *FingerprintManager) UserAgent() string {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	return fm.userAgents[fm.random.Intn(len(fm.userAgents))]
}

// Headers returns the browser-like headers sent with every API call.
func (fm *FingerprintManager) Headers() map[string]string {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	languages := []string{"it-IT,it;q=0.9", "it-IT,it;q=0.9,en-US;q=0.8,en;q=0.7", "it,en-US;q=0.7,en;q=0.3"}

	return map[string]string{
		"Accept":          "application/json, text/javascript, */*; q=0.01",
		"Accept-Language": languages[fm.random.Intn(len(languages))],
		"Connection":      "keep-alive",
	}
}
