package client

import (
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ProxyManager hands out proxies round-robin, one per user run.
type ProxyManager struct {
	proxies      []string
	currentIndex int
	mu           sync.Mutex
}

// NewProxyManager keeps the entries of urls that parse as proxy URLs.
// Format: socks5://ip:port or socks5://user:pass@ip:port
func NewProxyManager(urls []string) *ProxyManager {
	pm := &ProxyManager{}
	for _, raw := range urls {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			log.Printf("⚠️ ignoring invalid proxy %q", maskProxy(raw))
			continue
		}
		pm.proxies = append(pm.proxies, raw)
	}
	return pm
}

// Shuffle randomizes the rotation order.
func (pm *ProxyManager) Shuffle() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	r.Shuffle(len(pm.proxies), func(i, j int) {
		pm.proxies[i], pm.proxies[j] = pm.proxies[j], pm.proxies[i]
	})
}

// Next returns the next proxy, or "" for a direct connection.
func (pm *ProxyManager) Next() string {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if len(pm.proxies) == 0 {
		return ""
	}
	p := pm.proxies[pm.currentIndex]
	pm.currentIndex = (pm.currentIndex + 1) % len(pm.proxies)
	return p
}

// Len returns the number of usable proxies.
func (pm *ProxyManager) Len() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.proxies)
}

// Describe returns a human-readable label for proxy with credentials stripped.
func Describe(proxy string) string {
	if proxy == "" {
		return "DIRECT (no proxy)"
	}
	return fmt.Sprintf("Proxy (%s)", maskProxy(proxy))
}

func maskProxy(proxy string) string {
	u, err := url.Parse(proxy)
	if err != nil || u.Host == "" {
		return "<unparseable>"
	}
	return u.Scheme + "://" + u.Host
}
