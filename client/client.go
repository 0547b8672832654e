package client

import (
	"context"
	stdtls "crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// DefaultTimeout bounds every upstream call when Options.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// RequestTiming holds the phase timings of the last upstream call
type RequestTiming struct {
	Path                 string        `json:"path"`
	StartTime            time.Time     `json:"start_time"`
	DNSDone              time.Duration `json:"dns_done"`
	ConnectDone          time.Duration `json:"connect_done"`
	TLSHandshakeDone     time.Duration `json:"tls_done"`
	GotFirstResponseByte time.Duration `json:"ttfb"`
	TotalDuration        time.Duration `json:"total_duration"`
	StatusCode           int           `json:"status_code"`
	ConnectionReused     bool          `json:"connection_reused"`
}

// Credentials identify one account on the booking platform.
type Credentials struct {
	Username string
	Password string
}

// Options configures an APIClient.
type Options struct {
	BaseURL        string
	VenueID        string
	Timeout        time.Duration
	ProxyURL       string
	FingerprintTLS bool
	Fingerprint    *FingerprintManager
	Safety         *SafetyManager

	// Transport overrides the transport built from ProxyURL/FingerprintTLS.
	Transport http.RoundTripper
}

// APIClient talks to the booking platform's form-encoded JSON API.
// One client serves one user run: it owns its cookie jar and session.
type APIClient struct {
	baseURL     string
	venueID     string
	timeout     time.Duration
	client      *http.Client
	fingerprint *FingerprintManager
	safety      *SafetyManager

	mu         sync.Mutex
	lastTiming RequestTiming
}

func NewAPIClient(opts Options) *APIClient {
	jar, _ := cookiejar.New(nil)

	transport := opts.Transport
	if transport == nil {
		transport = newTransport(opts.ProxyURL, opts.FingerprintTLS)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fp := opts.Fingerprint
	if fp == nil {
		fp = NewFingerprintManager(nil)
	}
	safety := opts.Safety
	if safety == nil {
		safety = NewSafetyManager()
	}

	return &APIClient{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		venueID: opts.VenueID,
		timeout: timeout,
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
		},
		fingerprint: fp,
		safety:      safety,
	}
}

// Safety exposes the client's kill switch.
func (c *APIClient) Safety() *SafetyManager {
	return c.safety
}

// LastTiming returns the timings of the most recent call.
func (c *APIClient) LastTiming() RequestTiming {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastTiming
}

// PostForm sends form as the body of a POST to baseURL+path and decodes the
// JSON envelope. op names the operation in returned errors.
func (c *APIClient) PostForm(ctx context.Context, op, path string, form url.Values) (*Envelope, error) {
	if c.baseURL == "" {
		return nil, newError(KindConfig, op, "API_URL is not configured", nil)
	}
	if c.safety.IsTriggered() {
		return nil, newError(KindTransport, op, c.safety.Reason(), ErrSafetyTriggered)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var dnsDone, connDone, tlsDone, firstByte time.Time
	var reused bool
	trace := &httptrace.ClientTrace{
		DNSDone:              func(_ httptrace.DNSDoneInfo) { dnsDone = time.Now() },
		ConnectDone:          func(_, _ string, _ error) { connDone = time.Now() },
		TLSHandshakeDone:     func(_ stdtls.ConnectionState, _ error) { tlsDone = time.Now() },
		GotFirstResponseByte: func() { firstByte = time.Now() },
		GotConn:              func(info httptrace.GotConnInfo) { reused = info.Reused },
	}

	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, newError(KindConfig, op, "invalid request URL "+endpoint, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.fingerprint.UserAgent())
	for k, v := range c.fingerprint.Headers() {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)

	timing := RequestTiming{Path: path, StartTime: start, TotalDuration: time.Since(start), ConnectionReused: reused}
	if !dnsDone.IsZero() {
		timing.DNSDone = dnsDone.Sub(start)
	}
	if !connDone.IsZero() {
		timing.ConnectDone = connDone.Sub(start)
	}
	if !tlsDone.IsZero() {
		timing.TLSHandshakeDone = tlsDone.Sub(start)
	}
	if !firstByte.IsZero() {
		timing.GotFirstResponseByte = firstByte.Sub(start)
	}

	if err != nil {
		c.recordTiming(timing)
		c.safety.CheckError(err)
		return nil, newError(KindTransport, op, "POST "+path, err)
	}
	defer resp.Body.Close()

	timing.StatusCode = resp.StatusCode
	c.recordTiming(timing)
	Debugf("POST %s -> %d in %s (ttfb %s, reused %v)", path, resp.StatusCode, timing.TotalDuration, timing.GotFirstResponseByte, reused)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(KindTransport, op, "reading response of "+path, err)
	}

	c.safety.CheckResponse(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newStatusError(KindProtocol, op, resp.StatusCode, "HTTP "+resp.Status+": "+describeBody(body))
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, newError(KindProtocol, op, "response is not a valid JSON object: "+describeBody(body), err)
	}
	return &env, nil
}

func (c *APIClient) recordTiming(t RequestTiming) {
	c.mu.Lock()
	c.lastTiming = t
	c.mu.Unlock()
}

const bodySnippetLen = 200

// describeBody turns an unexpected response body into a short diagnostic.
// HTML error pages are reduced to their title or visible text.
func describeBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty body"
	}
	if strings.HasPrefix(text, "<") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
		if err == nil {
			if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
				return fmt.Sprintf("HTML page %q", title)
			}
			text = strings.Join(strings.Fields(doc.Find("body").Text()), " ")
			if text == "" {
				return "HTML page without text"
			}
		}
	}
	if len(text) > bodySnippetLen {
		return text[:bodySnippetLen] + "..."
	}
	return text
}
