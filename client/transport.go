package client

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/proxy"
)

// newTransport builds the RoundTripper for upstream calls. proxyURL may be a
// socks5:// URL; fingerprintTLS swaps Go's ClientHello for a browser one.
func newTransport(proxyURL string, fingerprintTLS bool) http.RoundTripper {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		if proxyURL == "" {
			return dialer.DialContext(ctx, network, addr)
		}
		return dialViaProxy(ctx, proxyURL, dialer, network, addr)
	}

	if !fingerprintTLS {
		return &http.Transport{
			DialContext:         dial,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        4,
			IdleConnTimeout:     30 * time.Second,
		}
	}

	return &http.Transport{
		DialContext: dial,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, _, _ := net.SplitHostPort(addr)

			conn, err := dial(ctx, network, addr)
			if err != nil {
				return nil, err
			}

			// HelloCustom with the ALPN rewritten: http.Transport cannot speak h2
			// over a connection it did not negotiate itself.
			uConn := utls.UClient(conn, &utls.Config{
				ServerName: host,
				NextProtos: []string{"http/1.1"},
			}, utls.HelloCustom)

			spec, err := utls.UTLSIdToSpec(utls.HelloFirefox_Auto)
			if err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to get utls spec: %w", err)
			}
			for i, ext := range spec.Extensions {
				if alpn, ok := ext.(*utls.ALPNExtension); ok {
					alpn.AlpnProtocols = []string{"http/1.1"}
					spec.Extensions[i] = alpn
				}
			}
			if err := uConn.ApplyPreset(&spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to apply preset: %w", err)
			}

			if err := uConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return uConn, nil
		},
		ForceAttemptHTTP2: false,
		MaxIdleConns:      4,
		IdleConnTimeout:   30 * time.Second,
	}
}

func dialViaProxy(ctx context.Context, proxyURL string, forward *net.Dialer, network, addr string) (net.Conn, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{
			User:     u.User.Username(),
			Password: password,
		}
	}
	d, err := proxy.SOCKS5("tcp", u.Host, auth, forward)
	if err != nil {
		return nil, err
	}
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, addr)
	}
	return d.Dial(network, addr)
}
