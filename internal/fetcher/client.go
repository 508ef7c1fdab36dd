package fetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// maxRedirects bounds redirect chains of the direct tier.
const maxRedirects = 10

// ClientConfig describes the HTTP client used by the direct tier.
type ClientConfig struct {
	// ProxyURL routes requests through a proxy. Supported schemes are
	// http, https and socks5. Empty means a direct connection.
	ProxyURL string

	// Headers are added to every request, overriding the defaults.
	Headers map[string]string

	// Cookie is a raw cookie string sent with every request.
	Cookie string
}

// NewHTTPClient creates the HTTP client for direct fetches.
// The client has no overall timeout; Fetcher bounds each attempt with its
// own context deadline.
//
// Design decisions:
//   - A cookie jar keeps interstitial cookies between the 202 retries
//   - Redirect limit is 10 to prevent loops while allowing normal redirects
//   - SOCKS5 proxies use golang.org/x/net/proxy; HTTP proxies use the
//     transport's built-in support
func NewHTTPClient(cfg ClientConfig) (*http.Client, error) {
	transport := &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if cfg.ProxyURL != "" {
		if err := applyProxy(transport, cfg.ProxyURL); err != nil {
			return nil, err
		}
	}

	jar, _ := cookiejar.New(nil) //nolint:errcheck // cookiejar.New only fails with invalid options

	client := &http.Client{
		Transport: transport,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	if cfg.Cookie != "" || len(cfg.Headers) > 0 {
		client.Transport = &headerInjectingTransport{
			base:    transport,
			cookie:  cfg.Cookie,
			headers: cfg.Headers,
		}
	}

	return client, nil
}

// applyProxy configures transport to use the proxy at rawURL.
func applyProxy(transport *http.Transport, rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || u.Port() == "" {
		return fmt.Errorf("%w: %q", ErrInvalidProxy, rawURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
		return nil
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidProxy, err)
		}
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProxy, rawURL)
	}
}

// headerInjectingTransport wraps an http.RoundTripper to inject
// configured headers and cookies into every request.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
