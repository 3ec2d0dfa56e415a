package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sync/singleflight"
)

var (
	ErrNoAddresses  = errors.New("no IP addresses found")
	ErrLookupFailed = errors.New("dns lookup failed")
)

// PublicDNS are servers to be queried if a local lookup fails.
var PublicDNS = []string{
	"1.0.0.1",                // Cloudflare
	"1.1.1.1",                // Cloudflare
	"[2606:4700:4700::1111]", // Cloudflare
	"8.8.4.4",                // Google
	"8.8.8.8",                // Google
	"[2001:4860:4860::8888]", // Google
	"9.9.9.9",                // Quad9
	"149.112.112.112",        // Quad9
	"208.67.222.222",         // Cisco OpenDNS
}

const (
	defaultLocalTimeout = 1 * time.Second
	defaultRaceTimeout  = 2 * time.Second
)

// LookupFunc resolves host through one particular server. An empty server
// means the system resolver.
type LookupFunc func(ctx context.Context, host, server string) ([]string, error)

// Resolver looks hosts up with the system resolver first and falls back to
// racing public DNS servers. Concurrent lookups of one host share a query.
type Resolver struct {
	Servers      []string
	LocalTimeout time.Duration
	RaceTimeout  time.Duration

	lookup LookupFunc
	dialer net.Dialer
	group  singleflight.Group
}

// NewResolver returns a resolver backed by the network.
func NewResolver() *Resolver {
	return &Resolver{
		Servers:      PublicDNS,
		LocalTimeout: defaultLocalTimeout,
		RaceTimeout:  defaultRaceTimeout,
		lookup:       lookupHost,
	}
}

// Lookup resolves host to a single IP, preferring IPv4. IP literals are
// returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	v, err, _ := r.group.Do(host, func() (any, error) {
		ip, err := r.localLookup(ctx, host)
		if err == nil {
			return ip, nil
		}
		return r.raceLookup(ctx, host)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// DialContext dials addr after resolving its host with Lookup. It fits
// websocket.Dialer.NetDialContext and http.Transport.DialContext.
func (r *Resolver) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := r.Lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	return r.dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

func (r *Resolver) localLookup(ctx context.Context, host string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.LocalTimeout)
	defer cancel()

	ips, err := r.lookup(ctx, host, "")
	if err != nil {
		return "", err
	}
	return preferIPv4(ips)
}

// raceLookup returns the first answer any public server gives.
func (r *Resolver) raceLookup(ctx context.Context, host string) (string, error) {
	if len(r.Servers) == 0 {
		return "", fmt.Errorf("%w: %s: no fallback servers", ErrLookupFailed, host)
	}

	type result struct {
		ip  string
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, r.RaceTimeout)
	defer cancel()

	results := make(chan result, len(r.Servers))
	for _, server := range r.Servers {
		go func(server string) {
			ips, err := r.lookup(ctx, host, server)
			if err != nil {
				results <- result{err: err}
				return
			}
			ip, err := preferIPv4(ips)
			results <- result{ip: ip, err: err}
		}(server)
	}

	var lastErr error
	for range r.Servers {
		select {
		case res := <-results:
			if res.err == nil {
				return res.ip, nil
			}
			lastErr = res.err
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %s: %w", ErrLookupFailed, host, ctx.Err())
		}
	}
	return "", fmt.Errorf("%w: %s: all %d public servers failed: %w", ErrLookupFailed, host, len(r.Servers), lastErr)
}

func lookupHost(ctx context.Context, host, server string) ([]string, error) {
	resolver := net.DefaultResolver
	if server != "" {
		resolver = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, net.JoinHostPort(trimBrackets(server), "53"))
			},
		}
	}
	return resolver.LookupHost(ctx, host)
}

func preferIPv4(ips []string) (string, error) {
	if len(ips) == 0 {
		return "", ErrNoAddresses
	}
	for _, ip := range ips {
		if parsed := net.ParseIP(ip); parsed != nil && parsed.To4() != nil {
			return ip, nil
		}
	}
	return ips[0], nil
}

func trimBrackets(s string) string {
	if len(s) > 1 && s[0] == '[' && s[len(s)-1] == ']' {
		return s[1 : len(s)-1]
	}
	return s
}
