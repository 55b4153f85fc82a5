package route

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"
)

var (
	// ErrInvalidURL means a route file URL is not an absolute http(s) URL
	ErrInvalidURL = errors.New("invalid route file url")

	// ErrHostNotAllowed means the URL's host is not on the allowlist
	ErrHostNotAllowed = errors.New("route file host not allowed")

	// ErrBlockedAddress means a direct fetch resolved to a loopback,
	// private, link-local or otherwise non-public address
	ErrBlockedAddress = errors.New("route file address not allowed")
)

// HostPolicy is the allowlist of hosts route files may be fetched from. A
// host matches an entry exactly or as a subdomain of it. An empty policy
// allows nothing.
type HostPolicy struct {
	hosts []string
}

// NewHostPolicy normalizes the entries; blank ones are dropped
func NewHostPolicy(hosts []string) *HostPolicy {
	p := &HostPolicy{hosts: make([]string, 0, len(hosts))}
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			p.hosts = append(p.hosts, h)
		}
	}
	return p
}

// Hosts returns the normalized entries
func (p *HostPolicy) Hosts() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.hosts...)
}

// Check accepts absolute http(s) URLs whose host is allowlisted
func (p *HostPolicy) Check(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	host := strings.ToLower(u.Hostname())
	if p != nil {
		for _, h := range p.hosts {
			if host == h || strings.HasSuffix(host, "."+h) {
				return nil
			}
		}
	}
	return fmt.Errorf("%w: %s", ErrHostNotAllowed, host)
}

// ClientConfig tunes the client used for direct route file fetches
type ClientConfig struct {
	Timeout time.Duration

	// AllowPrivate lets the client dial loopback and private networks
	AllowPrivate bool

	// CheckRedirect vets every redirect target; nil follows any redirect
	CheckRedirect func(rawURL string) error
}

const maxRedirects = 10

// NewClient builds an http client for fetching route files straight from
// their host. Unless AllowPrivate is set, connections to non-public
// addresses are refused at dial time, after DNS resolution, and proxies
// from the environment are ignored.
func NewClient(cfg ClientConfig) *http.Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	dialer := &net.Dialer{
		Timeout:   cfg.Timeout,
		KeepAlive: 30 * time.Second,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.AllowPrivate {
		dialer.Control = publicOnly
		transport.Proxy = nil
	}
	transport.DialContext = dialer.DialContext

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if cfg.CheckRedirect != nil {
				return cfg.CheckRedirect(req.URL.String())
			}
			return nil
		},
	}
}

// publicOnly is a net.Dialer Control hook; address is the resolved ip:port
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil || !IsPublicAddr(addr) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

var nonPublicPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("64:ff9b::/96"),
}

// IsPublicAddr reports whether addr is a globally routable unicast address
func IsPublicAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return false
	}
	for _, p := range nonPublicPrefixes {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}
