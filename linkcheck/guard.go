package linkcheck

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"
)

// ErrPrivateAddress is returned by a public-only fetcher when a URL, a
// redirect or a DNS answer points at a loopback, private or link-local
// address.
var ErrPrivateAddress = errors.New("refusing to fetch non-public address")

// NewPublicHTTPFetcher is NewHTTPFetcher restricted to public addresses. The
// check runs on the dialed IP, so redirects and DNS names are covered too.
// Used where the URL comes from an untrusted caller.
func NewPublicHTTPFetcher(cfg Config) *HTTPFetcher {
	f := NewHTTPFetcher(cfg)

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   publicOnly,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	f.client.Transport = transport

	return f
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, address)
	}
	ip := net.ParseIP(host)
	if ip == nil || !IsPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
	}
	return nil
}

// IsPublicIP reports whether ip is routable on the public internet.
func IsPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified())
}
