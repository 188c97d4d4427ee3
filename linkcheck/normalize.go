package linkcheck

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrInvalidURL is returned by Normalize for input that cannot be turned into
// an absolute http(s) URL.
var ErrInvalidURL = errors.New("invalid url")

// Normalize trims raw, adds https:// when no scheme is present, and strips
// the fragment. The result is an absolute http or https URL with a
// lower-case host. Normalize(Normalize(u)) == Normalize(u).
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}

	if !strings.Contains(s, "://") {
		s = "https://" + strings.TrimPrefix(s, "//")
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil

	return u.String(), nil
}

// RegistrableDomain returns the eTLD+1 of host ("www.reuters.com" ->
// "reuters.com"). IP addresses and single-label hosts are returned as-is.
func RegistrableDomain(host string) string {
	h := strings.ToLower(strings.TrimSuffix(host, "."))
	if hostOnly, _, err := net.SplitHostPort(h); err == nil {
		h = hostOnly
	}
	h = strings.Trim(h, "[]")

	if net.ParseIP(h) != nil || !strings.Contains(h, ".") {
		return h
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return h
	}
	return domain
}

// domainSet indexes a blocklist by registrable domain.
type domainSet map[string]struct{}

func newDomainSet(domains []string) domainSet {
	set := make(domainSet, len(domains))
	for _, d := range domains {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		// Entries may be written as URLs or with a www. prefix
		if u, err := url.Parse(d); err == nil && u.Host != "" {
			d = u.Host
		}
		set[RegistrableDomain(d)] = struct{}{}
	}
	return set
}

// contains reports whether the URL's registrable domain is in the set.
func (s domainSet) contains(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := s[RegistrableDomain(u.Hostname())]
	return ok
}

// resolveReference resolves a possibly relative href found on the page at
// base, then normalizes it.
func resolveReference(base, href string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	return Normalize(b.ResolveReference(ref).String())
}
