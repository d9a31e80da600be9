package frontier

import (
	"fmt"
	"net/url"
	"strings"
)

// Canonicalize resolves raw against base (which may be nil), strips the
// fragment, lower-cases scheme and host, drops default ports and gives an
// empty path the root path.
func Canonicalize(raw string, base *url.URL) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing url %q: %w", raw, err)
	}
	u := ref
	if base != nil {
		u = base.ResolveReference(ref)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("url %q is not absolute", raw)
	}
	if (u.Scheme == "http" || u.Scheme == "https") && u.Host == "" {
		return nil, fmt.Errorf("url %q has no host", raw)
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	if u.Path == "" && u.Opaque == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u, nil
}

// Domain returns the key used for per-domain queues, politeness and
// robots.txt: the host including any non-default port.
func Domain(u *url.URL) string {
	return u.Host
}

// DomainOf canonicalizes raw and returns its domain.
func DomainOf(raw string) (string, error) {
	u, err := Canonicalize(raw, nil)
	if err != nil {
		return "", err
	}
	return Domain(u), nil
}

// hostMatches reports whether host equals domain or is a subdomain of it.
func hostMatches(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}
