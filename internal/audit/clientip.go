package audit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Unknown is recorded when the client address or user agent cannot be determined.
const Unknown = "unknown"

// CDNHeader carries the client address set by the Cloudflare edge.
const CDNHeader = "CF-Connecting-IP"

// forwardedHeaders are consulted in order, from most to least specific proxy header.
var forwardedHeaders = []string{
	"Client-IP",
	"X-Forwarded-For",
	"X-Forwarded",
	"Forwarded-For",
	"Forwarded",
}

// reservedPrefixes are special-purpose ranges not covered by netip's Is* helpers.
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("2001:db8::/32"),
}

// Client is the request origin recorded with every event.
type Client struct {
	IP        string
	UserAgent string
}

// ClientResolver derives the client address from proxy headers.
//
// CF-Connecting-IP is only honoured when TrustCDNHeader is set: outside of Cloudflare
// any client can send it and spoof the recorded address.
type ClientResolver struct {
	TrustCDNHeader bool
}

// Client returns the resolved address and user agent of r.
func (c ClientResolver) Client(r *http.Request) Client {
	ua := strings.TrimSpace(r.UserAgent())
	if ua == "" {
		ua = Unknown
	}
	return Client{IP: c.ResolveIP(r), UserAgent: ua}
}

// ResolveIP returns the first public address found in the proxy headers, then in the
// connection address. Without a public candidate it falls back to the raw connection
// host, or Unknown if there is none.
func (c ClientResolver) ResolveIP(r *http.Request) string {
	headers := forwardedHeaders
	if c.TrustCDNHeader {
		headers = append([]string{CDNHeader}, forwardedHeaders...)
	}

	for _, h := range headers {
		for _, v := range r.Header.Values(h) {
			for _, candidate := range strings.Split(v, ",") {
				if ip, ok := publicIP(candidate); ok {
					return ip
				}
			}
		}
	}

	remote := remoteHost(r.RemoteAddr)
	if ip, ok := publicIP(remote); ok {
		return ip
	}
	if remote != "" {
		return remote
	}
	return Unknown
}

// publicIP parses s, accepting the bare address as well as RFC 7239 "for=" elements.
func publicIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(candidateAddr(s))
	if err != nil {
		return "", false
	}
	addr = addr.Unmap()
	if !isPublic(addr) {
		return "", false
	}
	return addr.String(), true
}

func candidateAddr(s string) string {
	s = strings.TrimSpace(s)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if len(part) > 4 && strings.EqualFold(part[:4], "for=") {
			s = part[4:]
			break
		}
	}
	s = strings.Trim(s, `"`)
	if strings.HasPrefix(s, "[") {
		if i := strings.Index(s, "]"); i > 0 {
			s = s[1:i]
		}
	}
	return s
}

func isPublic(addr netip.Addr) bool {
	if !addr.IsValid() ||
		addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsMulticast() {
		return false
	}
	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return false
		}
	}
	return true
}

// remoteHost strips the port from a "host:port" connection address.
func remoteHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
