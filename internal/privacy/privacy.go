// Package privacy scrubs user-identifying details from messages before they
// leave the machine as telemetry. URLs lose credentials, host names and
// paths; home directories lose the user name.
package privacy

import (
	"crypto/sha256"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
)

var (
	urlPattern  = regexp.MustCompile(`\b(?:https?|tcp|udp)://\S+`)
	homePattern = regexp.MustCompile(`(/home/|/Users/|[A-Za-z]:\\Users\\)[^/\\\s]+`)
)

// ScrubMessage anonymizes URLs and home directory user names in message
func ScrubMessage(message string) string {
	message = urlPattern.ReplaceAllStringFunc(message, AnonymizeURL)
	return homePattern.ReplaceAllString(message, "${1}user")
}

// AnonymizeURL replaces a URL with its scheme, a host category and a short
// hash of the original. Equal URLs map to equal results.
func AnonymizeURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" {
		return fmt.Sprintf("url-%x", sum[:6])
	}

	host := categorizeHost(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		host += ":" + port
	}
	return fmt.Sprintf("%s://%s-%x", parsed.Scheme, host, sum[:6])
}

// categorizeHost keeps the kind of host and drops its identity
func categorizeHost(host string) string {
	if host == "" {
		return "no-host"
	}
	if strings.EqualFold(host, "localhost") {
		return "localhost"
	}

	if ip := net.ParseIP(host); ip != nil {
		switch {
		case ip.IsLoopback():
			return "localhost"
		case ip.IsPrivate(), ip.IsLinkLocalUnicast():
			return "private-ip"
		default:
			return "public-ip"
		}
	}

	if i := strings.LastIndex(host, "."); i >= 0 && i < len(host)-1 {
		return "domain-" + strings.ToLower(host[i+1:])
	}
	return "hostname"
}
