// Package validation provides safety checks for operator-supplied values.
package validation

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

var (
	// ErrEmptyURL is returned when the URL is empty
	ErrEmptyURL = errors.New("URL cannot be empty")

	// ErrInvalidURL is returned when the URL cannot be parsed
	ErrInvalidURL = errors.New("invalid URL format")

	// ErrUnsafeProtocol is returned when the URL uses a dangerous protocol
	ErrUnsafeProtocol = errors.New("unsafe protocol")

	// ErrHTTPNotAllowed is returned when HTTP is used for non-localhost URLs
	ErrHTTPNotAllowed = errors.New("HTTP is only allowed for localhost")

	// ErrPrivateIP is returned when the URL points at a private IP
	ErrPrivateIP = errors.New("private/internal IP addresses are not allowed")

	// ErrMetadataEndpoint is returned when the URL targets a cloud metadata endpoint
	ErrMetadataEndpoint = errors.New("cloud metadata endpoints are not allowed")
)

// dangerousProtocols contains protocols that should never be allowed
var dangerousProtocols = map[string]bool{
	"file":       true,
	"gopher":     true,
	"javascript": true,
	"data":       true,
	"ftp":        true,
	"dict":       true,
	"ldap":       true,
	"ldaps":      true,
	"tftp":       true,
}

// ValidateBaseURL validates a URL intended as the upstream API base URL.
// It rejects empty URLs, non-http(s) schemes, plain http for anything other
// than localhost, direct private/link-local IPs, and cloud metadata
// endpoints. The value comes from startup configuration, not per-request
// input, so hostname DNS resolution is not probed here.
func ValidateBaseURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ErrEmptyURL
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(parsedURL.Scheme)

	if dangerousProtocols[scheme] {
		return fmt.Errorf("%w: %s:// is not allowed", ErrUnsafeProtocol, scheme)
	}

	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: only http:// and https:// are allowed", ErrUnsafeProtocol)
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}

	isLocalhost := isLocalhostHost(hostname)

	// HTTP is only allowed for localhost
	if scheme == "http" && !isLocalhost {
		return fmt.Errorf("%w: use https:// for non-localhost URLs", ErrHTTPNotAllowed)
	}

	if isMetadataEndpoint(hostname) {
		return fmt.Errorf("%w: %s is blocked", ErrMetadataEndpoint, hostname)
	}

	if ip := net.ParseIP(hostname); ip != nil && !isLocalhost {
		if isPrivateIP(ip) {
			return fmt.Errorf("%w: %s is in a private IP range", ErrPrivateIP, hostname)
		}
	}

	return nil
}

// isLocalhostHost checks if the hostname is localhost or a loopback address
func isLocalhostHost(hostname string) bool {
	hostname = strings.ToLower(hostname)

	if hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1" {
		return true
	}

	if ip := net.ParseIP(hostname); ip != nil {
		return ip.IsLoopback()
	}

	return false
}

// isMetadataEndpoint checks if the hostname is a cloud metadata endpoint
func isMetadataEndpoint(hostname string) bool {
	metadataHosts := []string{
		"169.254.169.254", // AWS, GCP, Azure
		"fd00:ec2::254",   // AWS IPv6
		"metadata.google.internal",
		"metadata.gcp.internal",
	}

	hostname = strings.ToLower(hostname)
	for _, meta := range metadataHosts {
		if hostname == meta {
			return true
		}
	}

	// 169.254.x.x link-local range
	if ip := net.ParseIP(hostname); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			if ip4[0] == 169 && ip4[1] == 254 {
				return true
			}
		}
	}

	return false
}

// isPrivateIP checks if an IP address is in a private/internal range
func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}

	if ip.IsPrivate() {
		return true
	}

	if ip.IsLoopback() {
		return false // loopback is handled by the localhost check
	}

	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}

	if ip.IsUnspecified() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		// 0.0.0.0/8 - current network
		if ip4[0] == 0 {
			return true
		}
	}

	return false
}
