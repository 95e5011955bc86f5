package tokencache

import "strings"

// GetAudience returns the well-known management API audience for a tenant
// domain, e.g. "tenant.auth0.com" -> "https://tenant.auth0.com/api/v2/".
// A scheme or trailing slash on domain is tolerated.
func GetAudience(domain string) string {
	d := strings.TrimSpace(domain)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimRight(d, "/")
	return "https://" + d + "/api/v2/"
}
