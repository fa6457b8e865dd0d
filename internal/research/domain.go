package research

import (
	"net/url"
	"strings"

	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// HostOf returns the hostname of a link without a leading "www.". Links
// without a scheme are treated as https.
func HostOf(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	if !strings.Contains(link, "://") {
		link = "https://" + link
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
}

// DomainOf returns the registrable domain of a link (news.bbc.co.uk gives
// bbc.co.uk), falling back to the hostname when the public suffix list has
// no answer.
func DomainOf(link string) string {
	host := HostOf(link)
	if host == "" || !strings.Contains(host, ".") {
		return host
	}
	domain, err := publicsuffix.Domain(host)
	if err != nil {
		return host
	}
	return domain
}
