package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known publishing platform for link evidence.
type Platform string

const (
	// PlatformX covers x.com and twitter.com posts
	PlatformX Platform = "x"
	// PlatformReddit covers reddit threads
	PlatformReddit Platform = "reddit"
	// PlatformMedium covers medium.com articles
	PlatformMedium Platform = "medium"
	// PlatformSubstack covers substack newsletters
	PlatformSubstack Platform = "substack"
	// PlatformUnknown is a generic news or web page
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the publishing platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	switch {
	case host == "x.com" || host == "twitter.com" || host == "mobile.twitter.com":
		return PlatformX
	case host == "reddit.com" || strings.HasSuffix(host, ".reddit.com"):
		return PlatformReddit
	case host == "medium.com" || strings.HasSuffix(host, ".medium.com"):
		return PlatformMedium
	case strings.HasSuffix(host, ".substack.com"):
		return PlatformSubstack
	}
	return PlatformUnknown
}

// NeedsBrowser reports whether a platform only renders content with JavaScript.
func NeedsBrowser(platform Platform) bool {
	return platform == PlatformX
}

// PlatformContentSelectors returns content selectors optimized for a specific platform.
func PlatformContentSelectors(platform Platform) []string {
	switch platform {
	case PlatformX:
		return []string{
			"article [data-testid='tweetText']",
			"article",
		}
	case PlatformReddit:
		return []string{
			"shreddit-post",
			"[data-test-id='post-content']",
			".usertext-body",
			"main",
		}
	case PlatformMedium:
		return []string{
			"article section",
			"article",
		}
	case PlatformSubstack:
		return []string{
			".available-content",
			".post-content",
			"article",
		}
	default:
		return DefaultTextSelectors()
	}
}

// PlatformNoiseSelectors returns noise exclusion selectors for a specific platform.
func PlatformNoiseSelectors(platform Platform) []string {
	common := []string{
		// Sharing and subscription prompts
		".social-share",
		".share-buttons",
		".newsletter-signup",
		".subscribe",
		// Related content
		".related-articles",
		".recommended",
		"aside",
		// Cookie and GDPR
		".cookie-consent",
		".gdpr-notice",
	}

	switch platform {
	case PlatformReddit:
		return append(common, "faceplate-tracker", ".promotedlink")
	case PlatformMedium:
		return append(common, ".pw-responses", ".pw-subscribe")
	case PlatformSubstack:
		return append(common, ".subscription-widget-wrap", ".post-footer")
	default:
		return common
	}
}
