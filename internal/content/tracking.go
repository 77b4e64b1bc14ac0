package content

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnsubscribePlaceholder is the token campaign authors place where the
// unsubscribe link should be rendered.
const UnsubscribePlaceholder = "{{unsubscribe}}"

var hrefRe = regexp.MustCompile(`(?i)(<a\b[^>]*?href\s*=\s*)("([^"]*)"|'([^']*)')`)

// Injector rewrites campaign HTML with open, click, and unsubscribe
// tracking. The base URL is the tracking service origin; an empty base
// produces relative tracking paths.
type Injector struct {
	BaseURL          string
	UnsubscribeLabel string

	// now supplies the cache-busting timestamp; nil means wall clock.
	now func() time.Time
}

// NewInjector creates an Injector for the given tracking origin.
func NewInjector(baseURL, unsubscribeLabel string) *Injector {
	if unsubscribeLabel == "" {
		unsubscribeLabel = "Unsubscribe"
	}
	return &Injector{
		BaseURL:          strings.TrimRight(baseURL, "/"),
		UnsubscribeLabel: unsubscribeLabel,
	}
}

// Inject applies the full tracking treatment to one recipient's HTML body:
// every outbound link is wrapped in a click redirect, the unsubscribe
// placeholder is resolved (or an unsubscribe paragraph appended), and an
// invisible open pixel is added at the end.
func (in *Injector) Inject(html, shop, campaignID, email string) string {
	out := in.rewriteLinks(html, shop, campaignID)

	unsub := in.unsubscribeAnchor(shop, campaignID, email)
	if strings.Contains(out, UnsubscribePlaceholder) {
		out = strings.ReplaceAll(out, UnsubscribePlaceholder, unsub)
	} else {
		out += "\n<p>" + unsub + "</p>"
	}

	return out + "\n" + in.openPixel(shop, campaignID)
}

// rewriteLinks wraps each outbound href in a click-tracking redirect.
// Anchors, mailto links, and already-rewritten tracking links are left
// untouched.
func (in *Injector) rewriteLinks(html, shop, campaignID string) string {
	clickBase := in.BaseURL + "/click"
	return hrefRe.ReplaceAllStringFunc(html, func(m string) string {
		sub := hrefRe.FindStringSubmatch(m)
		prefix := sub[1]
		target := sub[3]
		if target == "" {
			target = sub[4]
		}

		// Only a literal click endpoint with a query counts as already
		// rewritten; a merchant path that merely starts with /click must
		// still be wrapped.
		if target == "" ||
			strings.HasPrefix(target, "#") ||
			strings.HasPrefix(strings.ToLower(target), "mailto:") ||
			strings.HasPrefix(target, clickBase+"?") {
			return m
		}

		q := url.Values{}
		q.Set("shop", shop)
		q.Set("campaign", campaignID)
		q.Set("url", target)
		return prefix + `"` + clickBase + "?" + q.Encode() + `"`
	})
}

// openPixel builds the 1x1 open-tracking image with a cache-busting
// timestamp.
func (in *Injector) openPixel(shop, campaignID string) string {
	nowFn := in.now
	if nowFn == nil {
		nowFn = time.Now
	}

	q := url.Values{}
	q.Set("shop", shop)
	q.Set("campaign", campaignID)
	q.Set("t", strconv.FormatInt(nowFn().UnixMilli(), 10))
	return fmt.Sprintf(
		`<img src="%s/open?%s" width="1" height="1" alt="" style="display:none"/>`,
		in.BaseURL, q.Encode())
}

// UnsubscribeURL builds the unsubscribe endpoint URL for one recipient.
// Shop, campaign, and email are percent-encoded independently.
func (in *Injector) UnsubscribeURL(shop, campaignID, email string) string {
	q := url.Values{}
	q.Set("shop", shop)
	q.Set("campaign", campaignID)
	q.Set("email", email)
	return in.BaseURL + "/unsubscribe?" + q.Encode()
}

func (in *Injector) unsubscribeAnchor(shop, campaignID, email string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, in.UnsubscribeURL(shop, campaignID, email), in.UnsubscribeLabel)
}
