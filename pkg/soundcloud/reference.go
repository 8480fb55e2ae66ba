package soundcloud

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	urlRegex        = regexp.MustCompile(`https?://\S+`)
	barePublicRegex = regexp.MustCompile(`^(?:(?:www|m|on)\.)?soundcloud\.com/\S+`)
	trackURNRegex   = regexp.MustCompile(`^soundcloud:tracks:(\d+)$`)
	digitsRegex     = regexp.MustCompile(`^\d+$`)
	whitespaceRegex = regexp.MustCompile(`\s+`)

	apiHosts = map[string]bool{
		"api.soundcloud.com":    true,
		"api-v2.soundcloud.com": true,
	}

	publicHosts = map[string]bool{
		"soundcloud.com":     true,
		"www.soundcloud.com": true,
		"m.soundcloud.com":   true,
		"on.soundcloud.com":  true,
	}

	// trackingParams are stripped from pasted share links.
	trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "si"}
)

// ParseReference classifies raw editor input. Only blank input is rejected;
// text that is neither a URL nor a number is passed on as an id and left for
// the API to reject.
func ParseReference(raw string) (TrackReference, error) {
	text := normalizeInput(raw)
	if text == "" {
		return TrackReference{}, ErrEmptyReference
	}

	if digitsRegex.MatchString(text) {
		return ByID(text), nil
	}
	if m := trackURNRegex.FindStringSubmatch(text); m != nil {
		return ByID(m[1]), nil
	}

	if match := urlRegex.FindString(text); match != "" {
		if cleaned := cleanURL(match); cleaned != "" {
			return classifyURL(cleaned), nil
		}
	}
	if barePublicRegex.MatchString(text) {
		if cleaned := cleanURL("https://" + strings.Fields(text)[0]); cleaned != "" {
			return ByPublicURL(cleaned), nil
		}
	}

	return ByID(text), nil
}

// IsSoundCloudURL reports whether rawURL points at a SoundCloud page or API host.
func IsSoundCloudURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	hostname := strings.ToLower(u.Hostname())
	return publicHosts[hostname] || apiHosts[hostname]
}

func classifyURL(rawURL string) TrackReference {
	u, err := url.Parse(rawURL)
	if err == nil && apiHosts[strings.ToLower(u.Hostname())] {
		return ByAPIURL(rawURL)
	}
	return ByPublicURL(rawURL)
}

func normalizeInput(raw string) string {
	text := norm.NFKC.String(raw)
	text = whitespaceRegex.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// cleanURL trims trailing punctuation and tracking parameters. It returns ""
// for anything without an http(s) scheme and a host.
func cleanURL(rawURL string) string {
	rawURL = strings.TrimRight(rawURL, ".,!?;)")

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	if u.RawQuery != "" {
		q := u.Query()
		for _, param := range trackingParams {
			q.Del(param)
		}
		u.RawQuery = q.Encode()
	}

	return u.String()
}
