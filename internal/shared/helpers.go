package shared

import (
	"math/rand"
	"net/url"
)

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/15.0 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/92.0.4515.107 Safari/537.36 Edg/92.0.902.55",
}

// RandomUserAgent picks one of a small pool of desktop user agents so
// consecutive sessions don't all present the same fingerprint.
func RandomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

func GetDomain(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return u.Host, nil
}

// ResolveURL resolves link relative to parent and strips the fragment.
func ResolveURL(parent, link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}

	base, err := url.Parse(parent)
	if err != nil {
		return "", err
	}

	urlObj := base.ResolveReference(u)
	urlObj.Fragment = ""

	return urlObj.String(), nil
}
