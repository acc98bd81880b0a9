// Package robots caches and evaluates robots.txt per domain. The crawler
// only consults it when --respect-robots is set.
package robots

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/temoto/robotstxt"
)

type Checker struct {
	userAgent string
	cache     map[string]*robotstxt.Group
	client    *http.Client
	mu        sync.RWMutex
}

func NewChecker(userAgent string, timeout time.Duration) *Checker {
	return &Checker{
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.Group),
		client:    &http.Client{Timeout: timeout},
	}
}

// IsAllowed reports whether targetURL may be fetched. A missing or
// unreadable robots.txt allows everything.
func (c *Checker) IsAllowed(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		log.Error().Str("url", targetURL).Msg("Unable to parse target URL")
		return false
	}

	domain := u.Host

	c.mu.RLock()
	group, exists := c.cache[domain]
	c.mu.RUnlock()

	if !exists {
		group = c.fetchRobotsTxt(u.Scheme, domain)

		c.mu.Lock()
		c.cache[domain] = group
		c.mu.Unlock()
	}

	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

// fetchRobotsTxt returns nil when robots.txt is missing or unreadable,
// which IsAllowed reads as "allow all".
func (c *Checker) fetchRobotsTxt(scheme, domain string) *robotstxt.Group {
	robotsURL := scheme + "://" + domain + "/robots.txt"

	resp, err := c.client.Get(robotsURL)
	if err != nil {
		log.Warn().Err(err).Str("domain", domain).Msg("Failed to fetch robots.txt")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		log.Warn().Err(err).Str("domain", domain).Msg("Failed to parse robots.txt")
		return nil
	}

	return data.FindGroup(c.userAgent)
}
