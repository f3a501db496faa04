package contacts

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const (
	defaultWebsiteTimeout  = 8 * time.Second
	defaultWebsiteMaxBytes = 25000
	defaultUserAgent       = "BuyerSync/1.0 (+contact sync)"
	defaultBodyCacheTTL    = time.Hour

	websiteMatchBonus      = 10
	websiteMismatchPenalty = -20
	websiteMissingPenalty  = -15
)

// brandStopwords never count as brand evidence.
var brandStopwords = map[string]bool{
	"grain": true, "company": true, "co": true, "corp": true, "inc": true,
	"llc": true, "the": true, "and": true, "farmers": true, "cooperative": true,
}

// Verification is the outcome of checking a website against a facility's brand.
type Verification struct {
	Domain          string `json:"domain,omitempty"`
	OK              bool   `json:"ok"`
	ScoreAdjustment int    `json:"scoreAdjustment"`
	Reason          string `json:"reason"`
}

// WebsiteChecker cross-validates a place's website against a facility name.
type WebsiteChecker interface {
	Verify(ctx context.Context, facilityName, website string) Verification
}

// WebsiteVerifier checks the website domain, and failing that the homepage
// body, for the facility's brand tokens. Fetch failures are never errors.
type WebsiteVerifier struct {
	http          *http.Client
	userAgent     string
	maxBytes      int64
	respectRobots bool
	bodies        *cache.Cache
	robots        *cache.Cache
}

// WebsiteOption configures a WebsiteVerifier.
type WebsiteOption func(*WebsiteVerifier)

// WithWebsiteHTTPClient overrides the http.Client used for homepage fetches.
func WithWebsiteHTTPClient(hc *http.Client) WebsiteOption {
	return func(v *WebsiteVerifier) { v.http = hc }
}

// WithWebsiteTimeout sets the per-fetch timeout.
func WithWebsiteTimeout(d time.Duration) WebsiteOption {
	return func(v *WebsiteVerifier) {
		if d > 0 {
			v.http.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent sent with homepage and robots.txt fetches.
func WithUserAgent(ua string) WebsiteOption {
	return func(v *WebsiteVerifier) {
		if ua != "" {
			v.userAgent = ua
		}
	}
}

// WithMaxBytes caps how much of each homepage is inspected.
func WithMaxBytes(n int) WebsiteOption {
	return func(v *WebsiteVerifier) {
		if n > 0 {
			v.maxBytes = int64(n)
		}
	}
}

// WithBodyCacheTTL sets how long fetched homepages are reused.
func WithBodyCacheTTL(d time.Duration) WebsiteOption {
	return func(v *WebsiteVerifier) {
		if d > 0 {
			v.bodies = cache.New(d, 2*d)
			v.robots = cache.New(d, 2*d)
		}
	}
}

// WithRobots enables robots.txt compliance for homepage fetches.
func WithRobots(enabled bool) WebsiteOption {
	return func(v *WebsiteVerifier) { v.respectRobots = enabled }
}

// NewWebsiteVerifier creates a WebsiteVerifier.
func NewWebsiteVerifier(opts ...WebsiteOption) *WebsiteVerifier {
	v := &WebsiteVerifier{
		http:      &http.Client{Timeout: defaultWebsiteTimeout},
		userAgent: defaultUserAgent,
		maxBytes:  defaultWebsiteMaxBytes,
		bodies:    cache.New(defaultBodyCacheTTL, 2*defaultBodyCacheTTL),
		robots:    cache.New(defaultBodyCacheTTL, 2*defaultBodyCacheTTL),
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify checks website against facilityName.
func (v *WebsiteVerifier) Verify(ctx context.Context, facilityName, website string) Verification {
	domain := DomainOf(website)
	if domain == "" {
		return Verification{
			OK:              false,
			ScoreAdjustment: websiteMissingPenalty,
			Reason:          "Missing or invalid website domain",
		}
	}

	tokens := tokenSet(facilityName, brandStopwords)
	if containsAnyToken(domainLabel(domain), tokens) {
		return Verification{
			Domain:          domain,
			OK:              true,
			ScoreAdjustment: websiteMatchBonus,
			Reason:          "Website domain matches facility brand",
		}
	}

	if body := v.homepage(ctx, domain); body != "" && containsAnyToken(body, tokens) {
		return Verification{
			Domain:          domain,
			OK:              true,
			ScoreAdjustment: websiteMatchBonus,
			Reason:          "Website body matches facility brand",
		}
	}

	return Verification{
		Domain:          domain,
		OK:              false,
		ScoreAdjustment: websiteMismatchPenalty,
		Reason:          "Website domain does not match facility brand",
	}
}

// homepage returns the lowercased head of https://domain, or "" when it
// cannot be fetched. Fetched bodies are cached per domain; failed fetches
// are not, so the next facility on the domain tries again.
func (v *WebsiteVerifier) homepage(ctx context.Context, domain string) string {
	if body, ok := v.bodies.Get(domain); ok {
		return body.(string)
	}

	body, fetched := v.fetchHomepage(ctx, domain)
	if fetched {
		v.bodies.SetDefault(domain, body)
	}
	return body
}

// fetchHomepage reports fetched=false for transport errors and non-2xx
// responses. A robots.txt disallow is a settled answer and counts as fetched.
func (v *WebsiteVerifier) fetchHomepage(ctx context.Context, domain string) (body string, fetched bool) {
	log := zap.L().With(zap.String("component", "website"), zap.String("domain", domain))

	if v.respectRobots && !v.robotsAllow(ctx, domain) {
		log.Debug("homepage disallowed by robots.txt")
		return "", true
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+domain, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.http.Do(req)
	if err != nil {
		log.Debug("homepage fetch failed", zap.Error(err))
		return "", false
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug("homepage fetch returned non-2xx", zap.Int("status", resp.StatusCode))
		return "", false
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, v.maxBytes))
	if err != nil && len(raw) == 0 {
		return "", false
	}
	return strings.ToLower(string(raw)), true
}

func (v *WebsiteVerifier) robotsAllow(ctx context.Context, domain string) bool {
	data, ok := v.robots.Get(domain)
	if !ok {
		fetched, err := v.fetchRobots(ctx, domain)
		if err != nil {
			return true
		}
		v.robots.SetDefault(domain, fetched)
		data = fetched
	}
	return data.(*robotstxt.RobotsData).TestAgent("/", robotsAgent(v.userAgent))
}

func (v *WebsiteVerifier) fetchRobots(ctx context.Context, domain string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+domain+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	return robotstxt.FromResponse(resp)
}

// robotsAgent is the product token of a User-Agent string.
func robotsAgent(ua string) string {
	fields := strings.Fields(ua)
	if len(fields) == 0 {
		return ua
	}
	return strings.SplitN(fields[0], "/", 2)[0]
}

// NormalizeWebsite returns the canonical form of a website URL: scheme added
// when missing, fragment and query removed. It returns "" for invalid input.
func NormalizeWebsite(raw string) string {
	u := parseWebsite(raw)
	if u == nil {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	u.ForceQuery = false
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String()
}

// DomainOf returns the lowercased hostname of a website without "www.".
func DomainOf(raw string) string {
	u := parseWebsite(raw)
	if u == nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

func parseWebsite(raw string) *url.URL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.HasPrefix(strings.ToLower(raw), "http") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return u
}

// domainLabel strips the public suffix from domain and turns separators into
// spaces, so "farmers-coop.co.uk" becomes "farmers coop".
func domainLabel(domain string) string {
	label := domain
	if suffix, _ := publicsuffix.PublicSuffix(domain); suffix != "" && suffix != domain {
		label = strings.TrimSuffix(domain, "."+suffix)
	}
	return strings.NewReplacer(".", " ", "-", " ").Replace(label)
}

func containsAnyToken(text string, tokens map[string]struct{}) bool {
	for tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
