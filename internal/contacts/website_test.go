package contacts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rewriteTransport sends every request to target while keeping the path.
type rewriteTransport struct {
	target *url.URL
	hosts  []string
}

func (rt *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.hosts = append(rt.hosts, req.URL.Host)
	out := req.Clone(req.Context())
	out.URL.Scheme = rt.target.Scheme
	out.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

func newTestVerifier(t *testing.T, handler http.HandlerFunc, opts ...WebsiteOption) (*WebsiteVerifier, *rewriteTransport) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)
	rt := &rewriteTransport{target: target}

	opts = append([]WebsiteOption{WithWebsiteHTTPClient(&http.Client{Transport: rt})}, opts...)
	return NewWebsiteVerifier(opts...), rt
}

func TestVerify_DomainMatch(t *testing.T) {
	var hits atomic.Int32
	v, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	got := v.Verify(context.Background(), "CHS Fargo", "https://www.chsinc.com/locations/fargo")

	assert.True(t, got.OK)
	assert.Equal(t, websiteMatchBonus, got.ScoreAdjustment)
	assert.Equal(t, "chsinc.com", got.Domain)
	assert.Equal(t, "Website domain matches facility brand", got.Reason)
	assert.Zero(t, hits.Load(), "domain match must not fetch the homepage")
}

func TestVerify_BodyMatch(t *testing.T) {
	v, rt := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><title>Welcome to Minn-Dak Farmers Cooperative</title></html>"))
	})

	got := v.Verify(context.Background(), "Minn-Dak Farmers Cooperative", "mdfarmerscoop.com")

	assert.True(t, got.OK)
	assert.Equal(t, websiteMatchBonus, got.ScoreAdjustment)
	assert.Equal(t, "Website body matches facility brand", got.Reason)
	assert.Equal(t, []string{"mdfarmerscoop.com"}, rt.hosts)
}

func TestVerify_Mismatch(t *testing.T) {
	v, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>Totally unrelated pizza shop</html>"))
	})

	got := v.Verify(context.Background(), "Red River Grain", "https://pizza.example.com")

	assert.False(t, got.OK)
	assert.Equal(t, websiteMismatchPenalty, got.ScoreAdjustment)
	assert.Equal(t, "Website domain does not match facility brand", got.Reason)
}

func TestVerify_MissingWebsite(t *testing.T) {
	v := NewWebsiteVerifier()
	for _, site := range []string{"", "   ", "https://"} {
		got := v.Verify(context.Background(), "CHS Fargo", site)
		assert.False(t, got.OK, site)
		assert.Equal(t, websiteMissingPenalty, got.ScoreAdjustment, site)
		assert.Equal(t, "Missing or invalid website domain", got.Reason, site)
	}
}

func TestVerify_FetchFailureIsMismatch(t *testing.T) {
	v, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("red river"))
	})

	got := v.Verify(context.Background(), "Red River Grain", "https://unrelated.example.com")
	assert.False(t, got.OK)
	assert.Equal(t, websiteMismatchPenalty, got.ScoreAdjustment)
}

func TestVerify_BodyCachedPerDomain(t *testing.T) {
	var hits atomic.Int32
	v, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("dakota mill and grain"))
	})

	for range 3 {
		got := v.Verify(context.Background(), "Dakota Mill", "https://www.dmgi.com")
		assert.True(t, got.OK)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestVerify_FailedFetchNotCached(t *testing.T) {
	var hits atomic.Int32
	v, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("dakota mill and grain"))
	})

	first := v.Verify(context.Background(), "Dakota Mill", "https://www.dmgi.com")
	assert.False(t, first.OK)

	second := v.Verify(context.Background(), "Dakota Mill", "https://www.dmgi.com")
	assert.True(t, second.OK, "a later facility on the domain fetches again")
	assert.Equal(t, int32(2), hits.Load())

	v.Verify(context.Background(), "Dakota Mill", "https://www.dmgi.com")
	assert.Equal(t, int32(2), hits.Load(), "the successful body is cached")
}

func TestVerify_MaxBytesTruncatesBody(t *testing.T) {
	v, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("0123456789 dakota"))
	}, WithMaxBytes(10))

	got := v.Verify(context.Background(), "Dakota Mill", "https://www.dmgi.com")
	assert.False(t, got.OK)
}

func TestVerify_RespectsRobots(t *testing.T) {
	var homepageHits atomic.Int32
	v, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: BuyerSync\nDisallow: /\n"))
			return
		}
		homepageHits.Add(1)
		_, _ = w.Write([]byte("dakota mill and grain"))
	}, WithRobots(true))

	got := v.Verify(context.Background(), "Dakota Mill", "https://www.dmgi.com")
	assert.False(t, got.OK)
	assert.Zero(t, homepageHits.Load())
}

func TestVerify_RobotsAllowOtherAgents(t *testing.T) {
	v, _ := newTestVerifier(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: OtherBot\nDisallow: /\n"))
			return
		}
		assert.Equal(t, "BuyerSync/1.0 (+contact sync)", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("dakota mill and grain"))
	}, WithRobots(true))

	got := v.Verify(context.Background(), "Dakota Mill", "https://www.dmgi.com")
	assert.True(t, got.OK)
}

func TestNormalizeWebsite(t *testing.T) {
	tests := map[string]string{
		"chsinc.com":                           "https://chsinc.com/",
		"https://www.chsinc.com/?utm_source=g": "https://www.chsinc.com/",
		"http://example.com/about#team":        "http://example.com/about",
		"  https://Example.com/x  ":            "https://Example.com/x",
		"":                                     "",
		"https://":                             "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeWebsite(in), "input %q", in)
	}
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "chsinc.com", DomainOf("https://WWW.CHSinc.com/path"))
	assert.Equal(t, "agp.com", DomainOf("agp.com"))
	assert.Equal(t, "", DomainOf(""))
}

func TestDomainLabel(t *testing.T) {
	assert.Equal(t, "farmers coop", domainLabel("farmers-coop.co.uk"))
	assert.Equal(t, "grain mycoop", domainLabel("grain.mycoop.com"))
}

func TestRobotsAgent(t *testing.T) {
	assert.Equal(t, "BuyerSync", robotsAgent("BuyerSync/1.0 (+contact sync)"))
	assert.Equal(t, "", robotsAgent(""))
}
