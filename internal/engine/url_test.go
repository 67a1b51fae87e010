package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"HTTPS://Shop.Test:443/Page?b=2&a=1": "https://shop.test/Page?a=1&b=2",
		"http://shop.test:80/page#section":   "http://shop.test/page",
		"https://shop.test/page":             "https://shop.test/page",
		"::bad::":                            "::bad::",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizeURL(in), "input %q", in)
	}
}

func TestEngine_VisitedSetUsesNormalizedURLs(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	eng := newTestEngine(t, testEngineConfig(), &fakeParser{}, &fakeStorage{}, fetcher)

	eng.ProcessURL(context.Background(), "https://a.test/page?x=1&y=2")
	eng.ProcessURL(context.Background(), "https://A.Test/page?y=2&x=1")
	eng.ProcessURL(context.Background(), "https://a.test/page?x=1&y=2#frag")

	require.Equal(t, 1, fetcher.totalCalls())
}
