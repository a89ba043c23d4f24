package ports_test

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Amund211/memocache/internal/ports"
	"github.com/stretchr/testify/require"
)

const PROD_DOMAIN_SUFFIX = "memocache.dev"
const STAGING_DOMAIN_SUFFIX = "memocache-dashboard.pages.dev"

type originRule struct {
	origin  string
	allowed bool
}

func TestNewDomainSuffixes(t *testing.T) {
	t.Parallel()

	for _, suffix := range []string{".memocache.dev", "https://memocache.dev", ""} {
		_, err := ports.NewDomainSuffixes(suffix)
		require.Error(t, err, "suffix %q", suffix)
	}

	suffixes, err := ports.NewDomainSuffixes()
	require.NoError(t, err)
	require.False(t, suffixes.AnyMatch("https://memocache.dev"))

	var nilSuffixes *ports.DomainSuffixes
	require.False(t, nilSuffixes.AnyMatch("https://memocache.dev"))
}

func TestCORS(t *testing.T) {
	t.Parallel()
	allowedOrigins, err := ports.NewDomainSuffixes(
		PROD_DOMAIN_SUFFIX,
		STAGING_DOMAIN_SUFFIX,
	)
	require.NoError(t, err)

	cases := []originRule{
		// Prod
		{origin: "https://memocache.dev", allowed: true},
		{origin: "https://www.memocache.dev", allowed: true},
		// Staging
		{origin: "https://53bcd591.memocache-dashboard.pages.dev", allowed: true},
		{origin: "https://memocache-dashboard.pages.dev", allowed: true},
		// Other pages
		{origin: "example.com", allowed: false},
		{origin: "https://example.com", allowed: false},
		{origin: "https://www.google.com", allowed: false},
		// Similar-looking domains
		{origin: "https://memo-cache.dev", allowed: false},
		{origin: "https://mymemocache.dev", allowed: false},
		{origin: "https://www.mymemocache.dev", allowed: false},
		{origin: "https://supermemocache-dashboard.pages.dev", allowed: false},
		// Insecure scheme
		{origin: "http://memocache.dev", allowed: false},
		{origin: "http://www.memocache.dev", allowed: false},
		// Weird cases
		{origin: "", allowed: false},
		{origin: "memocache", allowed: false},
		{origin: "memocache.dev", allowed: false},
		{origin: "pages.dev", allowed: false},
	}

	runCORSTest := func(t *testing.T, handler http.HandlerFunc, method string, c originRule, handlerStatusCode int, handlerBody []byte) {
		req := httptest.NewRequest(method, "https://api-url.com", nil)
		req.Header.Set("Origin", c.origin)
		w := httptest.NewRecorder()

		handler(w, req)

		resp := w.Result()

		// The handler is allowed to run when the method is not OPTIONS
		if method != http.MethodOptions {
			require.Equal(t, handlerStatusCode, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			require.Equal(t, handlerBody, body)
		}

		if c.allowed {
			require.Equal(t, c.origin, resp.Header.Get("Access-Control-Allow-Origin"))

			if method == http.MethodOptions {
				require.Equal(t, http.StatusNoContent, resp.StatusCode)
				require.Equal(t, "GET,DELETE", resp.Header.Get("Access-Control-Allow-Methods"))
				require.Equal(t, "Content-Type, X-Client-Id", resp.Header.Get("Access-Control-Allow-Headers"))
				require.Equal(t, "3600", resp.Header.Get("Access-Control-Max-Age"))
			} else {
				require.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
				require.Empty(t, resp.Header.Get("Access-Control-Allow-Headers"))
			}
		} else {
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Methods"))
			require.Empty(t, resp.Header.Get("Access-Control-Allow-Headers"))
		}
	}

	methods := []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}

	t.Run("BuildCORSMiddleware", func(t *testing.T) {
		t.Parallel()

		middleware := ports.BuildCORSMiddleware(allowedOrigins)

		handler := middleware(
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(200)
				w.Write([]byte("Hello, world!"))
			},
		)

		for _, c := range cases {
			t.Run(fmt.Sprintf("Origin:'%s'", c.origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range methods {
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						runCORSTest(t, handler, method, c, 200, []byte("Hello, world!"))
					})
				}
			})
		}
	})

	t.Run("BuildCORSHandler", func(t *testing.T) {
		t.Parallel()

		handler := ports.BuildCORSHandler(allowedOrigins)

		for _, c := range cases {
			t.Run(fmt.Sprintf("Origin:'%s'", c.origin), func(t *testing.T) {
				t.Parallel()
				for _, method := range methods {
					t.Run(method, func(t *testing.T) {
						t.Parallel()

						runCORSTest(t, handler, method, c, 204, []byte{})
					})
				}
			})
		}
	})
}
