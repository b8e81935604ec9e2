package authproxy

import (
	"context"
	"crypto/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/andrebq/cgitauth/authprogram"
	"github.com/andrebq/cgitauth/authprogram/api"
	"github.com/andrebq/cgitauth/internal/testutil"
	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/require"
)

func TestRouter(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireStore(ctx, t, "proxy")
	defer cleanup()
	_, err := authprogram.Register(ctx, store, "alice", authprogram.PlainText("hunter2"), rand.Reader,
		authprogram.HashParams{Time: 1, Memory: 8 * 1024, Threads: 1, SaltLen: 16, KeyLen: 32})
	require.NoError(t, err)

	var upstreamCount int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCount++
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()
	upstreamURL, _ := url.Parse(upstream.URL)

	realm := api.NewRealm(authprogram.NewSessions(testutil.NewMemoryCache(t, nil), time.Hour), store)
	handler := AsHandler(realm, upstreamURL)

	apitest.Handler(handler).Get("/cgit/linux/").Expect(t).Status(http.StatusForbidden).End()
	apitest.Handler(handler).Get("/health").Expect(t).Status(http.StatusOK).End()

	res := apitest.New().Handler(handler).Post("/login").
		ContentType("application/x-www-form-urlencoded").
		Body("username=alice&password=hunter2").
		Expect(t).Status(http.StatusSeeOther).End()
	var cookie string
	for _, c := range res.Response.Cookies() {
		if c.Name == authprogram.CookieName {
			cookie = c.Name + "=" + c.Value
		}
	}
	require.NotEmpty(t, cookie)

	apitest.Handler(handler).Get("/cgit/linux/").Header("Cookie", cookie).Expect(t).Status(http.StatusOK).End()
	apitest.Handler(handler).Post("/cgit/linux/git-upload-pack").Header("Cookie", cookie).Expect(t).Status(http.StatusOK).End()
	require.Equal(t, 2, upstreamCount)
}

func TestRouterWithoutUpstream(t *testing.T) {
	ctx := context.Background()
	store, cleanup := testutil.AcquireStore(ctx, t, "proxy")
	defer cleanup()
	realm := api.NewRealm(authprogram.NewSessions(testutil.NewMemoryCache(t, nil), time.Hour), store)
	handler := AsHandler(realm, nil)
	apitest.Handler(handler).Get("/cgit/").Expect(t).Status(http.StatusNotFound).End()
	apitest.Handler(handler).Get("/auth").Expect(t).Status(http.StatusForbidden).End()
}
