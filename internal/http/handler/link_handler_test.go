package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/config"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/domain"
	transport "github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/http"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/http/handler"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/service"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/statecodec"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/tokenstore"
)

type stubChat struct {
	exchangeCalls int
}

func (s *stubChat) AuthorizationURL(state string) string {
	return "https://discord.test/oauth2/authorize?state=" + url.QueryEscape(state)
}

func (s *stubChat) ExchangeCode(context.Context, string) (domain.TokenSet, error) {
	s.exchangeCalls++
	return domain.TokenSet{AccessToken: "access", RefreshToken: "refresh", ExpiresAt: time.Now().UTC().Add(time.Hour)}, nil
}

func (s *stubChat) FetchIdentity(context.Context, domain.TokenSet) (domain.Identity, error) {
	return domain.Identity{UserID: "42", Username: "baker", Provider: "discord"}, nil
}

func (s *stubChat) PushMetadata(context.Context, string, domain.TokenSet, domain.Metadata) error {
	return nil
}

func (s *stubChat) GetMetadata(context.Context, string, domain.TokenSet) (domain.RoleConnection, error) {
	return domain.RoleConnection{PlatformName: "Cookie Clan"}, nil
}

func (s *stubChat) RegisterSchema(context.Context, []domain.SchemaField) error { return nil }

func (s *stubChat) Schema(context.Context) ([]domain.SchemaField, error) {
	return service.DefaultSchema(), nil
}

type routerHarness struct {
	router *gin.Engine
	chat   *stubChat
	store  *tokenstore.Memory
}

func newRouterHarness(t *testing.T) *routerHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	codec, err := statecodec.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	store := tokenstore.NewMemory(zap.NewNop())
	chat := &stubChat{}
	link := service.NewLinkService(codec, store, chat, nil, service.StaticSource{}, service.DefaultSchema(), 5*time.Minute, zap.NewNop())

	cfg := config.Config{ServiceName: "linked-roles-test"}
	router := transport.NewRouter(cfg, handler.NewLinkHandler(link, zap.NewNop()))
	return &routerHarness{router: router, chat: chat, store: store}
}

func (h *routerHarness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

// startLink drives /linked-role and returns the issued state and cookie.
func (h *routerHarness) startLink(t *testing.T) (state string, cookie *http.Cookie) {
	t.Helper()
	rec := h.do(httptest.NewRequest(http.MethodGet, "/linked-role", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state = location.Query().Get("state")
	require.NotEmpty(t, state)

	for _, c := range rec.Result().Cookies() {
		if c.Name == "client_state" {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "linked-role must set the state cookie")
	require.True(t, cookie.HttpOnly)
	require.True(t, cookie.Secure)
	require.Equal(t, 300, cookie.MaxAge)
	return state, cookie
}

func TestRouter_Hello(t *testing.T) {
	h := newRouterHarness(t)
	rec := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Hello, world", rec.Body.String())
}

func TestLinkedRole_RedirectsWithStateCookie(t *testing.T) {
	h := newRouterHarness(t)
	state, cookie := h.startLink(t)
	require.Equal(t, state, cookie.Value, "cookie and redirect state are the same token")
}

func TestDiscordRedirect_HappyPath(t *testing.T) {
	h := newRouterHarness(t)
	state, cookie := h.startLink(t)

	req := httptest.NewRequest(http.MethodGet, "/discord/redirect?code=auth-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(cookie)
	rec := h.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, h.chat.exchangeCalls)

	stored, err := h.store.Get(context.Background(), "discord-42")
	require.NoError(t, err)
	require.Equal(t, "access", stored.AccessToken)
}

func TestDiscordRedirect_StateMismatch(t *testing.T) {
	h := newRouterHarness(t)
	state, _ := h.startLink(t)

	req := httptest.NewRequest(http.MethodGet, "/discord/redirect?code=auth-code&state="+url.QueryEscape(state), nil)
	req.AddCookie(&http.Cookie{Name: "client_state", Value: "someone-elses-token"})
	rec := h.do(req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, 0, h.chat.exchangeCalls, "rejected before any network call")
}

func TestDiscordRedirect_MissingCookie(t *testing.T) {
	h := newRouterHarness(t)
	state, _ := h.startLink(t)

	req := httptest.NewRequest(http.MethodGet, "/discord/redirect?code=auth-code&state="+url.QueryEscape(state), nil)
	rec := h.do(req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, 0, h.chat.exchangeCalls)
}

func TestDiscordRedirect_ForgedState(t *testing.T) {
	h := newRouterHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/discord/redirect?code=auth-code&state=forged", nil)
	req.AddCookie(&http.Cookie{Name: "client_state", Value: "forged"})
	rec := h.do(req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, 0, h.chat.exchangeCalls)
}

func TestUpdateMetadata(t *testing.T) {
	h := newRouterHarness(t)
	ctx := context.Background()

	req := httptest.NewRequest(http.MethodPost, "/update-metadata", nil)
	rec := h.do(req)
	require.Equal(t, http.StatusBadRequest, rec.Code, "missing identity header")

	req = httptest.NewRequest(http.MethodPost, "/update-metadata", nil)
	req.Header.Set("X-User-ID", "42")
	rec = h.do(req)
	require.Equal(t, http.StatusInternalServerError, rec.Code, "no cached tokens is an opaque failure")

	require.NoError(t, h.store.Put(ctx, "discord-42", domain.TokenSet{AccessToken: "cached", ExpiresAt: time.Now().UTC().Add(time.Hour)}))
	req = httptest.NewRequest(http.MethodPost, "/update-metadata", nil)
	req.Header.Set("X-User-ID", "42")
	rec = h.do(req)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestGetMetadata(t *testing.T) {
	h := newRouterHarness(t)
	require.NoError(t, h.store.Put(context.Background(), "discord-42", domain.TokenSet{AccessToken: "cached"}))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/get-metadata?user_id=42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Cookie Clan")

	rec = h.do(httptest.NewRequest(http.MethodGet, "/get-metadata", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSchema(t *testing.T) {
	h := newRouterHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/get-schema", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "cookieseaten")
}
