package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/domain"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/tokenstore"
)

const (
	defaultPatreonAPIBase = "https://www.patreon.com/api"
	defaultPatreonAuthURL = "https://www.patreon.com/oauth2/authorize"

	patreonScopes = "users pledges-to-me my-campaign"

	// PatreonKeyPrefix namespaces Patreon user ids in the token store.
	PatreonKeyPrefix = "patreon"
)

// PatreonConfig configures the Patreon provider. AuthURL and APIBaseURL are
// overridable for tests.
type PatreonConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	AuthURL    string
	APIBaseURL string
}

// Patreon is the membership-platform provider. It supplies the authorization
// flow and identity lookup; membership attributes feed the metadata pushed
// to the chat platform.
type Patreon struct {
	client
	authURL string
	apiBase string
}

// NewPatreon constructs the Patreon provider around the shared HTTP client
// and token store.
func NewPatreon(cfg PatreonConfig, httpClient *http.Client, store tokenstore.Store, logger *zap.Logger) *Patreon {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultPatreonAuthURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultPatreonAPIBase
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Patreon{
		client: client{
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			redirectURI:  cfg.RedirectURI,
			tokenURL:     cfg.APIBaseURL + "/oauth2/token",
			keyPrefix:    PatreonKeyPrefix,
			httpClient:   httpClient,
			store:        store,
			logger:       logger,
		},
		authURL: cfg.AuthURL,
		apiBase: cfg.APIBaseURL,
	}
}

// AuthorizationURL builds the authorize endpoint URL carrying the opaque
// state. Pure; no I/O.
func (p *Patreon) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":     {p.clientID},
		"redirect_uri":  {p.redirectURI},
		"response_type": {"code"},
		"scope":         {patreonScopes},
		"state":         {state},
	}
	return p.authURL + "?" + params.Encode()
}

type patreonIdentity struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			FullName string `json:"full_name"`
		} `json:"attributes"`
	} `json:"data"`
}

// FetchIdentity resolves the authorized patron behind the token set.
func (p *Patreon) FetchIdentity(ctx context.Context, tokens domain.TokenSet) (domain.Identity, error) {
	var identity patreonIdentity
	err := p.doJSON(ctx, "fetch user data", http.MethodGet, p.apiBase+"/oauth2/v2/identity", bearer(tokens.AccessToken), nil, &identity, false)
	if err != nil {
		return domain.Identity{}, err
	}
	if strings.TrimSpace(identity.Data.ID) == "" {
		return domain.Identity{}, fmt.Errorf("fetch user data: empty user id in response")
	}
	return domain.Identity{
		UserID:   identity.Data.ID,
		Username: identity.Data.Attributes.FullName,
		Provider: PatreonKeyPrefix,
	}, nil
}
