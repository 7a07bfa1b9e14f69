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
	defaultDiscordAPIBase = "https://discord.com/api/v10"
	defaultDiscordAuthURL = "https://discord.com/oauth2/authorize"

	discordScopes = "role_connections.write identify"

	// DiscordKeyPrefix namespaces Discord user ids in the token store.
	DiscordKeyPrefix = "discord"
)

// DiscordConfig configures the Discord provider. AuthURL and APIBaseURL are
// overridable for tests.
type DiscordConfig struct {
	ClientID     string
	ClientSecret string
	BotToken     string
	RedirectURI  string
	PlatformName string

	AuthURL    string
	APIBaseURL string
}

// Discord is the chat-platform provider: the linked-role authorization flow
// plus the role-connection metadata and schema endpoints.
type Discord struct {
	client
	botToken     string
	platformName string
	authURL      string
	apiBase      string
}

// NewDiscord constructs the Discord provider around the shared HTTP client
// and token store.
func NewDiscord(cfg DiscordConfig, httpClient *http.Client, store tokenstore.Store, logger *zap.Logger) *Discord {
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultDiscordAuthURL
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultDiscordAPIBase
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Discord{
		client: client{
			clientID:     cfg.ClientID,
			clientSecret: cfg.ClientSecret,
			redirectURI:  cfg.RedirectURI,
			tokenURL:     cfg.APIBaseURL + "/oauth2/token",
			keyPrefix:    DiscordKeyPrefix,
			httpClient:   httpClient,
			store:        store,
			logger:       logger,
		},
		botToken:     cfg.BotToken,
		platformName: cfg.PlatformName,
		authURL:      cfg.AuthURL,
		apiBase:      cfg.APIBaseURL,
	}
}

// AuthorizationURL builds the authorize endpoint URL carrying the opaque
// state. Pure; no I/O.
func (d *Discord) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":     {d.clientID},
		"redirect_uri":  {d.redirectURI},
		"response_type": {"code"},
		"scope":         {discordScopes},
		"state":         {state},
		"prompt":        {"consent"},
	}
	return d.authURL + "?" + params.Encode()
}

type discordAuthInfo struct {
	User struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	} `json:"user"`
	Scopes []string `json:"scopes"`
}

// FetchIdentity resolves the authorized user behind the token set.
func (d *Discord) FetchIdentity(ctx context.Context, tokens domain.TokenSet) (domain.Identity, error) {
	var info discordAuthInfo
	err := d.doJSON(ctx, "fetch user data", http.MethodGet, d.apiBase+"/oauth2/@me", bearer(tokens.AccessToken), nil, &info, false)
	if err != nil {
		return domain.Identity{}, err
	}
	if strings.TrimSpace(info.User.ID) == "" {
		return domain.Identity{}, fmt.Errorf("fetch user data: empty user id in response")
	}
	return domain.Identity{
		UserID:   info.User.ID,
		Username: info.User.Username,
		Provider: DiscordKeyPrefix,
	}, nil
}

type roleConnectionPayload struct {
	PlatformName string          `json:"platform_name"`
	Metadata     domain.Metadata `json:"metadata"`
}

// PushMetadata resolves a fresh access token and submits the metadata
// document to the user's role connection.
func (d *Discord) PushMetadata(ctx context.Context, userID string, tokens domain.TokenSet, metadata domain.Metadata) error {
	accessToken, err := d.FreshAccessToken(ctx, userID, tokens)
	if err != nil {
		return err
	}
	payload := roleConnectionPayload{
		PlatformName: d.platformName,
		Metadata:     metadata,
	}
	return d.doJSON(ctx, "push metadata", http.MethodPut, d.roleConnectionURL(), bearer(accessToken), payload, nil, false)
}

// GetMetadata reads the user's currently registered role connection.
func (d *Discord) GetMetadata(ctx context.Context, userID string, tokens domain.TokenSet) (domain.RoleConnection, error) {
	accessToken, err := d.FreshAccessToken(ctx, userID, tokens)
	if err != nil {
		return domain.RoleConnection{}, err
	}
	var conn domain.RoleConnection
	err = d.doJSON(ctx, "get metadata", http.MethodGet, d.roleConnectionURL(), bearer(accessToken), nil, &conn, false)
	if err != nil {
		return domain.RoleConnection{}, err
	}
	return conn, nil
}

// RegisterSchema declares the metadata field definitions against the
// application. Authenticated with the bot credential; failure errors keep
// the response body since it carries validation detail.
func (d *Discord) RegisterSchema(ctx context.Context, fields []domain.SchemaField) error {
	return d.doJSON(ctx, "register metadata schema", http.MethodPut, d.schemaURL(), "Bot "+d.botToken, fields, nil, true)
}

// Schema fetches the currently registered field definitions.
func (d *Discord) Schema(ctx context.Context) ([]domain.SchemaField, error) {
	var fields []domain.SchemaField
	err := d.doJSON(ctx, "get metadata schema", http.MethodGet, d.schemaURL(), "Bot "+d.botToken, nil, &fields, true)
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (d *Discord) roleConnectionURL() string {
	return fmt.Sprintf("%s/users/@me/applications/%s/role-connection", d.apiBase, d.clientID)
}

func (d *Discord) schemaURL() string {
	return fmt.Sprintf("%s/applications/%s/role-connections/metadata", d.apiBase, d.clientID)
}

func bearer(accessToken string) string {
	return "Bearer " + accessToken
}
