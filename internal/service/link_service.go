// Package service orchestrates the linked-role workflows: authorization
// start, callback completion, and metadata push.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/domain"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/provider"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/statecodec"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/tokenstore"
)

// ChatProvider is the chat-platform capability the workflows need.
type ChatProvider interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (domain.TokenSet, error)
	FetchIdentity(ctx context.Context, tokens domain.TokenSet) (domain.Identity, error)
	PushMetadata(ctx context.Context, userID string, tokens domain.TokenSet, metadata domain.Metadata) error
	GetMetadata(ctx context.Context, userID string, tokens domain.TokenSet) (domain.RoleConnection, error)
	RegisterSchema(ctx context.Context, fields []domain.SchemaField) error
	Schema(ctx context.Context) ([]domain.SchemaField, error)
}

// MembershipProvider is the membership-platform capability.
type MembershipProvider interface {
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (domain.TokenSet, error)
	FetchIdentity(ctx context.Context, tokens domain.TokenSet) (domain.Identity, error)
}

// MetadataSource supplies the attribute values pushed for a user.
type MetadataSource interface {
	Collect(ctx context.Context, userID string) (domain.Metadata, error)
}

// LinkService defines the linked-role orchestration behaviors.
type LinkService interface {
	StartDiscordLink() (*StartLinkOutput, error)
	StartPatreonLink() (*StartLinkOutput, error)
	VerifyState(token, cookie string) error
	CompleteDiscordLink(ctx context.Context, code string) (string, error)
	CompletePatreonLink(ctx context.Context, code string) (string, error)
	UpdateMetadata(ctx context.Context, userID string) error
	Metadata(ctx context.Context, userID string) (domain.RoleConnection, error)
	Schema(ctx context.Context) ([]domain.SchemaField, error)
	RegisterSchema(ctx context.Context) error
}

// StartLinkOutput carries the signed state and the authorization URL it is
// bound to.
type StartLinkOutput struct {
	State            string
	AuthorizationURL string
	TTL              time.Duration
}

type linkService struct {
	codec    *statecodec.Codec
	store    tokenstore.Store
	discord  ChatProvider
	patreon  MembershipProvider
	source   MetadataSource
	schema   []domain.SchemaField
	stateTTL time.Duration
	logger   *zap.Logger
}

// NewLinkService wires the linked-role orchestration. patreon may be nil
// when the membership platform is not configured.
func NewLinkService(
	codec *statecodec.Codec,
	store tokenstore.Store,
	discord ChatProvider,
	patreon MembershipProvider,
	source MetadataSource,
	schema []domain.SchemaField,
	stateTTL time.Duration,
	logger *zap.Logger,
) LinkService {
	if logger == nil {
		logger = zap.L()
	}
	return &linkService{
		codec:    codec,
		store:    store,
		discord:  discord,
		patreon:  patreon,
		source:   source,
		schema:   schema,
		stateTTL: stateTTL,
		logger:   logger,
	}
}

func (s *linkService) StartDiscordLink() (*StartLinkOutput, error) {
	return s.startLink(s.discord.AuthorizationURL)
}

func (s *linkService) StartPatreonLink() (*StartLinkOutput, error) {
	if s.patreon == nil {
		return nil, fmt.Errorf("patreon provider not configured")
	}
	return s.startLink(s.patreon.AuthorizationURL)
}

func (s *linkService) startLink(buildURL func(state string) string) (*StartLinkOutput, error) {
	state, err := s.codec.Sign(s.stateTTL)
	if err != nil {
		return nil, fmt.Errorf("sign state: %w", err)
	}
	return &StartLinkOutput{
		State:            state,
		AuthorizationURL: buildURL(state),
		TTL:              s.stateTTL,
	}, nil
}

// VerifyState rejects the callback unless the query state equals the client
// cookie and the token itself decrypts with an unexpired claim set. Both
// checks run before any network call; failure is authorization forgery as
// far as callers are concerned.
func (s *linkService) VerifyState(token, cookie string) error {
	if token == "" || cookie == "" || token != cookie {
		return fmt.Errorf("%w: state/cookie mismatch", domain.ErrStateInvalid)
	}
	if _, err := s.codec.Verify(token, time.Now().UTC()); err != nil {
		return err
	}
	return nil
}

// CompleteDiscordLink runs the callback leg: exchange the code, resolve the
// identity, persist the tokens, and push an initial metadata document.
func (s *linkService) CompleteDiscordLink(ctx context.Context, code string) (string, error) {
	tokens, err := s.discord.ExchangeCode(ctx, code)
	if err != nil {
		return "", err
	}
	identity, err := s.discord.FetchIdentity(ctx, tokens)
	if err != nil {
		return "", err
	}
	key := provider.DiscordKeyPrefix + "-" + identity.UserID
	if err := s.store.Put(ctx, key, tokens); err != nil {
		return "", fmt.Errorf("store tokens: %w", err)
	}
	if err := s.UpdateMetadata(ctx, identity.UserID); err != nil {
		return "", err
	}
	return identity.UserID, nil
}

// CompletePatreonLink exchanges and stores the membership-platform tokens.
func (s *linkService) CompletePatreonLink(ctx context.Context, code string) (string, error) {
	if s.patreon == nil {
		return "", fmt.Errorf("patreon provider not configured")
	}
	tokens, err := s.patreon.ExchangeCode(ctx, code)
	if err != nil {
		return "", err
	}
	identity, err := s.patreon.FetchIdentity(ctx, tokens)
	if err != nil {
		return "", err
	}
	key := provider.PatreonKeyPrefix + "-" + identity.UserID
	if err := s.store.Put(ctx, key, tokens); err != nil {
		return "", fmt.Errorf("store tokens: %w", err)
	}
	return identity.UserID, nil
}

// UpdateMetadata re-runs the push workflow for an already linked user:
// load cached tokens, refresh if stale (delegated to the provider), push.
// Absent tokens are fatal to the invocation; the user must re-authorize.
func (s *linkService) UpdateMetadata(ctx context.Context, userID string) error {
	tokens, err := s.store.Get(ctx, provider.DiscordKeyPrefix+"-"+userID)
	if err != nil {
		return err
	}

	metadata, err := s.source.Collect(ctx, userID)
	if err != nil {
		// The push still proceeds with an empty document, matching the
		// source-of-truth outage behavior of the original flow.
		s.logger.Error("failed to collect metadata", zap.String("user_id", userID), zap.Error(err))
		metadata = domain.Metadata{}
	}

	return s.discord.PushMetadata(ctx, userID, tokens, metadata)
}

// Metadata returns the user's currently registered role connection.
func (s *linkService) Metadata(ctx context.Context, userID string) (domain.RoleConnection, error) {
	tokens, err := s.store.Get(ctx, provider.DiscordKeyPrefix+"-"+userID)
	if err != nil {
		return domain.RoleConnection{}, err
	}
	return s.discord.GetMetadata(ctx, userID, tokens)
}

// Schema fetches the registered schema from the chat platform.
func (s *linkService) Schema(ctx context.Context) ([]domain.SchemaField, error) {
	return s.discord.Schema(ctx)
}

// RegisterSchema declares the configured field definitions upstream.
func (s *linkService) RegisterSchema(ctx context.Context) error {
	return s.discord.RegisterSchema(ctx, s.schema)
}
