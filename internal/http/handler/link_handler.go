package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/domain"
	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/service"
)

const stateCookieName = "client_state"

// LinkHandler exposes the linked-role HTTP surface.
type LinkHandler struct {
	Link   service.LinkService
	Logger *zap.Logger
}

// NewLinkHandler creates the handler set.
func NewLinkHandler(link service.LinkService, logger *zap.Logger) *LinkHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &LinkHandler{Link: link, Logger: logger}
}

// Hello is the root liveness route.
func (h *LinkHandler) Hello(c *gin.Context) {
	c.String(http.StatusOK, "Hello, world")
}

// LinkedRole issues a signed state, pins it to a cookie, and redirects the
// browser to the Discord authorization URL.
func (h *LinkHandler) LinkedRole(c *gin.Context) {
	out, err := h.Link.StartDiscordLink()
	if err != nil {
		h.fail(c, "start discord link", err)
		return
	}
	h.redirectWithState(c, out)
}

// PatreonLinkedRole starts the membership-platform authorization flow.
func (h *LinkHandler) PatreonLinkedRole(c *gin.Context) {
	out, err := h.Link.StartPatreonLink()
	if err != nil {
		h.fail(c, "start patreon link", err)
		return
	}
	h.redirectWithState(c, out)
}

func (h *LinkHandler) redirectWithState(c *gin.Context, out *service.StartLinkOutput) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, out.State, int(out.TTL.Seconds()), "/", "", true, true)
	c.Redirect(http.StatusSeeOther, out.AuthorizationURL)
}

// DiscordRedirect handles the authorization callback. The state is checked
// against the cookie and verified cryptographically before any network call.
func (h *LinkHandler) DiscordRedirect(c *gin.Context) {
	code, ok := h.verifiedCode(c)
	if !ok {
		return
	}
	if _, err := h.Link.CompleteDiscordLink(c.Request.Context(), code); err != nil {
		h.fail(c, "complete discord link", err)
		return
	}
	c.String(http.StatusOK, "You did it! Now go back to Discord.")
}

// PatreonRedirect handles the membership-platform callback.
func (h *LinkHandler) PatreonRedirect(c *gin.Context) {
	code, ok := h.verifiedCode(c)
	if !ok {
		return
	}
	if _, err := h.Link.CompletePatreonLink(c.Request.Context(), code); err != nil {
		h.fail(c, "complete patreon link", err)
		return
	}
	c.String(http.StatusOK, "Patreon account linked. You can close this tab.")
}

// verifiedCode extracts the code after the state/cookie check passes. A
// verification failure is surfaced as 403 with a terse body.
func (h *LinkHandler) verifiedCode(c *gin.Context) (string, bool) {
	code := c.Query("code")
	state := c.Query("state")
	cookie, err := c.Cookie(stateCookieName)
	if err != nil {
		cookie = ""
	}
	if err := h.Link.VerifyState(state, cookie); err != nil {
		h.Logger.Warn("state verification failed", zap.Error(err))
		c.String(http.StatusForbidden, "State verification failed.")
		return "", false
	}
	if code == "" {
		c.String(http.StatusForbidden, "State verification failed.")
		return "", false
	}
	return code, true
}

// UpdateMetadata re-runs the push workflow for an already identified user.
// Identity attachment (session auth) is an external collaborator; here it
// arrives as a header.
func (h *LinkHandler) UpdateMetadata(c *gin.Context) {
	userID := c.GetHeader("X-User-ID")
	if userID == "" {
		c.String(http.StatusBadRequest, "missing user id")
		return
	}
	if err := h.Link.UpdateMetadata(c.Request.Context(), userID); err != nil {
		h.fail(c, "update metadata", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetMetadata returns the user's registered role connection as a textual
// dump.
func (h *LinkHandler) GetMetadata(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.String(http.StatusBadRequest, "missing user id")
		return
	}
	conn, err := h.Link.Metadata(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, "get metadata", err)
		return
	}
	c.String(http.StatusOK, fmt.Sprintf("%+v", conn))
}

// GetSchema returns the registered schema as a textual dump.
func (h *LinkHandler) GetSchema(c *gin.Context) {
	schema, err := h.Link.Schema(c.Request.Context())
	if err != nil {
		h.fail(c, "get schema", err)
		return
	}
	c.String(http.StatusOK, fmt.Sprintf("%+v", schema))
}

// fail maps core errors onto client responses: state failures are 403,
// everything else is an opaque 500. Detail only reaches the logs.
func (h *LinkHandler) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, domain.ErrStateInvalid) {
		h.Logger.Warn(op, zap.Error(err))
		c.String(http.StatusForbidden, "State verification failed.")
		return
	}
	h.Logger.Error(op, zap.Error(err))
	c.String(http.StatusInternalServerError, "Internal server error.")
}
