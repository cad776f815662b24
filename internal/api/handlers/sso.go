package handlers

import (
	"net/http"

	"github.com/complyard/complyard/internal/apperr"
	"github.com/complyard/complyard/internal/api/middleware"
	"github.com/complyard/complyard/internal/audit"
	"github.com/complyard/complyard/internal/auth"
	"github.com/complyard/complyard/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const stateCookieName = "oauth_state"

// SSOHandler serves the OIDC login flow. After the callback the session is
// identical to one from password login.
type SSOHandler struct {
	oidc         *auth.OIDCAuthenticator
	rec          *audit.Recorder
	cookieMaxAge int
	cookieSecure bool
}

// NewSSOHandler creates the SSO handler.
func NewSSOHandler(oidc *auth.OIDCAuthenticator, rec *audit.Recorder, cookieMaxAge int, cookieSecure bool) *SSOHandler {
	return &SSOHandler{oidc: oidc, rec: rec, cookieMaxAge: cookieMaxAge, cookieSecure: cookieSecure}
}

// Login redirects the browser to the identity provider with a fresh state.
func (h *SSOHandler) Login(c *gin.Context) {
	state := uuid.NewString()
	c.SetCookie(stateCookieName, state, 300, "/", "", h.cookieSecure, true)
	c.Redirect(http.StatusFound, h.oidc.AuthURL(state))
}

// Callback validates the state, exchanges the authorization code and opens a
// session for the mapped local user.
func (h *SSOHandler) Callback(c *gin.Context) {
	state, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || c.Query("state") != state {
		Error(c, apperr.New(apperr.Unauthorized, "invalid state parameter"))
		return
	}
	c.SetCookie(stateCookieName, "", -1, "/", "", h.cookieSecure, true)

	code := c.Query("code")
	if code == "" {
		Error(c, apperr.New(apperr.BadRequest, "missing authorization code"))
		return
	}

	resp, err := h.oidc.HandleCallback(c.Request.Context(), code)
	if err != nil {
		Error(c, apperr.Wrap(apperr.Unauthorized, "single sign-on failed", err))
		return
	}

	h.rec.Record(&resp.User.ID, models.ActionLogin, "user", &resp.User.ID,
		map[string]any{"sso": true}, middleware.GetRequestID(c))

	c.SetCookie(auth.TokenCookieName, resp.Token, h.cookieMaxAge, "/", "", h.cookieSecure, true)
	c.JSON(http.StatusOK, resp)
}
