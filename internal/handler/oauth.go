package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/rkamal/authcore/internal/auth"
	"github.com/rkamal/authcore/internal/model"
	"github.com/rkamal/authcore/internal/service"
)

const (
	stateCookie = "oauth_state"
	nextCookie  = "oauth_next"
)

// OAuthHandler serves the provider login redirect and callback for
// every configured provider. The provider name rides in the URL:
//
//	GET /oauth/{provider}/login
//	GET /oauth/{provider}/callback
type OAuthHandler struct {
	providers *auth.Registry
	linker    *service.IdentityLinker
	logger    *slog.Logger
}

// NewOAuthHandler creates an OAuthHandler.
func NewOAuthHandler(providers *auth.Registry, linker *service.IdentityLinker, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{providers: providers, linker: linker, logger: logger}
}

// HandleLogin redirects the browser to the provider's authorization
// page.
//
// A random state value goes into a short-lived HttpOnly cookie; the
// callback only proceeds if the provider echoes the same value back.
// That ties the callback to a flow this server started (login CSRF).
//
// An optional ?next=/some/path is remembered in a second cookie and
// honoured after the callback. Only relative paths are accepted — an
// absolute URL here would be an open redirect.
func (h *OAuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(w, r)
	if !ok {
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // long enough to approve, short enough to limit replay
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if next := r.URL.Query().Get("next"); next != "" && strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") {
		http.SetCookie(w, &http.Cookie{
			Name:     nextCookie,
			Value:    next,
			Path:     "/",
			MaxAge:   600,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	http.Redirect(w, r, provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// oauthResponse is the callback success body, mirroring what a token
// login returns but with the pair nested under "tokens".
type oauthResponse struct {
	User   *userView  `json:"user"`
	Tokens tokensView `json:"tokens"`
}

// HandleCallback completes the provider flow: state check, code
// exchange, identity linking, token issuance.
//
// HTTP: GET /oauth/{provider}/callback?code=...&state=...
// 200 {user, tokens} — or a redirect to the remembered ?next path with
// the pair in the URL fragment.
func (h *OAuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.provider(w, r)
	if !ok {
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("oauth callback: state mismatch", slog.String("provider", string(provider.Name())))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid OAuth state"})
		return
	}
	// The state is single-use.
	clearCookie(w, stateCookie)

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		// The user hit "deny" on the provider's consent screen.
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Access denied"})
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing OAuth code"})
		return
	}

	profile, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth callback: exchange failed",
			slog.String("provider", string(provider.Name())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Authentication failed"})
		return
	}

	result, err := h.linker.Login(r.Context(), profile)
	if err != nil {
		writeError(w, err)
		return
	}

	if next, err := r.Cookie(nextCookie); err == nil && next.Value != "" {
		clearCookie(w, nextCookie)
		http.Redirect(w, r, nextURLWithTokens(next.Value, result.Tokens), http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusOK, oauthResponse{
		User: newUserView(result.User),
		Tokens: tokensView{
			AccessToken:  result.Tokens.AccessToken,
			RefreshToken: result.Tokens.RefreshToken,
		},
	})
}

// nextURLWithTokens carries the freshly issued pair to the ?next page
// in the URL fragment. IssuePair has already revoked the previous pair
// by this point, so a bare redirect would strand the browser with no
// working credentials. The fragment never leaves the browser: it is not
// sent to the server hosting next and stays out of access logs.
func nextURLWithTokens(next string, pair *model.TokenPair) string {
	v := url.Values{}
	v.Set("access_token", pair.AccessToken)
	v.Set("refresh_token", pair.RefreshToken)
	return next + "#" + v.Encode()
}

// provider resolves the {provider} URL parameter to a configured
// client, writing the error response itself when it cannot.
func (h *OAuthHandler) provider(w http.ResponseWriter, r *http.Request) (*auth.ProviderClient, bool) {
	name, err := model.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Provider not supported"})
		return nil, false
	}
	client, ok := h.providers.Get(name)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Provider not configured"})
		return nil, false
	}
	return client, true
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
}
