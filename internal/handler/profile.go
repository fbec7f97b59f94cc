package handler

import (
	"log/slog"
	"net/http"

	"github.com/rkamal/authcore/internal/apperror"
	"github.com/rkamal/authcore/internal/auth"
	"github.com/rkamal/authcore/internal/model"
	"github.com/rkamal/authcore/internal/repository"
)

// ProfileHandler serves the authenticated user's own profile.
type ProfileHandler struct {
	identities repository.IdentityRepository
	logger     *slog.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(identities repository.IdentityRepository, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{identities: identities, logger: logger}
}

// profileResponse extends the user view with the providers linked to
// the account, so a client can show "connected accounts".
type profileResponse struct {
	*userView
	Providers []model.Provider `json:"providers"`
}

// HandleMe returns the caller's profile.
//
// HTTP: GET /api/me  (protected — RequireAuth already loaded the user)
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.TokenInvalid())
		return
	}

	links, err := h.identities.LinksForUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("listing provider links",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	providers := make([]model.Provider, 0, len(links))
	for _, link := range links {
		providers = append(providers, link.Provider)
	}

	writeJSON(w, http.StatusOK, profileResponse{
		userView:  newUserView(user),
		Providers: providers,
	})
}
