package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/linkedin"

	"github.com/rkamal/authcore/internal/model"
)

// Profile is the normalized identity a provider asserts after a
// successful OAuth exchange. This is the only provider output the rest
// of the system ever sees — the per-provider wire formats stop here.
type Profile struct {
	Provider       model.Provider
	ProviderUserID string
	Email          string
	Name           string
}

// ProviderClient wraps golang.org/x/oauth2 for one provider's
// Authorization Code flow.
//
// The flow, end to end:
//  1. AuthURL redirects the user to the provider with our client ID.
//  2. The provider redirects back to our callback with a short-lived code.
//  3. Exchange trades the code for an access token (server-to-server,
//     using the client secret — the token never touches the browser).
//  4. fetchProfile calls the provider's userinfo endpoint and maps the
//     response into a Profile.
type ProviderClient struct {
	name         model.Provider
	config       *oauth2.Config
	fetchProfile func(ctx context.Context, client *http.Client) (Profile, error)
}

// Name returns which provider this client talks to.
func (p *ProviderClient) Name() model.Provider {
	return p.name
}

// AuthURL returns the provider authorization URL for a new login.
//
// The state parameter is a random single-use string the caller stores in
// a cookie before redirecting; the callback handler verifies the
// provider echoed it back. That closes the login-CSRF hole where an
// attacker completes an OAuth flow in the victim's browser.
func (p *ProviderClient) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange completes the flow: trades the callback code for the
// provider-asserted Profile.
func (p *ProviderClient) Exchange(ctx context.Context, code string) (Profile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("auth: exchanging %s OAuth code: %w", p.name, err)
	}

	// oauth2.Config.Client returns an http.Client that attaches the
	// bearer token to every request.
	profile, err := p.fetchProfile(ctx, p.config.Client(ctx, token))
	if err != nil {
		return Profile{}, err
	}
	profile.Provider = p.name

	if profile.ProviderUserID == "" {
		return Profile{}, fmt.Errorf("auth: %s returned a profile without a user ID", p.name)
	}
	if profile.Email == "" {
		// Email is the identity join key — without it there is nothing
		// to link. GitHub in particular returns "" when the user hides
		// their email; they must expose a public email to log in here.
		return Profile{}, fmt.Errorf("auth: %s returned a profile without an email", p.name)
	}
	return profile, nil
}

// ProviderCredentials is the client registration for one provider.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Registry holds the configured provider clients, built once at startup
// and read-only afterwards.
type Registry struct {
	clients map[model.Provider]*ProviderClient
}

// NewRegistry builds a Registry from per-provider credentials. Providers
// with an empty ClientID are skipped — running with a subset (or none)
// of the four providers configured is normal.
func NewRegistry(creds map[model.Provider]ProviderCredentials) *Registry {
	r := &Registry{clients: make(map[model.Provider]*ProviderClient)}
	for _, p := range model.Providers {
		c, ok := creds[p]
		if !ok || c.ClientID == "" {
			continue
		}
		r.clients[p] = newProviderClient(p, c)
	}
	return r
}

// Get returns the client for a provider, or false if it is not configured.
func (r *Registry) Get(p model.Provider) (*ProviderClient, bool) {
	c, ok := r.clients[p]
	return c, ok
}

// Names lists the configured providers.
func (r *Registry) Names() []model.Provider {
	var names []model.Provider
	for _, p := range model.Providers {
		if _, ok := r.clients[p]; ok {
			names = append(names, p)
		}
	}
	return names
}

func newProviderClient(name model.Provider, creds ProviderCredentials) *ProviderClient {
	base := oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURL,
	}

	switch name {
	case model.ProviderGoogle:
		base.Endpoint = google.Endpoint
		base.Scopes = []string{"openid", "email", "profile"}
		return &ProviderClient{name: name, config: &base, fetchProfile: fetchGoogleProfile}
	case model.ProviderFacebook:
		base.Endpoint = facebook.Endpoint
		base.Scopes = []string{"email", "public_profile"}
		return &ProviderClient{name: name, config: &base, fetchProfile: fetchFacebookProfile}
	case model.ProviderGitHub:
		base.Endpoint = github.Endpoint
		base.Scopes = []string{"read:user", "user:email"}
		return &ProviderClient{name: name, config: &base, fetchProfile: fetchGitHubProfile}
	case model.ProviderLinkedIn:
		base.Endpoint = linkedin.Endpoint
		base.Scopes = []string{"openid", "email", "profile"}
		return &ProviderClient{name: name, config: &base, fetchProfile: fetchLinkedInProfile}
	}
	return nil
}

// getJSON fetches a userinfo endpoint and decodes the response into out.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("auth: building userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: calling %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: %s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("auth: decoding %s response: %w", url, err)
	}
	return nil
}

func fetchGoogleProfile(ctx context.Context, client *http.Client) (Profile, error) {
	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := getJSON(ctx, client, "https://www.googleapis.com/oauth2/v2/userinfo", &me); err != nil {
		return Profile{}, err
	}
	return Profile{ProviderUserID: me.ID, Email: me.Email, Name: me.Name}, nil
}

func fetchFacebookProfile(ctx context.Context, client *http.Client) (Profile, error) {
	var me struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := getJSON(ctx, client, "https://graph.facebook.com/me?fields=id,name,email", &me); err != nil {
		return Profile{}, err
	}
	return Profile{ProviderUserID: me.ID, Email: me.Email, Name: me.Name}, nil
}

func fetchGitHubProfile(ctx context.Context, client *http.Client) (Profile, error) {
	// GitHub's numeric user ID is stable; the login can be renamed.
	var me struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user", &me); err != nil {
		return Profile{}, err
	}
	name := me.Name
	if name == "" {
		name = me.Login
	}
	return Profile{ProviderUserID: strconv.FormatInt(me.ID, 10), Email: me.Email, Name: name}, nil
}

func fetchLinkedInProfile(ctx context.Context, client *http.Client) (Profile, error) {
	// LinkedIn's OpenID Connect userinfo endpoint.
	var me struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, "https://api.linkedin.com/v2/userinfo", &me); err != nil {
		return Profile{}, err
	}
	return Profile{ProviderUserID: me.Sub, Email: me.Email, Name: me.Name}, nil
}
