package greq

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"
)

// Oauth2AuthType is an OAuth2 grant type.
type Oauth2AuthType string

const (
	AuthorizationCode   Oauth2AuthType = "authorization_code"
	PasswordCredentials Oauth2AuthType = "password"
	ClientCredentials   Oauth2AuthType = "client_credentials"
	RefreshToken        Oauth2AuthType = "refresh_token"
	DeviceCode          Oauth2AuthType = "device_code"
)

// tokenExpirySkew renews tokens slightly before the server would reject them.
const tokenExpirySkew = 10 * time.Second

type Oauth2Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Expired reports whether the token must be renewed. A token without expiry never expires.
func (t *Oauth2Token) Expired() bool {
	if t == nil || t.AccessToken == "" {
		return true
	}
	if t.ExpiresAt == 0 {
		return false
	}
	return time.Now().Add(tokenExpirySkew).Unix() >= t.ExpiresAt
}

// OidcDiscovery is the subset of the OpenID Provider metadata document greq uses.
type OidcDiscovery struct {
	Issuer                 string   `json:"issuer"`
	AuthorizationEndpoint  string   `json:"authorization_endpoint"`
	TokenEndpoint          string   `json:"token_endpoint"`
	UserinfoEndpoint       string   `json:"userinfo_endpoint"`
	JwksUri                string   `json:"jwks_uri"`
	RegistrationEndpoint   string   `json:"registration_endpoint"`
	IntrospectionEndpoint  string   `json:"introspection_endpoint"`
	EndSessionEndpoint     string   `json:"end_session_endpoint"`
	GrantTypesSupported    []string `json:"grant_types_supported"`
	ResponseTypesSupported []string `json:"response_types_supported"`
	ClaimsSupported        []string `json:"claims_supported"`
	ScopesSupported        []string `json:"scopes_supported"`
}

func (od *OidcDiscovery) IsGrantTypeSupported(grantType string) bool {
	return slices.Contains(od.GrantTypesSupported, grantType)
}

func (od *OidcDiscovery) IsResponseTypeSupported(responseType string) bool {
	return slices.Contains(od.ResponseTypesSupported, responseType)
}

func (od *OidcDiscovery) IsClaimSupported(claim string) bool {
	return slices.Contains(od.ClaimsSupported, claim)
}

func (od *OidcDiscovery) IsScopeSupported(scope string) bool {
	return slices.Contains(od.ScopesSupported, scope)
}

// Oauth2Auth obtains and caches an access token from a token endpoint.
//
// Supported grants are client_credentials, password, authorization_code
// (with Code already obtained by the caller) and refresh_token (seeded with
// RefreshToken). An expired token that carries a refresh token is renewed
// with the refresh_token grant first. Safe for
// concurrent use by many requests.
type Oauth2Auth struct {
	AuthType Oauth2AuthType

	ClientID          string
	ClientSecret      string
	CredentialsInBody bool

	Username string
	Password string

	Code         string
	RedirectURL  string
	RefreshToken string
	Scopes       []string

	DiscoveryUrl     string
	AuthorizationUrl string
	TokenUrl         string
	UserinfoUrl      string

	AdditionalBodyFields map[string]string

	// Client performs discovery and token calls; nil uses the default client.
	Client *http.Client

	mu        sync.Mutex
	discovery *OidcDiscovery
	token     *Oauth2Token
}

// Token returns the cached token, if any.
func (oa *Oauth2Auth) Token() *Oauth2Token {
	oa.mu.Lock()
	defer oa.mu.Unlock()
	return oa.token
}

// TokenExpired reports whether the cached token is missing or expired.
func (oa *Oauth2Auth) TokenExpired() bool {
	return oa.Token().Expired()
}

// Discovery returns the provider metadata fetched during Prepare, if any.
func (oa *Oauth2Auth) Discovery() *OidcDiscovery {
	oa.mu.Lock()
	defer oa.mu.Unlock()
	return oa.discovery
}

func (oa *Oauth2Auth) Prepare(ctx context.Context) error {
	oa.mu.Lock()
	defer oa.mu.Unlock()

	if !oa.token.Expired() {
		return nil
	}
	if err := oa.validate(); err != nil {
		return err
	}
	if oa.TokenUrl == "" {
		if err := oa.discover(ctx); err != nil {
			return err
		}
	}

	if oa.token != nil && oa.token.RefreshToken != "" {
		token, err := oa.requestToken(ctx, oa.refreshBody(oa.token.RefreshToken))
		if err == nil {
			oa.token = token
			return nil
		}
	}

	token, err := oa.requestToken(ctx, oa.grantBody())
	if err != nil {
		return err
	}
	oa.token = token
	return nil
}

func (oa *Oauth2Auth) Apply(req *http.Request) error {
	token := oa.Token()
	if token.Expired() {
		if err := oa.Prepare(req.Context()); err != nil {
			return err
		}
		token = oa.Token()
	}
	req.Header.Set("Authorization", prefixed(tokenScheme(token.TokenType), token.AccessToken))
	return nil
}

// tokenScheme normalises the token_type returned by servers ("bearer" -> "Bearer").
func tokenScheme(tokenType string) string {
	if tokenType == "" || strings.EqualFold(tokenType, "bearer") {
		return "Bearer"
	}
	return tokenType
}

func (oa *Oauth2Auth) validate() error {
	if oa.AuthType == "" {
		return authError("oauth2 auth type is required").Build()
	}
	if oa.ClientID == "" {
		return authError("oauth2 client id is required").Build()
	}
	if oa.DiscoveryUrl == "" && oa.TokenUrl == "" {
		return authError("oauth2 requires a discovery url or a token url").Build()
	}

	switch oa.AuthType {
	case ClientCredentials:
		if oa.ClientSecret == "" {
			return authError("client_credentials grant requires a client secret").Build()
		}
	case PasswordCredentials:
		if oa.Username == "" {
			return authError("password grant requires a username").Build()
		}
	case AuthorizationCode:
		if oa.Code == "" {
			return authError("authorization_code grant requires a code").Build()
		}
	case RefreshToken:
		if oa.RefreshToken == "" {
			return authError("refresh_token grant requires a refresh token").Build()
		}
	default:
		return authError(fmt.Sprintf("oauth2 grant %s is not supported", oa.AuthType)).
			WithContext("auth_type", string(oa.AuthType)).
			Build()
	}
	return nil
}

func (oa *Oauth2Auth) discover(ctx context.Context) error {
	resp, err := GetRequest(oa.DiscoveryUrl).
		WithClient(oa.Client).
		WithHeader("Accept", "application/json").
		ExecuteContext(ctx)
	if err != nil {
		return WrapError(err, CategoryAuth, "oidc discovery failed").
			WithContext("url", oa.DiscoveryUrl).
			Build()
	}
	if err := resp.EnsureSuccess(); err != nil {
		return err
	}

	var discovery OidcDiscovery
	if err := resp.BodyUnmarshalJSON(&discovery); err != nil {
		return err
	}
	if discovery.TokenEndpoint == "" {
		return authError("oidc discovery document has no token endpoint").
			WithContext("url", oa.DiscoveryUrl).
			Build()
	}
	if len(discovery.GrantTypesSupported) > 0 && !discovery.IsGrantTypeSupported(string(oa.AuthType)) {
		return authError(fmt.Sprintf("%s grant type is not supported by this provider", oa.AuthType)).
			WithContext("url", oa.DiscoveryUrl).
			Build()
	}

	oa.discovery = &discovery
	oa.TokenUrl = discovery.TokenEndpoint
	oa.AuthorizationUrl = discovery.AuthorizationEndpoint
	oa.UserinfoUrl = discovery.UserinfoEndpoint
	return nil
}

func (oa *Oauth2Auth) grantBody() map[string]string {
	body := map[string]string{"grant_type": string(oa.AuthType)}
	switch oa.AuthType {
	case PasswordCredentials:
		body["username"] = oa.Username
		body["password"] = oa.Password
	case AuthorizationCode:
		body["code"] = oa.Code
		if oa.RedirectURL != "" {
			body["redirect_uri"] = oa.RedirectURL
		}
	case RefreshToken:
		body["refresh_token"] = oa.RefreshToken
	}
	if len(oa.Scopes) > 0 {
		body["scope"] = strings.Join(oa.Scopes, " ")
	}
	maps.Copy(body, oa.AdditionalBodyFields)
	return body
}

func (oa *Oauth2Auth) refreshBody(refresh string) map[string]string {
	return map[string]string{
		"grant_type":    string(RefreshToken),
		"refresh_token": refresh,
	}
}

func (oa *Oauth2Auth) requestToken(ctx context.Context, body map[string]string) (*Oauth2Token, error) {
	request := PostRequest(oa.TokenUrl).
		WithClient(oa.Client).
		WithHeader("Accept", "application/json")

	if oa.CredentialsInBody || oa.ClientSecret == "" {
		body["client_id"] = oa.ClientID
		if oa.ClientSecret != "" {
			body["client_secret"] = oa.ClientSecret
		}
	} else {
		request = request.WithAuth(&BasicAuth{Username: oa.ClientID, Password: oa.ClientSecret})
	}

	resp, err := request.WithUrlencodedFormBody(body).ExecuteContext(ctx)
	if err != nil {
		return nil, WrapError(err, CategoryAuth, "token request failed").
			WithContext("url", oa.TokenUrl).
			Build()
	}
	if resp.StatusCode != http.StatusOK {
		bodyStr, _ := resp.BodyString()
		return nil, authError(fmt.Sprintf("unexpected status code: %d", resp.StatusCode)).
			WithContext("url", oa.TokenUrl).
			WithContext("response", truncate(bodyStr, errorBodyLimit)).
			Build()
	}

	var token Oauth2Token
	if err := resp.BodyUnmarshalJSON(&token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, authError("token response has no access_token").
			WithContext("url", oa.TokenUrl).
			Build()
	}
	if token.ExpiresAt == 0 && token.ExpiresIn != 0 {
		token.ExpiresAt = time.Now().Unix() + token.ExpiresIn
	}
	return &token, nil
}
