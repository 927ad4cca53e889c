package echoserver

import (
	"fmt"
	"net/http"
)

var supportedGrants = []string{"client_credentials", "password", "authorization_code", "refresh_token"}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	base := baseURL(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                   base,
		"authorization_endpoint":   base + "/oauth2/authorize",
		"token_endpoint":           base + "/oauth2/token",
		"userinfo_endpoint":        base + "/oauth2/userinfo",
		"grant_types_supported":    supportedGrants,
		"response_types_supported": []string{"code"},
		"scopes_supported":         []string{"openid", "profile"},
	})
}

// handleToken implements the token endpoint. The client authenticates with
// HTTP Basic or with client_id/client_secret form fields.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID, clientSecret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if clientID != s.opts.ClientID || clientSecret != s.opts.ClientSecret {
		oauthError(w, http.StatusUnauthorized, "invalid_client")
		return
	}

	switch grant := r.PostForm.Get("grant_type"); grant {
	case "client_credentials":
	case "password":
		if r.PostForm.Get("username") != s.opts.Username || r.PostForm.Get("password") != s.opts.Password {
			oauthError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
	case "authorization_code":
		if r.PostForm.Get("code") != s.opts.AuthCode {
			oauthError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
	case "refresh_token":
		if !s.consumeRefreshToken(r.PostForm.Get("refresh_token")) {
			oauthError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
	default:
		oauthError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}

	access, refresh := s.issueToken()
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    int64(s.opts.TokenTTL.Seconds()),
		"refresh_token": refresh,
		"scope":         r.PostForm.Get("scope"),
	})
}

// handleUserinfo only accepts tokens issued by this server.
func (s *Server) handleUserinfo(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok || !s.validToken(token) {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sub": s.opts.Username, "token": token})
}

func (s *Server) issueToken() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenSeq++
	s.tokenRequests++
	access = fmt.Sprintf("access-%d", s.tokenSeq)
	refresh = fmt.Sprintf("refresh-%d", s.tokenSeq)
	s.tokens[access] = true
	s.refreshTokens[refresh] = true
	return access, refresh
}

func (s *Server) consumeRefreshToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.refreshTokens[token] {
		return false
	}
	delete(s.refreshTokens, token)
	return true
}

func (s *Server) validToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[token]
}

// RevokeTokens forgets every issued access token, as if they had expired server side.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.tokens)
}

func oauthError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
