package config

import (
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"git.home.luguber.info/inful/greq"
)

// AuthConfig represents authentication configuration. Only the block
// matching Type is read.
type AuthConfig struct {
	Type AuthType `yaml:"type"`

	// basic, ntlm
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`

	// bearer
	Token  string `yaml:"token,omitempty"`
	Prefix string `yaml:"prefix,omitempty"`

	// header
	Header string `yaml:"header,omitempty"`
	Value  string `yaml:"value,omitempty"`

	JWT    JWTConfig    `yaml:"jwt,omitempty"`
	OAuth2 OAuth2Config `yaml:"oauth2,omitempty"`
	NTLM   NTLMConfig   `yaml:"ntlm,omitempty"`
	Cert   CertConfig   `yaml:"cert,omitempty"`
	AWS    AWSConfig    `yaml:"aws,omitempty"`
}

type JWTConfig struct {
	Algorithm string `yaml:"algorithm,omitempty"`
	// Secret is the HMAC key for HS* algorithms.
	Secret string `yaml:"secret,omitempty"`
	// KeyFile is a PEM private key for RS*, PS* and ES* algorithms.
	KeyFile string         `yaml:"key_file,omitempty"`
	Claims  map[string]any `yaml:"claims,omitempty"`
	Headers map[string]any `yaml:"headers,omitempty"`
	Prefix  string         `yaml:"prefix,omitempty"`
}

type OAuth2Config struct {
	Grant             string   `yaml:"grant,omitempty"`
	ClientID          string   `yaml:"client_id,omitempty"`
	ClientSecret      string   `yaml:"client_secret,omitempty"`
	CredentialsInBody bool     `yaml:"credentials_in_body,omitempty"`
	TokenURL          string   `yaml:"token_url,omitempty"`
	DiscoveryURL      string   `yaml:"discovery_url,omitempty"`
	Scopes            []string `yaml:"scopes,omitempty"`
	Username          string   `yaml:"username,omitempty"`
	Password          string   `yaml:"password,omitempty"`
	Code              string   `yaml:"code,omitempty"`
	RedirectURL       string   `yaml:"redirect_url,omitempty"`
	RefreshToken      string   `yaml:"refresh_token,omitempty"`
}

type NTLMConfig struct {
	ForceHTTP11        bool `yaml:"force_http11,omitempty"`
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty"`
}

type CertConfig struct {
	CertFile   string `yaml:"cert_file,omitempty"`
	KeyFile    string `yaml:"key_file,omitempty"`
	PKCS12File string `yaml:"pkcs12_file,omitempty"`
	Password   string `yaml:"password,omitempty"`
	CAFile     string `yaml:"ca_file,omitempty"`
}

type AWSConfig struct {
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Service         string `yaml:"service,omitempty"`
}

// IsZero reports whether no auth method is specified.
func (a *AuthConfig) IsZero() bool { return a == nil || a.Type == "" || a.Type == AuthTypeNone }

// Authorization builds the greq authorization for the configured method.
// It returns nil when no method is configured.
func (a *AuthConfig) Authorization() (greq.Authorization, error) {
	if a.IsZero() {
		return nil, nil
	}

	switch a.Type {
	case AuthTypeBasic:
		return &greq.BasicAuth{Username: a.Username, Password: a.Password}, nil
	case AuthTypeBearer:
		return &greq.BearerAuth{Token: a.Token, Prefix: a.Prefix}, nil
	case AuthTypeHeader:
		return &greq.HeaderAuth{Key: a.Header, Value: a.Value}, nil
	case AuthTypeJWT:
		return a.jwtAuth()
	case AuthTypeOAuth2:
		o := a.OAuth2
		return &greq.Oauth2Auth{
			AuthType:          greq.Oauth2AuthType(o.Grant),
			ClientID:          o.ClientID,
			ClientSecret:      o.ClientSecret,
			CredentialsInBody: o.CredentialsInBody,
			Username:          o.Username,
			Password:          o.Password,
			Code:              o.Code,
			RedirectURL:       o.RedirectURL,
			RefreshToken:      o.RefreshToken,
			Scopes:            o.Scopes,
			DiscoveryUrl:      o.DiscoveryURL,
			TokenUrl:          o.TokenURL,
		}, nil
	case AuthTypeNTLM:
		return &greq.NTLMAuth{
			Username:           a.Username,
			Password:           a.Password,
			ForceHttp11:        a.NTLM.ForceHTTP11,
			InsecureSkipVerify: a.NTLM.InsecureSkipVerify,
		}, nil
	case AuthTypeCert:
		return a.certAuth()
	case AuthTypeAWS:
		return &greq.AwsSignatureAuth{
			AccessKey:    a.AWS.AccessKeyID,
			SecretKey:    a.AWS.SecretAccessKey,
			SessionToken: a.AWS.SessionToken,
			Region:       a.AWS.Region,
			ServiceName:  a.AWS.Service,
		}, nil
	default:
		return nil, greq.NewError(greq.CategoryConfig, fmt.Sprintf("unsupported auth type: %s", a.Type)).Build()
	}
}

func (a *AuthConfig) jwtAuth() (greq.Authorization, error) {
	j := a.JWT
	alg := greq.JwtAlgorithm(strings.ToUpper(j.Algorithm))

	var secret any
	switch {
	case strings.HasPrefix(string(alg), "HS"):
		secret = []byte(j.Secret)
	default:
		pemData, err := os.ReadFile(j.KeyFile) // #nosec G304 -- operator supplied path
		if err != nil {
			return nil, greq.WrapError(err, greq.CategoryConfig, "failed to read jwt key file").
				WithContext("path", j.KeyFile).
				Build()
		}
		if strings.HasPrefix(string(alg), "ES") {
			secret, err = jwt.ParseECPrivateKeyFromPEM(pemData)
		} else {
			secret, err = jwt.ParseRSAPrivateKeyFromPEM(pemData)
		}
		if err != nil {
			return nil, greq.WrapError(err, greq.CategoryConfig, "failed to parse jwt key file").
				WithContext("path", j.KeyFile).
				Build()
		}
	}

	claims := jwt.MapClaims{}
	for k, v := range j.Claims {
		claims[k] = v
	}
	return &greq.JwtAuth{
		Algorithm:         alg,
		Secret:            secret,
		Payload:           claims,
		AdditionalHeaders: j.Headers,
		HeaderPrefix:      j.Prefix,
	}, nil
}

func (a *AuthConfig) certAuth() (greq.Authorization, error) {
	c := a.Cert
	auth := greq.NewClientCertificateAuth()
	if c.PKCS12File != "" {
		auth = auth.FromPKCS12(c.PKCS12File, c.Password)
	} else {
		auth = auth.FromX509(c.CertFile, c.KeyFile)
	}

	if c.CAFile != "" {
		pemData, err := os.ReadFile(c.CAFile) // #nosec G304 -- operator supplied path
		if err != nil {
			return nil, greq.WrapError(err, greq.CategoryConfig, "failed to read ca file").
				WithContext("path", c.CAFile).
				Build()
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, greq.NewError(greq.CategoryConfig, "ca file contains no certificates").
				WithContext("path", c.CAFile).
				Build()
		}
		auth = auth.WithCaCertificates(pool)
	}
	return auth, nil
}
