package greq

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// JwtAlgorithm names a JWS signing algorithm.
type JwtAlgorithm string

const (
	HS256 JwtAlgorithm = "HS256"
	HS384 JwtAlgorithm = "HS384"
	HS512 JwtAlgorithm = "HS512"
	RS256 JwtAlgorithm = "RS256"
	RS384 JwtAlgorithm = "RS384"
	RS512 JwtAlgorithm = "RS512"
	PS256 JwtAlgorithm = "PS256"
	PS384 JwtAlgorithm = "PS384"
	PS512 JwtAlgorithm = "PS512"
	ES256 JwtAlgorithm = "ES256"
	ES384 JwtAlgorithm = "ES384"
	ES512 JwtAlgorithm = "ES512"
)

// JwtAuth signs Payload on every request and sends it as "<HeaderPrefix> <token>".
//
// Secret is the signing key in the form the algorithm expects: []byte for HS*,
// *rsa.PrivateKey for RS*/PS*, *ecdsa.PrivateKey for ES*.
type JwtAuth struct {
	Algorithm         JwtAlgorithm
	Secret            any
	Payload           jwt.Claims
	AdditionalHeaders map[string]any
	HeaderPrefix      string
}

func (ja *JwtAuth) Prepare(context.Context) error {
	_, err := ja.signingMethod()
	return err
}

// signingMethod resolves the algorithm on every call so a shared JwtAuth
// holds no mutable state.
func (ja *JwtAuth) signingMethod() (jwt.SigningMethod, error) {
	method := jwt.GetSigningMethod(string(ja.Algorithm))
	if method == nil {
		return nil, authError(fmt.Sprintf("invalid jwt algorithm: %s", ja.Algorithm)).Build()
	}
	if ja.Secret == nil {
		return nil, authError("jwt secret cannot be empty").Build()
	}
	return method, nil
}

// Sign returns the signed token string.
func (ja *JwtAuth) Sign() (string, error) {
	method, err := ja.signingMethod()
	if err != nil {
		return "", err
	}
	claims := ja.Payload
	if claims == nil {
		claims = jwt.MapClaims{}
	}
	token := jwt.NewWithClaims(method, claims)
	for k, v := range ja.AdditionalHeaders {
		token.Header[k] = v
	}
	signed, err := token.SignedString(ja.Secret)
	if err != nil {
		return "", WrapError(err, CategoryAuth, "failed to sign jwt").
			WithContext("algorithm", string(ja.Algorithm)).
			Build()
	}
	return signed, nil
}

func (ja *JwtAuth) Apply(req *http.Request) error {
	signed, err := ja.Sign()
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", prefixed(ja.HeaderPrefix, signed))
	return nil
}
