// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("invalid or missing credentials")

const authLeeway = 30 * time.Second

// Authenticator validates bearer tokens on write routes. Tokens are signed
// either with a shared HS256 secret or with an RS256 key whose public half
// is configured here.
type Authenticator struct {
	secret    []byte
	publicKey *rsa.PublicKey
	issuer    string
}

type AuthOptionFunc func(*Authenticator)

// WithIssuer requires tokens to carry the given iss claim
func WithIssuer(issuer string) AuthOptionFunc {
	return func(a *Authenticator) {
		a.issuer = issuer
	}
}

// NewHMACAuthenticator accepts HS256 tokens signed with secret
func NewHMACAuthenticator(secret string, opts ...AuthOptionFunc) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	a := &Authenticator{secret: []byte(secret)}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NewRSAAuthenticator accepts RS256 tokens verified with the PEM encoded
// public key
func NewRSAAuthenticator(publicKeyPEM []byte, opts ...AuthOptionFunc) (*Authenticator, error) {
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	a := &Authenticator{publicKey: pub}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// NewAuthenticatorFromConfig builds an authenticator from a shared secret or
// a public key file. It returns nil when neither is set.
func NewAuthenticatorFromConfig(
	secret string,
	publicKeyFile string,
	issuer string,
) (*Authenticator, error) {
	opts := []AuthOptionFunc{}
	if issuer != "" {
		opts = append(opts, WithIssuer(issuer))
	}
	switch {
	case publicKeyFile != "":
		buf, err := os.ReadFile(publicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read jwt public key: %w", err)
		}
		return NewRSAAuthenticator(buf, opts...)
	case secret != "":
		return NewHMACAuthenticator(secret, opts...)
	default:
		return nil, nil
	}
}

func (a *Authenticator) methods() []string {
	if a.publicKey != nil {
		return []string{jwt.SigningMethodRS256.Alg()}
	}
	return []string{jwt.SigningMethodHS256.Alg()}
}

// Validate parses raw and returns its registered claims
func (a *Authenticator) Validate(raw string) (*jwt.RegisteredClaims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(a.methods()),
		jwt.WithLeeway(authLeeway),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(a.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(
		raw,
		claims,
		func(token *jwt.Token) (any, error) {
			if a.publicKey != nil {
				return a.publicKey, nil
			}
			return a.secret, nil
		},
		parserOpts...,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	if !parsed.Valid {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", ErrUnauthorized
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", ErrUnauthorized
	}
	return token, nil
}

func parseRSAPublic(raw []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
