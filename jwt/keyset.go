// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/hashicorp/go-hclog"
	sdkHttp "github.com/mattruma/ADB2CWebAppWebApi/sdk/http"
)

// KeySet represents a set of keys that can be used to verify the signatures of JWTs.
// A KeySet is expected to be backed by a set of local or remote keys.
type KeySet interface {

	// VerifySignature parses the given JWT, verifies its signature, and returns the claims in its payload.
	VerifySignature(ctx context.Context, token string) (claims map[string]interface{}, err error)
}

// JSONWebKeySet verifies JWT signatures using keys obtained from a JWKS URL.
// The keys are fetched lazily and refreshed when a token names an unknown
// key id.
type JSONWebKeySet struct {
	remoteJWKS *oidc.RemoteKeySet
	logger     hclog.Logger
}

// StaticKeySet verifies JWT signatures using local PEM-encoded public keys.
type StaticKeySet struct {
	publicKeys []interface{}
}

// NewOIDCDiscoveryKeySet returns a KeySet that verifies JWT signatures using keys from the
// JSON Web Key Set (JWKS) published in the discovery document at the given discoveryURL.
// The ctx must outlive the key set since keys are refreshed with it.
// Supports the options:
//   - WithCAPEM
//   - WithExpectedIssuer
//   - WithLogger
func NewOIDCDiscoveryKeySet(ctx context.Context, discoveryURL string, opt ...Option) (*JSONWebKeySet, error) {
	const op = "jwt.NewOIDCDiscoveryKeySet"
	if discoveryURL == "" {
		return nil, fmt.Errorf("%s: discovery url is empty: %w", op, ErrInvalidParameter)
	}
	opts := getKeySetOpts(opt...)
	clientCtx, err := clientContext(ctx, opts.withCAPEM)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	discoveryCtx := clientCtx
	if opts.withExpectedIssuer != "" {
		discoveryCtx = oidc.InsecureIssuerURLContext(clientCtx, opts.withExpectedIssuer)
	}
	provider, err := oidc.NewProvider(discoveryCtx, discoveryURL)
	if err != nil {
		return nil, fmt.Errorf("%s: unable to discover keys: %w", op, err)
	}
	var meta struct {
		JWKSURL string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if meta.JWKSURL == "" {
		return nil, fmt.Errorf("%s: discovery document has no jwks_uri: %w", op, ErrInvalidParameter)
	}
	opts.withLogger.Named("jwt").Debug("discovered key set", "jwks_uri", meta.JWKSURL)
	return newJSONWebKeySet(clientCtx, meta.JWKSURL, opts.withLogger), nil
}

// NewJSONWebKeySet returns a KeySet that verifies JWT signatures using keys from the JSON Web
// Key Set (JWKS) at the given jwksURL.  The ctx must outlive the key set.
// Supports the options:
//   - WithCAPEM
//   - WithLogger
func NewJSONWebKeySet(ctx context.Context, jwksURL string, opt ...Option) (*JSONWebKeySet, error) {
	const op = "jwt.NewJSONWebKeySet"
	if jwksURL == "" {
		return nil, fmt.Errorf("%s: jwks url is empty: %w", op, ErrInvalidParameter)
	}
	opts := getKeySetOpts(opt...)
	clientCtx, err := clientContext(ctx, opts.withCAPEM)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return newJSONWebKeySet(clientCtx, jwksURL, opts.withLogger), nil
}

func newJSONWebKeySet(clientCtx context.Context, jwksURL string, l hclog.Logger) *JSONWebKeySet {
	return &JSONWebKeySet{
		// keys are fetched with the client and lifetime of this context
		remoteJWKS: oidc.NewRemoteKeySet(clientCtx, jwksURL),
		logger:     l.Named("jwt"),
	}
}

// VerifySignature parses the given JWT, verifies its signature using JWKS keys, and returns
// the claims in its payload. The given JWT must be of the JWS compact serialization form.
func (ks *JSONWebKeySet) VerifySignature(ctx context.Context, token string) (map[string]interface{}, error) {
	const op = "JSONWebKeySet.VerifySignature"
	payload, err := ks.remoteJWKS.VerifySignature(ctx, token)
	if err != nil {
		ks.logger.Trace("signature verification failed", "error", err)
		return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidSignature, err)
	}

	// Unmarshal payload into a set of all received claims
	allClaims := map[string]interface{}{}
	if err := json.Unmarshal(payload, &allClaims); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformedToken, err)
	}
	return allClaims, nil
}

// NewStaticKeySet returns a KeySet that verifies JWT signatures using PEM-encoded public keys.
// The given publicKeys must be of PEM-encoded x509 certificate or PKIX public key forms.
func NewStaticKeySet(publicKeys []string) (*StaticKeySet, error) {
	const op = "jwt.NewStaticKeySet"
	if len(publicKeys) == 0 {
		return nil, fmt.Errorf("%s: no public keys: %w", op, ErrInvalidParameter)
	}
	parsedPublicKeys := make([]interface{}, 0, len(publicKeys))
	for _, k := range publicKeys {
		key, err := ParsePublicKeyPEM([]byte(k))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		parsedPublicKeys = append(parsedPublicKeys, key)
	}

	return &StaticKeySet{
		publicKeys: parsedPublicKeys,
	}, nil
}

// VerifySignature parses the given JWT, verifies its signature using local PEM-encoded public keys,
// and returns the claims in its payload. The given JWT must be of the JWS compact serialization form.
func (ks *StaticKeySet) VerifySignature(_ context.Context, token string) (map[string]interface{}, error) {
	const op = "StaticKeySet.VerifySignature"
	parsedJWT, err := jwt.ParseSigned(token, allAlgorithms())
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrMalformedToken, err)
	}

	allClaims := map[string]interface{}{}
	for _, key := range ks.publicKeys {
		if err := parsedJWT.Claims(key, &allClaims); err == nil {
			return allClaims, nil
		}
	}
	return nil, fmt.Errorf("%s: no known key successfully validated the token signature: %w", op, ErrInvalidSignature)
}

// ParsePublicKeyPEM is used to parse RSA, ECDSA and Ed25519 public keys from
// PEMs.
func ParsePublicKeyPEM(data []byte) (interface{}, error) {
	const op = "jwt.ParsePublicKeyPEM"
	block, _ := pem.Decode(data)
	if block != nil {
		var rawKey interface{}
		var err error
		if rawKey, err = x509.ParsePKIXPublicKey(block.Bytes); err != nil {
			cert, certErr := x509.ParseCertificate(block.Bytes)
			if certErr != nil {
				return nil, fmt.Errorf("%s: %w: %w", op, ErrInvalidParameter, err)
			}
			rawKey = cert.PublicKey
		}

		switch k := rawKey.(type) {
		case *rsa.PublicKey, *ecdsa.PublicKey, ed25519.PublicKey:
			return k, nil
		}
	}

	return nil, fmt.Errorf("%s: data does not contain any valid RSA, ECDSA or Ed25519 public keys: %w", op, ErrInvalidParameter)
}

// clientContext returns a context carrying a pooled http client that trusts
// caPEM, or the system roots when it's empty.
func clientContext(ctx context.Context, caPEM string) (context.Context, error) {
	client, err := sdkHttp.NewClient(caPEM)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCACert, err)
	}
	return oidc.ClientContext(ctx, client), nil
}
