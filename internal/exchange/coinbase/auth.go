package coinbase

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenTTL is how long one request token stays valid.
const tokenTTL = 2 * time.Minute

// signer mints the short-lived JWTs the Advanced Trade API authenticates
// with. Each token is scoped to one method and path through the uri claim.
type signer struct {
	keyName string
	key     *ecdsa.PrivateKey
}

func newSigner(keyName, privateKeyPEM string) (*signer, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(privateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &signer{keyName: keyName, key: key}, nil
}

// bearer returns the Authorization header value for one call.
func (s *signer) bearer(method, host, path string) (string, error) {
	nonce, err := randomNonce()
	if err != nil {
		return "", err
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"sub": s.keyName,
		"iss": "cdp",
		"nbf": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
		"uri": method + " " + host + path,
	})
	token.Header["kid"] = s.keyName
	token.Header["nonce"] = nonce

	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign request token: %w", err)
	}
	return "Bearer " + signed, nil
}

func randomNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
