package realtime

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/HappyTetrahedron/rocketchat-async/pkg/protocol"
)

// Credentials select the login form: a resume token when Token is set,
// otherwise username and password.
type Credentials struct {
	Token    string
	Username string
	Password string
}

// TokenCredentials logs in with a resume token.
func TokenCredentials(token string) Credentials {
	return Credentials{Token: token}
}

// PasswordCredentials logs in with a username and password.
func PasswordCredentials(username, password string) Credentials {
	return Credentials{Username: username, Password: password}
}

// BuildLogin builds the login call. The password only leaves the process
// as its SHA-256 digest.
func BuildLogin(id string, creds Credentials) protocol.Message {
	if creds.Token != "" {
		return OpLogin.method(id, map[string]any{
			"resume": creds.Token,
		})
	}

	return OpLogin.method(id, map[string]any{
		"user": map[string]any{"username": creds.Username},
		"password": map[string]any{
			"digest":    passwordDigest(creds.Password),
			"algorithm": "sha-256",
		},
	})
}

// ParseLogin extracts the user id from a login reply.
func ParseLogin(reply *protocol.Message) (string, error) {
	var result struct {
		ID *string `json:"id"`
	}
	if err := decodeResult(reply, &result); err != nil {
		return "", err
	}
	if result.ID == nil {
		return "", fmt.Errorf("%w: missing result.id", ErrMalformedReply)
	}
	return *result.ID, nil
}

func passwordDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}
