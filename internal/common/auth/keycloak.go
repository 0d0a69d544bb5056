// internal/common/auth/keycloak.go
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"follicle-match/internal/common/errors"
	httpclient "follicle-match/internal/common/http"
)

// KeycloakVerifier validates access tokens against the realm's userinfo
// endpoint.
type KeycloakVerifier struct {
	baseURL string
	realm   string
	client  *httpclient.Client
}

type userInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email,omitempty"`
}

func NewKeycloakVerifier(baseURL, realm string, timeout time.Duration) *KeycloakVerifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &KeycloakVerifier{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		realm:   realm,
		client:  httpclient.NewClient(timeout),
	}
}

func (k *KeycloakVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", errors.NewUnauthorizedError("empty bearer token")
	}

	userInfoURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/userinfo", k.baseURL, k.realm)

	var info userInfo
	err := k.client.GetJSON(ctx, userInfoURL, map[string]string{"Authorization": "Bearer " + token}, &info)
	if err != nil {
		var statusErr *httpclient.StatusError
		if stderrors.As(err, &statusErr) &&
			(statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden) {
			return "", errors.NewUnauthorizedError("token rejected by identity provider")
		}
		return "", errors.NewExternalServiceError("keycloak", err)
	}

	if info.Sub == "" {
		return "", errors.NewUnauthorizedError("token has no subject")
	}
	return info.Sub, nil
}
