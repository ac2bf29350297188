package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aqlanhadi/kisht/store"
	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	datastoreScope  = "https://www.googleapis.com/auth/datastore"
	defaultTokenURI = "https://oauth2.googleapis.com/token"
	refreshEarly    = 5 * time.Minute
)

// TokenSource supplies the bearer token for each request
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken always returns the same token. The emulator accepts "owner".
type StaticToken string

func (t StaticToken) Token(ctx context.Context) (string, error) {
	return string(t), nil
}

// ServiceAccount is a Google service account key
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`

	raw []byte
}

// ParseServiceAccount reads a service account key from its JSON form
func ParseServiceAccount(data []byte) (*ServiceAccount, error) {
	var account ServiceAccount
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("failed to parse service account: %w", err)
	}
	if account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, errors.New("service account is missing client_email or private_key")
	}
	if account.TokenURI == "" {
		account.TokenURI = defaultTokenURI
	}
	account.raw = data
	return &account, nil
}

// LoadServiceAccount reads a service account key file
func LoadServiceAccount(path string) (*ServiceAccount, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}
	return ParseServiceAccount(data)
}

// ServiceAccountTokenSource exchanges signed assertions for access tokens and
// reuses each token until five minutes before it expires.
type ServiceAccountTokenSource struct {
	tokens oauth2.TokenSource
}

// NewServiceAccountTokenSource checks the account's private key up front.
// Token requests go through client when it is non-nil.
func NewServiceAccountTokenSource(account *ServiceAccount, client *http.Client) (*ServiceAccountTokenSource, error) {
	if _, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(account.PrivateKey)); err != nil {
		return nil, fmt.Errorf("failed to parse service account private key: %w", err)
	}

	conf, err := google.JWTConfigFromJSON(account.raw, datastoreScope)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account: %w", err)
	}

	ctx := context.Background()
	if client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}
	return &ServiceAccountTokenSource{
		tokens: oauth2.ReuseTokenSourceWithExpiry(nil, conf.TokenSource(ctx), refreshEarly),
	}, nil
}

// Token returns the current access token, fetching a new one when needed
func (s *ServiceAccountTokenSource) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tok, err := s.tokens.Token()
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return "", fmt.Errorf("failed to get access token: %w", &store.StatusError{
			StatusCode: retrieveErr.Response.StatusCode,
			Body:       string(retrieveErr.Body),
		})
	}
	if err != nil {
		return "", fmt.Errorf("failed to get access token: %w", err)
	}

	log.WithField("expiry", tok.Expiry).Debug("firestore access token ready")
	return tok.AccessToken, nil
}
