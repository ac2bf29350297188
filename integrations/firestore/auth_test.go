package firestore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aqlanhadi/kisht/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(t *testing.T, tokenURI string) (*ServiceAccount, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	raw, err := json.Marshal(map[string]string{
		"type":           "service_account",
		"project_id":     "demo",
		"private_key_id": "kid-1",
		"private_key":    string(keyPEM),
		"client_email":   "ledger@demo.iam.gserviceaccount.com",
		"token_uri":      tokenURI,
	})
	require.NoError(t, err)

	account, err := ParseServiceAccount(raw)
	require.NoError(t, err)
	return account, key
}

func TestParseServiceAccount_Validation(t *testing.T) {
	_, err := ParseServiceAccount([]byte(`{"client_email": "x@y"}`))
	assert.Error(t, err)

	_, err = ParseServiceAccount([]byte(`not json`))
	assert.Error(t, err)

	account, err := ParseServiceAccount([]byte(`{"client_email": "x@y", "private_key": "k"}`))
	require.NoError(t, err)
	assert.Equal(t, "https://oauth2.googleapis.com/token", account.TokenURI)
}

// tokenServer checks each assertion and answers with a token that lives for
// expiresIn seconds
func tokenServer(t *testing.T, expiresIn int, requests *int) (*httptest.Server, *ServiceAccount) {
	t.Helper()
	var account *ServiceAccount
	var key *rsa.PrivateKey

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*requests++
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", r.PostForm.Get("grant_type"))

		token, err := jwt.Parse(r.PostForm.Get("assertion"), func(tok *jwt.Token) (any, error) {
			return &key.PublicKey, nil
		}, jwt.WithValidMethods([]string{"RS256"}))
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		claims := token.Claims.(jwt.MapClaims)
		assert.Equal(t, account.ClientEmail, claims["iss"])
		assert.Equal(t, "https://www.googleapis.com/auth/datastore", claims["scope"])
		assert.Equal(t, account.TokenURI, claims["aud"])
		assert.Equal(t, "kid-1", token.Header["kid"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token": "ya29.token-%d", "expires_in": %d, "token_type": "Bearer"}`, *requests, expiresIn)
	}))
	t.Cleanup(server.Close)

	account, key = testAccount(t, server.URL)
	return server, account
}

func TestServiceAccountTokenSource_ExchangesAndCaches(t *testing.T) {
	requests := 0
	server, account := tokenServer(t, 3600, &requests)

	source, err := NewServiceAccountTokenSource(account, server.Client())
	require.NoError(t, err)

	token, err := source.Token(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ya29.token-1", token)

	token, err = source.Token(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ya29.token-1", token)
	assert.Equal(t, 1, requests)
}

func TestServiceAccountTokenSource_RefreshesEarly(t *testing.T) {
	requests := 0
	// four minutes is already inside the refresh window
	server, account := tokenServer(t, 240, &requests)

	source, err := NewServiceAccountTokenSource(account, server.Client())
	require.NoError(t, err)

	_, err = source.Token(t.Context())
	require.NoError(t, err)
	token, err := source.Token(t.Context())
	require.NoError(t, err)

	assert.Equal(t, "ya29.token-2", token)
	assert.Equal(t, 2, requests)
}

func TestServiceAccountTokenSource_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid_grant"}`))
	}))
	defer server.Close()

	account, _ := testAccount(t, server.URL)
	source, err := NewServiceAccountTokenSource(account, server.Client())
	require.NoError(t, err)

	_, err = source.Token(t.Context())

	assert.True(t, store.IsAuthError(err))
	assert.Equal(t, "Authentication failed. Please check service account configuration.", store.UserMessage(err, "load customers"))
}

func TestNewServiceAccountTokenSource_BadKey(t *testing.T) {
	account, err := ParseServiceAccount([]byte(`{"type": "service_account", "client_email": "x@y", "private_key": "nope"}`))
	require.NoError(t, err)

	_, err = NewServiceAccountTokenSource(account, nil)

	assert.Error(t, err)
}
