package firestore

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aqlanhadi/kisht/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoot = "/v1/projects/demo/databases/(default)/documents"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		ProjectID:  "demo",
		BaseURL:    server.URL + "/v1",
		HTTPClient: server.Client(),
		Tokens:     StaticToken("owner"),
	})
	require.NoError(t, err)
	return client
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	data, err := io.ReadAll(r.Body)
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(data, &body))
	return body
}

func TestNew_RequiresProjectAndTokens(t *testing.T) {
	_, err := New(Config{Tokens: StaticToken("owner")})
	assert.Error(t, err)

	_, err = New(Config{ProjectID: "demo"})
	assert.Error(t, err)
}

func TestGet_DecodesTypedValues(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, testRoot+"/users/u1/customer/A17", r.URL.Path)
		assert.Equal(t, "Bearer owner", r.Header.Get("Authorization"))

		w.Write([]byte(`{
			"name": "projects/demo/databases/(default)/documents/users/u1/customer/A17",
			"fields": {
				"Name": {"stringValue": "Ravi"},
				"Amount": {"doubleValue": 10000},
				"installmentAmount": {"integerValue": "100"},
				"OpeningDate": {"timestampValue": "2024-01-01T00:00:00Z"},
				"isActive": {"booleanValue": true},
				"ClosingDate": {"nullValue": null},
				"tags": {"arrayValue": {"values": [{"stringValue": "a"}]}},
				"meta": {"mapValue": {"fields": {"k": {"stringValue": "v"}}}}
			}
		}`))
	})

	doc, err := client.Get(context.Background(), "users/u1/customer/A17")
	require.NoError(t, err)

	assert.Equal(t, "A17", doc.ID())
	assert.Equal(t, "Ravi", doc.Fields["Name"])
	assert.Equal(t, 10000.0, doc.Fields["Amount"])
	assert.Equal(t, int64(100), doc.Fields["installmentAmount"])
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), doc.Fields["OpeningDate"])
	assert.Equal(t, true, doc.Fields["isActive"])
	assert.True(t, doc.Fields.Has("ClosingDate"))
	assert.Nil(t, doc.Fields["ClosingDate"])
	assert.Equal(t, []any{"a"}, doc.Fields["tags"])
	assert.Equal(t, store.Fields{"k": "v"}, doc.Fields["meta"])
}

func TestGet_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"code": 404, "status": "NOT_FOUND"}}`))
	})

	_, err := client.Get(context.Background(), "users/u1/processedBankRefs/RRN1")

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGet_AuthFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.Get(context.Background(), "users/u1")

	assert.True(t, store.IsAuthError(err))
	assert.Equal(t, "Permission denied. Check Firestore security rules.", store.UserMessage(err, "load user"))
}

func TestGet_EscapesPathSegments(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testRoot+"/users/u1/customer/A 17", r.URL.Path)
		w.Write([]byte(`{"name": "x", "fields": {}}`))
	})

	_, err := client.Get(context.Background(), "users/u1/customer/A 17")
	assert.NoError(t, err)
}

func TestQuery_BuildsStructuredQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, testRoot+"/users/u1:runQuery", r.URL.Path)

		body := decodeBody(t, r)
		query := body["structuredQuery"].(map[string]any)
		assert.Equal(t, []any{map[string]any{"collectionId": "upiIds"}}, query["from"])
		assert.Equal(t, 5.0, query["limit"])

		composite := query["where"].(map[string]any)["compositeFilter"].(map[string]any)
		assert.Equal(t, "AND", composite["op"])
		assert.Len(t, composite["filters"], 2)

		w.Write([]byte(`[
			{"document": {"name": "projects/demo/databases/(default)/documents/users/u1/upiIds/abc",
			              "fields": {"upiId": {"stringValue": "ravi@okaxis"}, "customerId": {"stringValue": "A17"}}},
			 "readTime": "2024-01-01T00:00:00Z"},
			{"readTime": "2024-01-01T00:00:00Z"}
		]`))
	})

	docs, err := client.Query(context.Background(), "users/u1/upiIds", []store.Filter{
		{Field: "customerId", Value: "A17"},
		{Field: "isActive", Value: true},
	}, 5)
	require.NoError(t, err)

	require.Len(t, docs, 1)
	assert.Equal(t, "users/u1/upiIds/abc", docs[0].Path)
	assert.Equal(t, "ravi@okaxis", docs[0].Fields.String("upiId"))
}

func TestQuery_SingleFilterAndTopLevelCollection(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testRoot+":runQuery", r.URL.Path)

		query := decodeBody(t, r)["structuredQuery"].(map[string]any)
		where := query["where"].(map[string]any)
		assert.Contains(t, where, "fieldFilter")
		assert.NotContains(t, query, "limit")

		w.Write([]byte(`[{"readTime": "2024-01-01T00:00:00Z"}]`))
	})

	docs, err := client.Query(context.Background(), "users", []store.Filter{{Field: "userId", Value: "u1"}}, 0)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestCommit_EncodesWritesAndPreconditions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testRoot+":commit", r.URL.Path)

		writes := decodeBody(t, r)["writes"].([]any)
		if !assert.Len(t, writes, 3) {
			return
		}

		create := writes[0].(map[string]any)
		assert.Equal(t, map[string]any{"exists": false}, create["currentDocument"])
		update := create["update"].(map[string]any)
		assert.Equal(t, "projects/demo/databases/(default)/documents/users/u1/processedBankRefs/RRN1", update["name"])
		fields := update["fields"].(map[string]any)
		assert.Equal(t, map[string]any{"doubleValue": 1500.0}, fields["amount"])
		assert.Equal(t, map[string]any{"integerValue": "1"}, fields["installmentsCovered"])
		assert.Equal(t, map[string]any{"timestampValue": "2024-01-05T10:00:00Z"}, fields["processedAt"])

		masked := writes[1].(map[string]any)
		assert.Equal(t, map[string]any{"fieldPaths": []any{"amountPaid"}}, masked["updateMask"])
		assert.Equal(t, map[string]any{"exists": true}, masked["currentDocument"])

		del := writes[2].(map[string]any)
		assert.Equal(t, "projects/demo/databases/(default)/documents/users/u1/customer/A17/transactions/t1", del["delete"])
		assert.NotContains(t, del, "currentDocument")

		w.Write([]byte(`{"commitTime": "2024-01-05T10:00:00Z"}`))
	})

	err := client.Commit(context.Background(), []store.Write{
		{
			Path: "users/u1/processedBankRefs/RRN1",
			Fields: store.Fields{
				"amount":              decimal.NewFromInt(1500),
				"installmentsCovered": 1,
				"processedAt":         time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
			},
			Precondition: store.MustNotExist,
		},
		{
			Path:         "users/u1/customer/A17",
			Fields:       store.Fields{"amountPaid": 1500.0},
			Mask:         []string{"amountPaid"},
			Precondition: store.MustExist,
		},
		{Path: "users/u1/customer/A17/transactions/t1"},
	})
	assert.NoError(t, err)
}

func TestCommit_PreconditionFailures(t *testing.T) {
	tests := []struct {
		status int
		body   string
	}{
		{http.StatusBadRequest, `{"error": {"status": "FAILED_PRECONDITION"}}`},
		{http.StatusConflict, `{"error": {"status": "ALREADY_EXISTS"}}`},
		{http.StatusNotFound, `{"error": {"status": "NOT_FOUND"}}`},
	}

	for _, test := range tests {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(test.status)
			w.Write([]byte(test.body))
		})

		err := client.Commit(context.Background(), []store.Write{{Path: "a/b", Fields: store.Fields{}, Precondition: store.MustNotExist}})
		assert.ErrorIs(t, err, store.ErrPreconditionFailed, "status %d", test.status)
	}
}

func TestCommit_OtherFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"status": "INVALID_ARGUMENT"}}`))
	})

	err := client.Commit(context.Background(), []store.Write{{Path: "a/b", Fields: store.Fields{}}})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrPreconditionFailed)
}

func TestPatch_SendsUpdateMask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, testRoot+"/users/u1", r.URL.Path)
		assert.Equal(t, []string{"lastActive"}, r.URL.Query()["updateMask.fieldPaths"])
		w.Write([]byte(`{}`))
	})

	err := client.Patch(context.Background(), "users/u1", store.Fields{"lastActive": time.Now()}, nil)
	assert.NoError(t, err)
}

func TestDelete(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, testRoot+"/users/u1/customer/A17", r.URL.Path)
		w.Write([]byte(`{}`))
	})

	require.NoError(t, client.Delete(context.Background(), "users/u1/customer/A17"))
	assert.True(t, called)
}

func TestEmulatorBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/v1", EmulatorBaseURL("localhost:8080"))
}
