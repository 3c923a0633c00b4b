package platform

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestServer creates a test HTTP server and a client pointed at it.
func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "test-api-key", WithProjectID("test-project"))
	return server, client
}

func TestClientHeaders(t *testing.T) {
	var gotAPIKey, gotProject, gotRequestID string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("X-API-Key")
		gotProject = r.Header.Get("X-Project-ID")
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Write([]byte(`{}`))
	})

	records := NewRecordClient(client)
	_, err := records.Get(context.Background(), "users", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "test-api-key", gotAPIKey)
	assert.Equal(t, "test-project", gotProject)
	assert.NotEmpty(t, gotRequestID)
}

func TestRecordClient(t *testing.T) {
	t.Run("Get returns nil for missing records", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":{"code":"not_found","message":"no such record"}}`))
		})

		rec, err := NewRecordClient(client).Get(context.Background(), "users", "missing")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("Create posts fields and returns the key", func(t *testing.T) {
		var gotPath string
		var gotBody map[string]any
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.Write([]byte(`{"key":"post-1"}`))
		})

		key, err := NewRecordClient(client).Create(context.Background(), "posts", map[string]any{"caption": "hi"})
		require.NoError(t, err)
		assert.Equal(t, "post-1", key)
		assert.Equal(t, "/v1/records/posts", gotPath)
		fields := gotBody["fields"].(map[string]any)
		assert.Equal(t, "hi", fields["caption"])
	})

	t.Run("Update patches field ops", func(t *testing.T) {
		var gotMethod string
		var gotBody map[string]any
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.Write([]byte(`{}`))
		})

		err := NewRecordClient(client).Update(context.Background(), "posts", "post-1", []FieldOp{
			{Field: "likes", Kind: OpAddToSet, Value: "acct-1"},
			{Field: "likesCount", Kind: OpIncrement, Value: 1},
		})
		require.NoError(t, err)
		assert.Equal(t, http.MethodPatch, gotMethod)
		ops := gotBody["ops"].([]any)
		require.Len(t, ops, 2)
		first := ops[0].(map[string]any)
		assert.Equal(t, "add_to_set", first["kind"])
	})

	t.Run("List sends ordering params", func(t *testing.T) {
		var gotQuery string
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`{"records":[{"key":"p1","fields":{"caption":"hi"}}]}`))
		})

		recs, err := NewRecordClient(client).List(context.Background(), "posts", "createdAt", true, 10)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "p1", recs[0].Key)
		assert.Contains(t, gotQuery, "order_by=createdAt")
		assert.Contains(t, gotQuery, "order=desc")
		assert.Contains(t, gotQuery, "limit=10")
	})

	t.Run("PrefixQuery sends field and prefix", func(t *testing.T) {
		var gotQuery string
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			w.Write([]byte(`{"records":[]}`))
		})

		_, err := NewRecordClient(client).PrefixQuery(context.Background(), "users", "username", "al", 20)
		require.NoError(t, err)
		assert.Contains(t, gotQuery, "field=username")
		assert.Contains(t, gotQuery, "prefix=al")
	})

	t.Run("server timestamp sentinel marshals to the wire form", func(t *testing.T) {
		var gotBody map[string]any
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotBody)
			w.Write([]byte(`{"key":"p1"}`))
		})

		_, err := NewRecordClient(client).Create(context.Background(), "posts", map[string]any{
			"createdAt": ServerTimestamp,
		})
		require.NoError(t, err)
		fields := gotBody["fields"].(map[string]any)
		created := fields["createdAt"].(map[string]any)
		assert.Equal(t, "server_timestamp", created["__type__"])
	})
}

func TestIdentityClient(t *testing.T) {
	t.Run("Authenticate fires state transition", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"session": {"token": "tok-1", "account_id": "acct-1"},
				"account": {"id": "acct-1", "email": "alice@example.com"}
			}`))
		})

		identity := NewIdentityClient(client)

		var seen []*Account
		cancel := identity.OnStateChange(func(a *Account) { seen = append(seen, a) })
		defer cancel()
		require.Len(t, seen, 1)
		assert.Nil(t, seen[0])

		sess, err := identity.Authenticate(context.Background(), "alice@example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "tok-1", sess.Token)
		require.Len(t, seen, 2)
		assert.Equal(t, "acct-1", seen[1].ID)
	})

	t.Run("SignOut transitions to nil", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1/sessions/revoke" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.Write([]byte(`{
				"session": {"token": "tok-1", "account_id": "acct-1"},
				"account": {"id": "acct-1", "email": "alice@example.com"}
			}`))
		})

		identity := NewIdentityClient(client)
		_, err := identity.Authenticate(context.Background(), "alice@example.com", "secret123")
		require.NoError(t, err)

		var seen []*Account
		cancel := identity.OnStateChange(func(a *Account) { seen = append(seen, a) })
		defer cancel()
		require.Len(t, seen, 1)
		require.NotNil(t, seen[0])

		require.NoError(t, identity.SignOut(context.Background(), "tok-1"))
		require.Len(t, seen, 2)
		assert.Nil(t, seen[1])
	})

	t.Run("cancelled listener stops receiving", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{
				"session": {"token": "tok-1", "account_id": "acct-1"},
				"account": {"id": "acct-1"}
			}`))
		})

		identity := NewIdentityClient(client)
		calls := 0
		cancel := identity.OnStateChange(func(*Account) { calls++ })
		cancel()

		_, err := identity.Authenticate(context.Background(), "a@b.co", "secret123")
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("error responses parse into typed errors", func(t *testing.T) {
		_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":"invalid_credential","message":"wrong password"}}`))
		})

		_, err := NewIdentityClient(client).Authenticate(context.Background(), "a@b.co", "nope")
		require.Error(t, err)
		assert.Equal(t, CodeInvalidCredential, ErrorCode(err))
	})
}

func TestFileClient(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody []byte
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"path":"posts/acct-1/img.png","url":"https://files.test/img.png"}`))
	})

	ref, err := NewFileClient(client).Upload(context.Background(),
		"posts/acct-1/img.png", "image/png", strings.NewReader("binary"))
	require.NoError(t, err)
	assert.Equal(t, "https://files.test/img.png", ref.URL)
	assert.Equal(t, "/v1/files/posts/acct-1/img.png", gotPath)
	assert.Equal(t, "image/png", gotContentType)
	assert.Equal(t, "binary", string(gotBody))
}

func TestNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewClient(server.URL, "key")
	_, err := NewRecordClient(client).Get(context.Background(), "users", "acct-1")
	require.Error(t, err)
	assert.Equal(t, CodeNetworkFailure, ErrorCode(err))
}
