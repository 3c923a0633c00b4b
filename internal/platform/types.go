// Package platform provides typed clients for the external backend services the
// app delegates to: the identity service (credential issuance and verification),
// the record service (document storage with atomic field primitives), and the
// file service (binary upload with URL retrieval). The wire protocol behind
// these clients is owned by the platform; the app holds only transient,
// non-authoritative copies of what they return.
package platform

import (
	"context"
	"io"
	"time"
)

// Account is the identity service's view of a signed-up user.
type Account struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// AuthSession is an authenticated platform session.
type AuthSession struct {
	Token     string    `json:"token"`
	AccountID string    `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IdentityService abstracts the external authentication provider.
type IdentityService interface {
	CreateAccount(ctx context.Context, email, password string) (*Account, error)
	Authenticate(ctx context.Context, email, password string) (*AuthSession, error)
	SignOut(ctx context.Context, token string) error
	UpdateDisplayName(ctx context.Context, accountID, name string) error

	// OnStateChange registers a listener invoked with the signed-in account, or
	// nil when signed out. The listener fires once immediately on registration
	// and again on every transition. The returned func cancels the registration.
	OnStateChange(listener func(*Account)) (cancel func())
}

// Record is a document held by the record service. Fields decode as generic
// JSON values; server-assigned timestamps may be nil until resolved.
type Record struct {
	Key    string         `json:"key"`
	Fields map[string]any `json:"fields"`
}

// OpKind identifies an atomic field operation.
type OpKind string

const (
	// OpSet overwrites a field (last write wins at field level).
	OpSet OpKind = "set"
	// OpIncrement atomically adds a numeric delta to a counter field.
	OpIncrement OpKind = "increment"
	// OpAddToSet atomically adds an element to a set field; repeated adds are no-ops.
	OpAddToSet OpKind = "add_to_set"
	// OpRemoveFromSet atomically removes an element; repeated removes are no-ops.
	OpRemoveFromSet OpKind = "remove_from_set"
)

// FieldOp is one atomic field operation inside an update call. All ops in a
// single Update are applied by the platform in one request, but an update is
// not a transaction across multiple records.
type FieldOp struct {
	Field string `json:"field"`
	Kind  OpKind `json:"kind"`
	Value any    `json:"value"`
}

// serverTimestamp is the sentinel the record service replaces with its own
// clock. It may read back as null until resolved.
type serverTimestamp struct{}

// MarshalJSON encodes the sentinel in the form the record service recognizes.
func (serverTimestamp) MarshalJSON() ([]byte, error) {
	return []byte(`{"__type__":"server_timestamp"}`), nil
}

// ServerTimestamp marks a field for server-side timestamp assignment.
var ServerTimestamp any = serverTimestamp{}

// RecordStore abstracts the external document store.
type RecordStore interface {
	// Create stores a new document under a platform-generated key.
	Create(ctx context.Context, collection string, fields map[string]any) (string, error)
	// Put stores a document under an explicit key, overwriting any existing one.
	Put(ctx context.Context, collection, key string, fields map[string]any) error
	// Get returns the document, or (nil, nil) when it does not exist.
	Get(ctx context.Context, collection, key string) (*Record, error)
	// Update applies atomic field operations to an existing document.
	Update(ctx context.Context, collection, key string, ops []FieldOp) error
	// List returns up to limit documents ordered by orderField, newest first
	// when desc is true.
	List(ctx context.Context, collection, orderField string, desc bool, limit int) ([]Record, error)
	// PrefixQuery returns documents whose field value begins with prefix,
	// implemented as a lexicographic range query (prefix <= v < prefix+maxChar).
	PrefixQuery(ctx context.Context, collection, field, prefix string, limit int) ([]Record, error)
}

// FileRef identifies an uploaded binary and its retrievable URL.
type FileRef struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// FileStore abstracts the external binary-object store.
type FileStore interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader) (*FileRef, error)
}

// Services bundles the three platform clients the managers depend on.
type Services struct {
	Identity IdentityService
	Records  RecordStore
	Files    FileStore
}
