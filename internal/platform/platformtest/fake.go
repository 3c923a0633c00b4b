// Package platformtest provides in-memory platform service fakes for tests.
// The record fake applies the same atomic field semantics the real record
// service documents, so toggle and repair logic can be exercised statefully.
package platformtest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/k4631938-beep/Dangwar/internal/platform"
)

// FakeRecordStore is a map-backed RecordStore with call counters.
type FakeRecordStore struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	nextKey     int

	CreateCalls int
	PutCalls    int
	GetCalls    int
	UpdateCalls int
	ListCalls   int
	QueryCalls  int

	// FailUpdateFor makes Update fail once for the given collection/key and
	// then clears itself. Used to simulate an interrupted paired write.
	FailUpdateFor string
}

// NewFakeRecordStore creates an empty fake record store.
func NewFakeRecordStore() *FakeRecordStore {
	return &FakeRecordStore{collections: make(map[string]map[string]map[string]any)}
}

func (f *FakeRecordStore) coll(name string) map[string]map[string]any {
	if f.collections[name] == nil {
		f.collections[name] = make(map[string]map[string]any)
	}
	return f.collections[name]
}

// Seed stores a document directly, bypassing counters.
func (f *FakeRecordStore) Seed(collection, key string, fields map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.coll(collection)[key] = cloneFields(fields)
}

// Fields returns a copy of a stored document's fields, or nil.
func (f *FakeRecordStore) Fields(collection, key string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.coll(collection)[key]
	if !ok {
		return nil
	}
	return cloneFields(doc)
}

// NetworkCalls reports the total number of store operations issued.
func (f *FakeRecordStore) NetworkCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CreateCalls + f.PutCalls + f.GetCalls + f.UpdateCalls + f.ListCalls + f.QueryCalls
}

func (f *FakeRecordStore) Create(_ context.Context, collection string, fields map[string]any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++
	f.nextKey++
	key := fmt.Sprintf("%s-%d", collection, f.nextKey)
	f.coll(collection)[key] = cloneFields(fields)
	return key, nil
}

func (f *FakeRecordStore) Put(_ context.Context, collection, key string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++
	f.coll(collection)[key] = cloneFields(fields)
	return nil
}

func (f *FakeRecordStore) Get(_ context.Context, collection, key string) (*platform.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetCalls++
	doc, ok := f.coll(collection)[key]
	if !ok {
		return nil, nil
	}
	return &platform.Record{Key: key, Fields: cloneFields(doc)}, nil
}

func (f *FakeRecordStore) Update(_ context.Context, collection, key string, ops []platform.FieldOp) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls++

	if f.FailUpdateFor == collection+"/"+key {
		f.FailUpdateFor = ""
		return &platform.Error{StatusCode: 503, Code: "network_failure", Message: "injected"}
	}

	doc, ok := f.coll(collection)[key]
	if !ok {
		return &platform.Error{StatusCode: 404, Code: "not_found", Message: "no such record"}
	}

	for _, op := range ops {
		switch op.Kind {
		case platform.OpSet:
			doc[op.Field] = op.Value
		case platform.OpIncrement:
			doc[op.Field] = toInt(doc[op.Field]) + toInt(op.Value)
		case platform.OpAddToSet:
			set := toStringSlice(doc[op.Field])
			val := op.Value.(string)
			found := false
			for _, s := range set {
				if s == val {
					found = true
					break
				}
			}
			if !found {
				set = append(set, val)
			}
			doc[op.Field] = set
		case platform.OpRemoveFromSet:
			set := toStringSlice(doc[op.Field])
			val := op.Value.(string)
			out := set[:0]
			for _, s := range set {
				if s != val {
					out = append(out, s)
				}
			}
			doc[op.Field] = out
		}
	}
	return nil
}

func (f *FakeRecordStore) List(_ context.Context, collection, orderField string, desc bool, limit int) ([]platform.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++

	var recs []platform.Record
	for key, doc := range f.coll(collection) {
		recs = append(recs, platform.Record{Key: key, Fields: cloneFields(doc)})
	}
	sort.Slice(recs, func(i, j int) bool {
		a, _ := recs[i].Fields[orderField].(string)
		b, _ := recs[j].Fields[orderField].(string)
		if desc {
			return a > b
		}
		return a < b
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (f *FakeRecordStore) PrefixQuery(_ context.Context, collection, field, prefix string, limit int) ([]platform.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.QueryCalls++

	var recs []platform.Record
	for key, doc := range f.coll(collection) {
		val, _ := doc[field].(string)
		if strings.HasPrefix(val, prefix) {
			recs = append(recs, platform.Record{Key: key, Fields: cloneFields(doc)})
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, _ := recs[i].Fields[field].(string)
		b, _ := recs[j].Fields[field].(string)
		return a < b
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if s, ok := v.([]string); ok {
			cp := make([]string, len(s))
			copy(cp, s)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	return 0
}

func toStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// FakeIdentity is a map-backed IdentityService.
type FakeIdentity struct {
	mu        sync.Mutex
	accounts  map[string]fakeAccount // by email
	nextID    int
	listeners []func(*platform.Account)
	current   *platform.Account

	CreateCalls int
	AuthCalls   int
}

type fakeAccount struct {
	id       string
	password string
	name     string
}

// NewFakeIdentity creates an empty fake identity service.
func NewFakeIdentity() *FakeIdentity {
	return &FakeIdentity{accounts: make(map[string]fakeAccount)}
}

func (f *FakeIdentity) CreateAccount(_ context.Context, email, password string) (*platform.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls++

	if _, exists := f.accounts[email]; exists {
		return nil, &platform.Error{StatusCode: 409, Code: "email_in_use", Message: "email already registered"}
	}
	f.nextID++
	id := fmt.Sprintf("acct-%d", f.nextID)
	f.accounts[email] = fakeAccount{id: id, password: password}
	return &platform.Account{ID: id, Email: email}, nil
}

func (f *FakeIdentity) Authenticate(_ context.Context, email, password string) (*platform.AuthSession, error) {
	f.mu.Lock()
	f.AuthCalls++
	acct, exists := f.accounts[email]
	f.mu.Unlock()

	if !exists {
		return nil, &platform.Error{StatusCode: 404, Code: "unknown_account", Message: "no such account"}
	}
	if acct.password != password {
		return nil, &platform.Error{StatusCode: 401, Code: "invalid_credential", Message: "wrong password"}
	}

	account := &platform.Account{ID: acct.id, Email: email, DisplayName: acct.name}
	f.transition(account)
	return &platform.AuthSession{Token: "tok-" + acct.id, AccountID: acct.id}, nil
}

func (f *FakeIdentity) SignOut(_ context.Context, _ string) error {
	f.transition(nil)
	return nil
}

func (f *FakeIdentity) UpdateDisplayName(_ context.Context, accountID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, acct := range f.accounts {
		if acct.id == accountID {
			acct.name = name
			f.accounts[email] = acct
			return nil
		}
	}
	return &platform.Error{StatusCode: 404, Code: "unknown_account", Message: "no such account"}
}

func (f *FakeIdentity) OnStateChange(listener func(*platform.Account)) func() {
	f.mu.Lock()
	f.listeners = append(f.listeners, listener)
	idx := len(f.listeners) - 1
	current := f.current
	f.mu.Unlock()

	listener(current)
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.listeners[idx] = nil
	}
}

func (f *FakeIdentity) transition(account *platform.Account) {
	f.mu.Lock()
	f.current = account
	listeners := make([]func(*platform.Account), len(f.listeners))
	copy(listeners, f.listeners)
	f.mu.Unlock()

	for _, l := range listeners {
		if l != nil {
			l(account)
		}
	}
}

// FakeFileStore records uploads in memory.
type FakeFileStore struct {
	mu      sync.Mutex
	Uploads map[string][]byte

	UploadCalls int
}

// NewFakeFileStore creates an empty fake file store.
func NewFakeFileStore() *FakeFileStore {
	return &FakeFileStore{Uploads: make(map[string][]byte)}
}

func (f *FakeFileStore) Upload(_ context.Context, path, _ string, body io.Reader) (*platform.FileRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UploadCalls++

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return nil, err
	}
	f.Uploads[path] = buf.Bytes()
	return &platform.FileRef{Path: path, URL: "https://files.test/" + path}, nil
}
