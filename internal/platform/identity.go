package platform

import (
	"context"
	"sync"
)

// identityClient is the HTTP implementation of IdentityService.
//
// State-change listeners are local to the client instance: the platform issues
// and verifies credentials, but transition notification is driven by the calls
// made through this client.
type identityClient struct {
	client *Client

	mu        sync.Mutex
	current   *Account
	listeners map[int]func(*Account)
	nextID    int
}

// NewIdentityClient creates an identity service client.
func NewIdentityClient(c *Client) IdentityService {
	return &identityClient{
		client:    c,
		listeners: make(map[int]func(*Account)),
	}
}

func (s *identityClient) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	var account Account
	err := s.client.post(ctx, "/v1/accounts", map[string]string{
		"email":    email,
		"password": password,
	}, &account)
	if err != nil {
		return nil, err
	}
	return &account, nil
}

func (s *identityClient) Authenticate(ctx context.Context, email, password string) (*AuthSession, error) {
	var result struct {
		Session AuthSession `json:"session"`
		Account Account     `json:"account"`
	}
	err := s.client.post(ctx, "/v1/sessions", map[string]string{
		"email":    email,
		"password": password,
	}, &result)
	if err != nil {
		return nil, err
	}

	s.transition(&result.Account)
	return &result.Session, nil
}

func (s *identityClient) SignOut(ctx context.Context, token string) error {
	err := s.client.post(ctx, "/v1/sessions/revoke", map[string]string{
		"token": token,
	}, nil)
	if err != nil {
		return err
	}

	s.transition(nil)
	return nil
}

func (s *identityClient) UpdateDisplayName(ctx context.Context, accountID, name string) error {
	return s.client.patch(ctx, "/v1/accounts/"+accountID, map[string]string{
		"display_name": name,
	}, nil)
}

func (s *identityClient) OnStateChange(listener func(*Account)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	current := s.current
	s.mu.Unlock()

	// Fire once immediately with the current state.
	listener(current)

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *identityClient) transition(account *Account) {
	s.mu.Lock()
	s.current = account
	listeners := make([]func(*Account), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(account)
	}
}
