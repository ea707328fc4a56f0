package authflow_test

import (
	"context"
	"time"

	authflow "github.com/goliatone/go-auth-flow"
	"github.com/stretchr/testify/mock"
)

var (
	mockAnyCtx  = mock.Anything
	mockAnyUser = mock.AnythingOfType("*authflow.User")
)

// MockUserAdapter implements authflow.UserAdapter
type MockUserAdapter struct {
	mock.Mock
}

func (m *MockUserAdapter) GetUserByIdentifier(ctx context.Context, identifier string) (*authflow.User, error) {
	args := m.Called(ctx, identifier)
	u, _ := args.Get(0).(*authflow.User)
	return u, args.Error(1)
}

func (m *MockUserAdapter) CreateUser(ctx context.Context, user *authflow.User) (*authflow.User, error) {
	args := m.Called(ctx, user)
	u, _ := args.Get(0).(*authflow.User)
	return u, args.Error(1)
}

// MockSessionAdapter implements authflow.SessionAdapter
type MockSessionAdapter struct {
	MockUserAdapter
}

func (m *MockSessionAdapter) CreateSession(ctx context.Context, user *authflow.User, token string, expires time.Time) (*authflow.SessionWithUser, error) {
	args := m.Called(ctx, user, token, expires)
	sw, _ := args.Get(0).(*authflow.SessionWithUser)
	return sw, args.Error(1)
}

func (m *MockSessionAdapter) DestroySession(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockSessionAdapter) GetUserFromSession(ctx context.Context, token string) (*authflow.SessionWithUser, error) {
	args := m.Called(ctx, token)
	sw, _ := args.Get(0).(*authflow.SessionWithUser)
	return sw, args.Error(1)
}
