package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"askcampus/internal/model"
	"askcampus/internal/pkg/jwtutil"
)

func newAuthService() (*AuthService, *fakeUserRepo) {
	users := &fakeUserRepo{users: make(map[uint]*model.User)}
	svc := NewAuthService(users, "test-secret", time.Minute, zap.NewNop())
	return svc, users
}

func TestLoginIssuesToken(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, adminUser(), CreateUserRequest{
		Username: "alice",
		Name:     "Alice",
		Password: "s3cret-pass",
		Role:     model.RoleUser,
	})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	token, user, err := svc.Login(ctx, "alice", "s3cret-pass")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("logged in as %d, want %d", user.ID, created.ID)
	}
	claims, err := jwtutil.ParseToken("test-secret", token)
	if err != nil {
		t.Fatalf("issued token does not parse: %v", err)
	}
	if claims.UserID != created.ID || claims.Role != model.RoleUser {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()

	if _, err := svc.CreateUser(ctx, adminUser(), CreateUserRequest{
		Username: "alice", Name: "Alice", Password: "s3cret-pass",
	}); err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	if _, _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("wrong password err = %v, want ErrInvalidCredential", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "whatever"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("unknown user err = %v, want ErrInvalidCredential", err)
	}
}

func TestCreateUserRequiresAdmin(t *testing.T) {
	svc, _ := newAuthService()
	regular := &model.User{ID: 2, Role: model.RoleUser}
	_, err := svc.CreateUser(context.Background(), regular, CreateUserRequest{
		Username: "bob", Name: "Bob", Password: "pass",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	svc, _ := newAuthService()
	ctx := context.Background()
	req := CreateUserRequest{Username: "bob", Name: "Bob", Password: "pass"}
	if _, err := svc.CreateUser(ctx, adminUser(), req); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.CreateUser(ctx, adminUser(), req); !errors.Is(err, ErrUsernameExists) {
		t.Fatalf("err = %v, want ErrUsernameExists", err)
	}
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	svc, users := newAuthService()
	ctx := context.Background()

	if err := svc.EnsureBootstrapAdmin(ctx, "admin", "admin-pass"); err != nil {
		t.Fatalf("bootstrap failed: %v", err)
	}
	if len(users.users) != 1 {
		t.Fatalf("got %d users, want 1", len(users.users))
	}

	// A second call on a non-empty table must not create another account.
	if err := svc.EnsureBootstrapAdmin(ctx, "admin2", "pass"); err != nil {
		t.Fatalf("second bootstrap failed: %v", err)
	}
	if len(users.users) != 1 {
		t.Fatalf("bootstrap ran twice: %d users", len(users.users))
	}

	token, user, err := svc.Login(ctx, "admin", "admin-pass")
	if err != nil || token == "" {
		t.Fatalf("bootstrap admin cannot log in: %v", err)
	}
	if !user.IsAdmin() {
		t.Fatalf("bootstrap user role = %q", user.Role)
	}
}
