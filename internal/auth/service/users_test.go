package service

import (
	"context"
	"testing"

	"github.com/louisbranch/teamspace/internal/auth/user"
	apperrors "github.com/louisbranch/teamspace/internal/platform/errors"
)

func TestCreateUser(t *testing.T) {
	users := newFakeUserStore()
	svc := newTestService(users, newFakeCredentialStore(), newFakeChallengeStore(), newFakeSessionStore())

	created, err := svc.CreateUser(context.Background(), user.CreateUserInput{Email: "Alpha@Example.com", Name: " Alpha "})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.Email != "alpha@example.com" {
		t.Fatalf("email = %q, want lowercase", created.Email)
	}
	if created.Name != "Alpha" {
		t.Fatalf("name = %q, want trimmed", created.Name)
	}
	if _, ok := users.users[created.ID]; !ok {
		t.Fatal("expected stored user")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	svc := newTestService(newFakeUserStore(), newFakeCredentialStore(), newFakeChallengeStore(), newFakeSessionStore())

	if _, err := svc.CreateUser(context.Background(), user.CreateUserInput{Email: "alpha@example.com"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	_, err := svc.CreateUser(context.Background(), user.CreateUserInput{Email: "ALPHA@example.com"})
	assertErrorCode(t, err, apperrors.CodeUserEmailTaken)
}

func TestCreateUserInvalidEmail(t *testing.T) {
	svc := newTestService(newFakeUserStore(), newFakeCredentialStore(), newFakeChallengeStore(), newFakeSessionStore())

	_, err := svc.CreateUser(context.Background(), user.CreateUserInput{Email: ""})
	assertErrorCode(t, err, apperrors.CodeUserEmailEmpty)

	_, err = svc.CreateUser(context.Background(), user.CreateUserInput{Email: "not-an-email"})
	assertErrorCode(t, err, apperrors.CodeUserEmailInvalid)
}

func TestGetUserByEmailNormalizes(t *testing.T) {
	users := newFakeUserStore()
	seedUser(users, "user-1", "alpha@example.com")
	svc := newTestService(users, newFakeCredentialStore(), newFakeChallengeStore(), newFakeSessionStore())

	found, err := svc.GetUserByEmail(context.Background(), "  ALPHA@Example.com ")
	if err != nil {
		t.Fatalf("get user by email: %v", err)
	}
	if found.ID != "user-1" {
		t.Fatalf("id = %q", found.ID)
	}
}
