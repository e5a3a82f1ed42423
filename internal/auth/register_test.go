package auth

import (
	"context"
	"testing"

	"github.com/castwell/launch-backend/internal/accounts"
	"github.com/castwell/launch-backend/pkg/db"
	"github.com/castwell/launch-backend/pkg/db/dbtest"
	"github.com/castwell/launch-backend/pkg/enums"
	pkgerrors "github.com/castwell/launch-backend/pkg/errors"
	"github.com/castwell/launch-backend/pkg/security"
)

func newRegisterService(t *testing.T) (RegisterService, *accounts.Repository) {
	t.Helper()
	conn := dbtest.Open(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.Wrap(conn), PasswordConfig: testPassword})
	if err != nil {
		t.Fatalf("new register service: %v", err)
	}
	return svc, accounts.NewRepository(conn)
}

func TestRegisterCreatesBuyer(t *testing.T) {
	svc, repo := newRegisterService(t)
	ctx := context.Background()

	created, err := svc.Register(ctx, RegisterRequest{Email: " Patron@Example.com", Password: "lost-wax-casting"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.Email != "patron@example.com" || created.Role != enums.AccountRoleBuyer {
		t.Fatalf("unexpected account %+v", created)
	}

	stored, err := repo.FindByEmail(ctx, "patron@example.com")
	if err != nil {
		t.Fatalf("find account: %v", err)
	}
	ok, err := security.VerifyPassword("lost-wax-casting", stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("stored hash does not verify, ok=%v err=%v", ok, err)
	}

	if _, err := svc.Register(ctx, RegisterRequest{Email: "patron@example.com", Password: "another-password"}); !pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRegisterValidates(t *testing.T) {
	svc, _ := newRegisterService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterRequest{Email: "  ", Password: "long-enough"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for email, got %v", err)
	}
	if _, err := svc.Register(ctx, RegisterRequest{Email: "a@b.co", Password: "short"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for password, got %v", err)
	}
}

func TestCreateAdmin(t *testing.T) {
	svc, _ := newRegisterService(t)
	created, err := svc.CreateAdmin(context.Background(), RegisterRequest{Email: "ops@castwell.studio", Password: "foundry-admin-1"})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	if created.Role != enums.AccountRoleAdmin {
		t.Fatalf("expected admin role, got %s", created.Role)
	}
}
