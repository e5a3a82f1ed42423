package auth

import (
	"context"

	"github.com/castwell/launch-backend/internal/accounts"
	"github.com/castwell/launch-backend/pkg/enums"
)

// CreateAdmin provisions an operator account. It is only reachable from the
// migrate CLI; there is no HTTP route that mints admins.
func (s *registerService) CreateAdmin(ctx context.Context, req RegisterRequest) (*accounts.AccountDTO, error) {
	return s.create(ctx, req, enums.AccountRoleAdmin)
}
