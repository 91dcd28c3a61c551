package repository

import (
	"context"

	"github.com/wekeepgrowing/semo-billing-webhooks/internal/domain/model"
)

// CredentialRepository reads provider credentials owned by the
// configuration store.
type CredentialRepository interface {
	ListAll(ctx context.Context) ([]*model.ProviderCredential, error)
}
