package mirror

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/auth"
	"github.com/viralforge/roadworks/internal/ports"
)

// FirebaseIdentityProvider creates Firebase Authentication users for new accounts.
type FirebaseIdentityProvider struct {
	client *auth.Client
}

func NewFirebaseIdentityProvider(client *auth.Client) *FirebaseIdentityProvider {
	return &FirebaseIdentityProvider{client: client}
}

func (p *FirebaseIdentityProvider) CreateUser(ctx context.Context, params ports.MirrorUserParams) (string, error) {
	toCreate := (&auth.UserToCreate{}).
		Email(params.Email).
		Password(params.Password).
		EmailVerified(false)
	if params.DisplayName != "" {
		toCreate = toCreate.DisplayName(params.DisplayName)
	}
	record, err := p.client.CreateUser(ctx, toCreate)
	if err != nil {
		return "", fmt.Errorf("create firebase user: %w", err)
	}
	return record.UID, nil
}

func (p *FirebaseIdentityProvider) DeleteUser(ctx context.Context, uid string) error {
	if err := p.client.DeleteUser(ctx, uid); err != nil {
		return fmt.Errorf("delete firebase user %s: %w", uid, err)
	}
	return nil
}
