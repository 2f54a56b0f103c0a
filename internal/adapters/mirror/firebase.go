package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

const serviceName = "roadworks-service"

// Clients holds the Firebase handles shared by the mirror store and identity provider.
type Clients struct {
	Firestore *firestore.Client
	Auth      *auth.Client
}

// Connect initializes the Firebase app from explicit credentials.
// No network round trip happens here; reachability is probed per operation.
func Connect(ctx context.Context, creds Credentials) (*Clients, error) {
	if !creds.Configured() {
		return nil, errors.New("firebase credentials are incomplete")
	}
	raw, err := creds.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode firebase credentials: %w", err)
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: creds.ProjectID}, option.WithCredentialsJSON(raw))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	store, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore client: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init firebase auth client: %w", err)
	}
	slog.Default().InfoContext(ctx, "firebase clients initialized",
		"service", serviceName,
		"module", "mirror",
		"layer", "adapter",
		"operation", "connect",
		"outcome", "success",
		"project_id", creds.ProjectID,
	)
	return &Clients{Firestore: store, Auth: authClient}, nil
}

func (c *Clients) Close() error {
	if c == nil || c.Firestore == nil {
		return nil
	}
	return c.Firestore.Close()
}
