package database

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
)

// ConnectFirestore opens a Firestore client for projectID. With
// FIRESTORE_EMULATOR_HOST set the client talks to the emulator. Caller
// should call client.Close().
func ConnectFirestore(ctx context.Context, projectID string) (*firestore.Client, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("firestore connect: %w", err)
	}
	return client, nil
}
