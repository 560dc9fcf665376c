package preference

import (
	"context"

	"github.com/google/uuid"
)

// DeviceID returns the install identifier, generating and persisting one on first use
func DeviceID(ctx context.Context, store Store) (string, error) {
	id, ok, err := store.GetScalar(ctx, ScalarDeviceID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := store.SetScalar(ctx, ScalarDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}
