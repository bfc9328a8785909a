package db

import (
	"errors"
	"fmt"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

var errDBUnavailable = errors.New("db unavailable")

// storageErr marks a driver failure as retryable storage unavailability.
func storageErr(err error) error {
	if err == nil || errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

func stringPtrIfNotEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
