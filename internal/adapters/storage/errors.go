package storage

import (
	"fmt"

	"github.com/eleven-am/flowcore/internal/domain"
	"github.com/eleven-am/flowcore/internal/ports"
)

const storageComponent = "storage"

func checkVersion(bucket, id string, current, expected int64) error {
	if expected == ports.AnyVersion || expected == current {
		return nil
	}
	return domain.NewConflictError(
		fmt.Sprintf("%s/%s is at version %d, expected %d", bucket, id, current, expected), nil,
		domain.WithComponent(storageComponent),
		domain.WithDetail("current_version", current),
		domain.WithDetail("expected_version", expected))
}

func errClosed(operation string) error {
	return domain.NewStorageError("store is closed", nil,
		domain.WithComponent(storageComponent), domain.WithOperation(operation))
}

func storageError(operation, bucket, id string, cause error) error {
	return domain.NewStorageError(fmt.Sprintf("%s %s/%s failed", operation, bucket, id), cause,
		domain.WithComponent(storageComponent), domain.WithOperation(operation))
}
