package memory

import (
	"testing"

	"bilancio/internal/storage"
	"bilancio/internal/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return New() })
}
