package memory_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store/memory"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		New: func(*testing.T) store.Store { return memory.New() },
	})
}
