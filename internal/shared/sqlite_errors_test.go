package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConflictErrors(t *testing.T) {
	busy := errors.New("sqlite: step: SQLITE_BUSY")
	locked := fmt.Errorf("exec: %w", errors.New("database is locked (5)"))

	assert.True(t, IsSQLiteBusyError(busy))
	assert.False(t, IsSQLiteBusyError(locked))
	assert.True(t, IsSQLiteLockedError(locked))
	assert.True(t, IsSQLiteConflictError(busy))
	assert.True(t, IsSQLiteConflictError(locked))
	assert.False(t, IsSQLiteConflictError(nil))
	assert.False(t, IsSQLiteConflictError(errors.New("no such table")))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: checkpoints.account_id, checkpoints.bite_id (2067)")))
	assert.False(t, IsUniqueViolation(errors.New("FOREIGN KEY constraint failed")))
	assert.False(t, IsUniqueViolation(nil))
}
