package store

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Run("matches pq unique violation", func(t *testing.T) {
		err := &pq.Error{Code: "23505"}
		assert.True(t, isUniqueViolation(err))
	})

	t.Run("matches wrapped pq error", func(t *testing.T) {
		err := fmt.Errorf("insert event: %w", &pq.Error{Code: "23505"})
		assert.True(t, isUniqueViolation(err))
	})

	t.Run("ignores other pq codes", func(t *testing.T) {
		err := &pq.Error{Code: "23503"}
		assert.False(t, isUniqueViolation(err))
	})

	t.Run("ignores non pq errors with matching text", func(t *testing.T) {
		err := fmt.Errorf("pq: duplicate key value violates unique constraint (SQLSTATE 23505)")
		assert.False(t, isUniqueViolation(err))
	})
}
