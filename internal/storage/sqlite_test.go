//go:build sqlite

package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLiteStore(t *testing.T) {
	st, err := Open("sqlite", t.TempDir())
	require.NoError(t, err)
	storeContract(t, st)
}
