package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsPlaceholders(t *testing.T) {
	query, args := Finalize("SELECT * FROM t WHERE a = ? AND b = ?", []interface{}{1, "x"})
	require.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", query)
	require.Equal(t, []interface{}{1, "x"}, args)
}

func TestFinalizeRewritesMySQLLimit(t *testing.T) {
	query, args := Finalize("SELECT * FROM t WHERE a = ? LIMIT ?,?", []interface{}{1, 10, 5})
	require.Equal(t, "SELECT * FROM t WHERE a = $1 LIMIT $2 OFFSET $3", query)
	// offset/count swap into postgres order
	require.Equal(t, []interface{}{1, 5, 10}, args)
}

func TestFinalizeSingleLimitUntouched(t *testing.T) {
	query, args := Finalize("SELECT * FROM t WHERE a = ? LIMIT ?", []interface{}{1, 10})
	require.Equal(t, "SELECT * FROM t WHERE a = $1 LIMIT $2", query)
	require.Equal(t, []interface{}{1, 10}, args)
}

func TestFinalizeNoPlaceholders(t *testing.T) {
	query, args := Finalize("SELECT 1", nil)
	require.Equal(t, "SELECT 1", query)
	require.Nil(t, args)
}
