package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type lockedRow struct {
	ID int64
}

func TestForUpdateSkipsSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:locktest?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&lockedRow{}))

	stmt := ForUpdate(conn).Session(&gorm.Session{DryRun: true}).First(&lockedRow{}).Statement
	assert.NotContains(t, stmt.SQL.String(), "FOR UPDATE")
}
