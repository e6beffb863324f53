package mysql

import (
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN("shop:secret@tcp(db:3306)/liquor", nil)
	require.NoError(t, err)
	dc, err := mysqlDriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, dc.ParseTime)
	assert.Equal(t, "liquor", dc.DBName)
	assert.Equal(t, "db:3306", dc.Addr)
	assert.Equal(t, time.UTC, dc.Loc)

	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	dsn, err = normalizeDSN("shop:secret@tcp(db:3306)/liquor?parseTime=false&wait_timeout=600", kolkata)
	require.NoError(t, err)
	dc, err = mysqlDriver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, dc.ParseTime)
	assert.Equal(t, "Asia/Kolkata", dc.Loc.String())
	assert.Equal(t, "600", dc.Params["wait_timeout"])

	_, err = normalizeDSN("not a dsn", nil)
	assert.Error(t, err)
}
