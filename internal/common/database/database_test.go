package database

import (
	"context"
	"testing"
	"time"

	"parent-portal/internal/common/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis_RequiresAddress(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisClient_Operations(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))
	got, found, err := client.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", got)

	require.NoError(t, client.Del(ctx, "k"))
	_, found, err = client.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisClient_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	mr.Close()
	err = client.Ping(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestConnectRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := ConnectRedis(context.Background(), config.RedisConfig{Address: addr})
	assert.Error(t, err)
}

func TestPostgresClient_QueryString(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	client := NewPostgresFromDB(db)

	mock.ExpectQuery("SELECT value FROM portal_drafts").WithArgs("a").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("{}"))
	mock.ExpectQuery("SELECT value FROM portal_drafts").WithArgs("b").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	ctx := context.Background()
	v, found, err := client.QueryString(ctx, "SELECT value FROM portal_drafts WHERE key = $1", "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "{}", v)

	_, found, err = client.QueryString(ctx, "SELECT value FROM portal_drafts WHERE key = $1", "b")
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClient_PingAndExec(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	client := NewPostgresFromDB(db)

	mock.ExpectPing()
	mock.ExpectExec("DELETE FROM portal_drafts").WithArgs("k").WillReturnResult(sqlmock.NewResult(0, 1))

	ctx := context.Background()
	require.NoError(t, client.Ping(ctx))
	res, err := client.Exec(ctx, "DELETE FROM portal_drafts WHERE key = $1", "k")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mock.ExpectClose()
	require.NoError(t, client.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
