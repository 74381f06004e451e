package health

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusWithoutDatabase(t *testing.T) {
	status, ok := NewService(nil, "local").Status(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "memory", status["database"])
	assert.Equal(t, "local", status["storage"])
}

func TestStatusReportsUnreachableDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	status, ok := NewService(db, "s3").Status(context.Background())
	assert.False(t, ok)
	assert.Equal(t, "unreachable", status["database"])
	require.NoError(t, mock.ExpectationsWereMet())
}
