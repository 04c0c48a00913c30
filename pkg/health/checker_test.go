package health

import (
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseChecker_HealthyWhenPingSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	checker := DatabaseChecker(db)
	assert.NoError(t, checker())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabaseChecker_UnhealthyWhenPingFails(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	checker := DatabaseChecker(db)
	assert.Error(t, checker())
}

func TestDatabaseChecker_NilConnectionIsUnhealthy(t *testing.T) {
	checker := DatabaseChecker(nil)
	assert.Error(t, checker())
}
