package migrate

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE occupants (id TEXT PRIMARY KEY)").Error)
	return NewRunner(db)
}

func TestEnsureColumn_SecondRunAlreadyExists(t *testing.T) {
	r := newTestRunner(t)

	outcome, err := r.EnsureColumn("occupants", "photo_url", "TEXT")
	require.NoError(t, err)
	assert.Equal(t, Applied, outcome)

	outcome, err = r.EnsureColumn("occupants", "photo_url", "TEXT")
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, outcome)
}

func TestEnsureColumn_FailedOnMissingTable(t *testing.T) {
	r := newTestRunner(t)

	outcome, err := r.EnsureColumn("no_such_table", "photo_url", "TEXT")
	assert.Equal(t, Failed, outcome)
	assert.Error(t, err)
}

func TestEnsureColumns_ContinuesPastFailure(t *testing.T) {
	r := newTestRunner(t)

	results := r.EnsureColumns([]ColumnSpec{
		{Table: "no_such_table", Column: "a", ColumnType: "TEXT"},
		{Table: "occupants", Column: "remarks", ColumnType: "TEXT"},
	})

	require.Len(t, results, 2)
	assert.Equal(t, Failed, results[0].Outcome)
	assert.NotEmpty(t, results[0].Error)
	assert.Equal(t, Applied, results[1].Outcome)
	assert.Empty(t, results[1].Error)
}

func TestIsDuplicateColumn(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "mysql duplicate column",
			err:  &mysql.MySQLError{Number: 1060, Message: "Duplicate column name 'photo_url'"},
			want: true,
		},
		{
			name: "mysql other error",
			err:  &mysql.MySQLError{Number: 1146, Message: "Table doesn't exist"},
			want: false,
		},
		{
			name: "postgres duplicate column",
			err:  &pq.Error{Code: "42701", Message: "column already exists"},
			want: true,
		},
		{
			name: "postgres other sqlstate",
			err:  &pq.Error{Code: "42P01", Message: "relation does not exist"},
			want: false,
		},
		{
			name: "wrapped mysql error",
			err:  fmt.Errorf("exec failed: %w", &mysql.MySQLError{Number: 1060}),
			want: true,
		},
		{
			name: "message fallback",
			err:  errors.New("Error 1060: Duplicate column name 'remarks'"),
			want: true,
		},
		{
			name: "unrelated error",
			err:  errors.New("connection refused"),
			want: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isDuplicateColumn(tc.err))
		})
	}
}
