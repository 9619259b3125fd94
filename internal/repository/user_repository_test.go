package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/room-reservation/internal/model"
)

func mockDB(t *testing.T) (*UserRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return NewUserRepo(db), mock
}

func TestUserCreateKeepsEmailCase(t *testing.T) {
	repo, mock := mockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, password_hash, role) VALUES (?,?,?)")).
		WithArgs("Ana@Example.com", "hash", "manager").
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := repo.Create(context.Background(), "  Ana@Example.com ", "hash", model.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), id)
}

func TestUserCreateDuplicate(t *testing.T) {
	repo, mock := mockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := repo.Create(context.Background(), "ana@example.com", "hash", model.RoleUser)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestUserGetByID(t *testing.T) {
	repo, mock := mockDB(t)
	now := time.Now()
	cols := []string{"id", "email", "password_hash", "role", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).WithArgs(uint64(2)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(2, "m@example.com", "h", "manager", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id=?")).WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(cols))

	u, err := repo.GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, u.Role)

	_, err = repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserCountByRole(t *testing.T) {
	repo, mock := mockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT role, COUNT(*) FROM users GROUP BY role")).
		WillReturnRows(sqlmock.NewRows([]string{"role", "n"}).AddRow("admin", 1).AddRow("user", 4))

	got, err := repo.CountByRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[model.Role]int{model.RoleAdmin: 1, model.RoleUser: 4}, got)
}

func TestUserDeleteMissing(t *testing.T) {
	repo, mock := mockDB(t)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id=?")).WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), 5), ErrNotFound)
}

func TestSettingsSaveAll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewSettingRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO settings (setting_key, setting_value)")).
		WithArgs("app_name", "Salas").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.SaveAll(context.Background(), map[string]string{"app_name": "Salas"}))

	// nothing to write, no transaction
	require.NoError(t, repo.SaveAll(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditAppend(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_log")).
		WithArgs(nil, "reservation.deleted", "reservation", "00000000000000aa", nil, "10.0.0.1", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewAuditRepo(db).Append(context.Background(), model.AuditEntry{
		Action: "reservation.deleted", EntityType: "reservation", EntityID: "00000000000000aa",
		IPAddress: "10.0.0.1", CreatedAt: at,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
