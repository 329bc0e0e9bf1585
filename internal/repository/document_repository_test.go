package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDocumentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

const groupDocPath = "years/2025/departments/coe/courses/bscs/groups/g1/proposals/set-1"

func TestDocumentRepositoryGet(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	rows := sqlmock.NewRows([]string{"doc"}).AddRow([]byte(`{"id":"set-1","setNumber":1}`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT doc FROM documents WHERE path = $1")).
		WithArgs(groupDocPath).
		WillReturnRows(rows)

	doc, err := repo.Get(context.Background(), groupDocPath)
	require.NoError(t, err)
	assert.Equal(t, "set-1", doc["id"])
	assert.Equal(t, float64(1), doc["setNumber"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryGetNotFound(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT doc FROM documents WHERE path = $1")).
		WithArgs(groupDocPath).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), groupDocPath)
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryPutDerivesCollections(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).
		WithArgs(
			groupDocPath,
			"years/2025/departments/coe/courses/bscs/groups/g1/proposals",
			"proposals",
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Put(context.Background(), groupDocPath, map[string]any{"id": "set-1"})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryPutRejectsOddPath(t *testing.T) {
	db, _, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	err := repo.Put(context.Background(), "years/2025/departments", map[string]any{})
	require.Error(t, err)
}

func TestDocumentRepositoryListCollection(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	rows := sqlmock.NewRows([]string{"doc"}).
		AddRow([]byte(`{"id":"set-2"}`)).
		AddRow([]byte(`{"id":"set-1"}`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT doc FROM documents WHERE collection_path = $1 ORDER BY created_at DESC")).
		WithArgs("years/2025/departments/coe/courses/bscs/groups/g1/proposals").
		WillReturnRows(rows)

	docs, err := repo.ListCollection(context.Background(), "years/2025/departments/coe/courses/bscs/groups/g1/proposals")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "set-2", docs[0]["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryCollectionGroup(t *testing.T) {
	db, mock, cleanup := newDocumentRepoMock(t)
	defer cleanup()

	repo := NewDocumentRepository(db)
	rows := sqlmock.NewRows([]string{"doc"}).AddRow([]byte(`{"id":"set-1","awaitingModerator":true}`))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE collection = $1 AND doc->>$2 = 'true'")).
		WithArgs("proposals", "awaitingModerator").
		WillReturnRows(rows)

	docs, err := repo.CollectionGroup(context.Background(), "proposals", "awaitingModerator")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
