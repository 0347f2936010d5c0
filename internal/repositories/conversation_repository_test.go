package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func conversationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "type", "user1_id", "user2_id", "participant_ids", "name", "image_url", "created_by",
		"last_message_id", "last_message_text", "last_message_at", "last_message_sender_id", "created_at",
	})
}

func dmRow(id, user1, user2 int) *sqlmock.Rows {
	return conversationRows().AddRow(
		id, "dm", user1, user2, []byte("{4,9}"), nil, nil, nil,
		nil, nil, nil, nil, time.Now())
}

func TestCanonicalPair(t *testing.T) {
	a, b := canonicalPair(9, 4)
	assert.Equal(t, 4, a)
	assert.Equal(t, 9, b)

	a, b = canonicalPair(4, 9)
	assert.Equal(t, 4, a)
	assert.Equal(t, 9, b)
}

func TestGetOrCreateDirectArgumentOrderIrrelevant(t *testing.T) {
	// Both (4,9) and (9,4) must hit the same canonical row.
	for name, pair := range map[string][2]int{"ascending": {4, 9}, "descending": {9, 4}} {
		t.Run(name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewConversationRepo(db)

			mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations WHERE type='dm' AND user1_id=$1 AND user2_id=$2`)).
				WithArgs(4, 9).
				WillReturnRows(dmRow(5, 4, 9))

			conv, err := repo.GetOrCreateDirect(context.Background(), pair[0], pair[1])
			require.NoError(t, err)
			assert.Equal(t, 5, conv.ID)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetOrCreateDirectRejectsSelf(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db)

	_, err := repo.GetOrCreateDirect(context.Background(), 4, 4)
	require.ErrorIs(t, err, ErrSelfConversation)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateDirectInsertsCanonicalRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations WHERE type='dm' AND user1_id=$1 AND user2_id=$2`)).
		WithArgs(4, 9).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO conversations (type, user1_id, user2_id, participant_ids)`)).
		WithArgs(4, 9, sqlmock.AnyArg()).
		WillReturnRows(dmRow(5, 4, 9))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)`)).
		WithArgs(5, 4).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO conversation_members (conversation_id, user_id) VALUES ($1, $2)`)).
		WithArgs(5, 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	conv, err := repo.GetOrCreateDirect(context.Background(), 9, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, conv.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateDirectLosesInsertRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewConversationRepo(db)

	// The winner's row appeared between our lookup and our insert: the
	// ON CONFLICT insert returns nothing and we re-read their row.
	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations WHERE type='dm' AND user1_id=$1 AND user2_id=$2`)).
		WithArgs(4, 9).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO conversations (type, user1_id, user2_id, participant_ids)`)).
		WithArgs(4, 9, sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM conversations WHERE type='dm' AND user1_id=$1 AND user2_id=$2`)).
		WithArgs(4, 9).
		WillReturnRows(dmRow(5, 4, 9))

	conv, err := repo.GetOrCreateDirect(context.Background(), 9, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, conv.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
