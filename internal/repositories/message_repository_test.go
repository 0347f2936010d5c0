package repositories

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/models"
)

func messageRow(id, conversationID, senderID int, content string, sentAt time.Time, deleted bool) *sqlmock.Rows {
	var deletedAt interface{}
	if deleted {
		deletedAt = sentAt
	}
	return sqlmock.NewRows([]string{
		"id", "conversation_id", "sender_id", "content", "reply_to_id",
		"sent_at", "edited", "edited_at", "deleted", "deleted_at",
	}).AddRow(id, conversationID, senderID, content, nil, sentAt, false, nil, deleted, deletedAt)
}

func TestCreateFansOutUnreadToRecipients(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO messages (conversation_id, sender_id, content, reply_to_id)`)).
		WithArgs(5, 1, "hello", nil).
		WillReturnRows(messageRow(30, 5, 1, "hello", sentAt, false))
	mock.ExpectExec(regexp.QuoteMeta(`SET last_message_id=$2, last_message_text=$3, last_message_at=$4, last_message_sender_id=$5`)).
		WithArgs(5, 30, "hello", sentAt, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Every member but the sender gains one unread.
	mock.ExpectExec(regexp.QuoteMeta(`SET unread_count = unread_count + 1`)).
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	msg, err := repo.Create(context.Background(), 5, 1, "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, 30, msg.ID)
	assert.Equal(t, sentAt, msg.SentAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsBlankContent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	_, err := repo.Create(context.Background(), 5, 1, "  \n\t ", nil)
	require.ErrorIs(t, err, ErrEmptyContent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEditRefusesTombstone(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE messages SET content=$3, edited=TRUE`)).
		WithArgs(30, 1, "new text").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Edit(context.Background(), 30, 1, "new text")
	require.ErrorIs(t, err, ErrMessageNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDeleteSwapsSnapshotMarker(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMessageRepo(db)
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE messages SET deleted=TRUE, deleted_at=NOW()`)).
		WithArgs(30, 1).
		WillReturnRows(messageRow(30, 5, 1, "hello", sentAt, true))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE conversations SET last_message_text=$3 WHERE id=$1 AND last_message_id=$2`)).
		WithArgs(5, 30, models.DeletedSnapshotText).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	msg, err := repo.SoftDelete(context.Background(), 30, 1)
	require.NoError(t, err)
	assert.True(t, msg.Deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
