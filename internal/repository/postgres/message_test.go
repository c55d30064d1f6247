package postgres

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/repository"
	"github.com/nkiryanov/chatrooms/internal/testutil"
)

func messageBodies(messages []models.Message) []string {
	bodies := make([]string, 0, len(messages))
	for _, m := range messages {
		bodies = append(bodies, m.Body)
	}
	return bodies
}

func Test_MessageRepo(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Create room with messages "1".."n", "n" is the newest
	withHistory := func(t *testing.T, tx pgx.Tx, n int) (models.Room, []models.Message) {
		r := MessageRepo{DB: tx}
		sender := mustCreateUser(t, tx, "sender")
		room := mustCreateRoom(t, tx, "History room", sender)

		history := make([]models.Message, 0, n)
		for i := 1; i <= n; i++ {
			msg, err := r.CreateMessage(t.Context(), room.ID, sender, string(rune('0'+i)))
			require.NoError(t, err)
			history = append(history, msg)
		}
		return room, history
	}

	t.Run("create message ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MessageRepo{DB: tx}
			sender := mustCreateUser(t, tx, "sender")
			room := mustCreateRoom(t, tx, "History room", sender)

			msg, err := r.CreateMessage(t.Context(), room.ID, sender, "hello")

			require.NoError(t, err)
			assert.Equal(t, room.ID, msg.RoomID)
			assert.Equal(t, sender.ID, msg.SenderID)
			assert.Equal(t, "sender", msg.Sender)
			assert.Equal(t, "hello", msg.Body)
		})
	})

	t.Run("create message in missing room", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MessageRepo{DB: tx}
			sender := mustCreateUser(t, tx, "sender")

			_, err := r.CreateMessage(t.Context(), uuid.New(), sender, "hello")

			require.ErrorIs(t, err, apperrors.ErrRoomNotFound)
		})
	})

	t.Run("empty body rejected by db", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MessageRepo{DB: tx}
			sender := mustCreateUser(t, tx, "sender")
			room := mustCreateRoom(t, tx, "History room", sender)

			_, err := r.CreateMessage(t.Context(), room.ID, sender, "")

			require.ErrorIs(t, err, apperrors.ErrMessageEmpty)
		})
	})

	t.Run("list newest first", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MessageRepo{DB: tx}
			room, _ := withHistory(t, tx, 4)

			messages, err := r.ListMessages(t.Context(), repository.ListMessagesOpts{RoomID: room.ID})

			require.NoError(t, err)
			assert.Equal(t, []string{"4", "3", "2", "1"}, messageBodies(messages))
		})
	})

	t.Run("pages have no overlap and no gap", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MessageRepo{DB: tx}
			room, _ := withHistory(t, tx, 5)

			first, err := r.ListMessages(t.Context(), repository.ListMessagesOpts{RoomID: room.ID, Limit: 2})
			require.NoError(t, err)
			require.Equal(t, []string{"5", "4"}, messageBodies(first))

			last := first[len(first)-1]
			second, err := r.ListMessages(t.Context(), repository.ListMessagesOpts{
				RoomID: room.ID,
				Before: &repository.MessageCursor{CreatedAt: last.CreatedAt, ID: last.ID},
				Limit:  2,
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"3", "2"}, messageBodies(second))
		})
	})

	t.Run("equal timestamps are not skipped", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MessageRepo{DB: tx}
			room, _ := withHistory(t, tx, 4)
			_, err := tx.Exec(t.Context(), `UPDATE messages SET created_at = '2024-01-01T00:00:00Z' WHERE room_id = $1`, room.ID)
			require.NoError(t, err)

			var seen []string
			var before *repository.MessageCursor
			for {
				page, err := r.ListMessages(t.Context(), repository.ListMessagesOpts{RoomID: room.ID, Before: before, Limit: 3})
				require.NoError(t, err)
				if len(page) == 0 {
					break
				}
				seen = append(seen, messageBodies(page)...)
				last := page[len(page)-1]
				before = &repository.MessageCursor{CreatedAt: last.CreatedAt, ID: last.ID}
			}

			assert.ElementsMatch(t, []string{"1", "2", "3", "4"}, seen)
			assert.Len(t, seen, 4)
		})
	})

	t.Run("list only room messages", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MessageRepo{DB: tx}
			room, history := withHistory(t, tx, 2)
			otherRoom := mustCreateRoom(t, tx, "Other room", models.User{ID: history[0].SenderID, Username: "sender"})
			_, err := r.CreateMessage(t.Context(), otherRoom.ID, models.User{ID: history[0].SenderID, Username: "sender"}, "elsewhere")
			require.NoError(t, err)

			messages, err := r.ListMessages(t.Context(), repository.ListMessagesOpts{RoomID: room.ID})

			require.NoError(t, err)
			assert.Equal(t, []string{"2", "1"}, messageBodies(messages))
		})
	})

	t.Run("update body", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MessageRepo{DB: tx}
			_, history := withHistory(t, tx, 1)

			got, err := r.UpdateBody(t.Context(), history[0].ID, "edited")

			require.NoError(t, err)
			assert.Equal(t, "edited", got.Body)
			assert.Equal(t, history[0].CreatedAt, got.CreatedAt)
			assert.True(t, got.UpdatedAt.After(history[0].UpdatedAt))

			_, err = r.UpdateBody(t.Context(), uuid.New(), "edited")
			assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)
		})
	})

	t.Run("delete message", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := MessageRepo{DB: tx}
			_, history := withHistory(t, tx, 1)

			err := r.DeleteMessage(t.Context(), history[0].ID)
			require.NoError(t, err)

			err = r.DeleteMessage(t.Context(), history[0].ID)
			assert.ErrorIs(t, err, apperrors.ErrMessageNotFound)
		})
	})
}
