package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/chatrooms/internal/apperrors"
	"github.com/nkiryanov/chatrooms/internal/testutil"
)

func Test_UserRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create user ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			user, err := r.CreateUser(t.Context(), "testuser", "hashedpassword123")

			require.NoError(t, err)
			assert.Equal(t, "testuser", user.Username)
			assert.Equal(t, "hashedpassword123", user.HashedPassword)
			assert.WithinDuration(t, time.Now(), user.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create user twice fails", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			_, err := r.CreateUser(t.Context(), "testuser", "hashedpassword123")
			require.NoError(t, err)

			_, err = r.CreateUser(t.Context(), "testuser", "otherpassword")

			require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		})
	})

	t.Run("get user by id ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "findbyid", "hashedpassword123")
			require.NoError(t, err)

			got, err := r.GetUserByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created, got)
		})
	})

	t.Run("get user by id not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByID(t.Context(), uuid.New())

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound, "should return well known error")
		})
	})

	t.Run("get user by username ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			created, err := r.CreateUser(t.Context(), "findbyusername", "hashedpassword123")
			require.NoError(t, err)

			got, err := r.GetUserByUsername(t.Context(), created.Username)

			require.NoError(t, err)
			assert.Equal(t, created, got)
		})
	})

	t.Run("get user by username not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}

			_, err := r.GetUserByUsername(t.Context(), "nonexistentuser")

			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("list users ordered by username", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			mustCreateUser(t, tx, "zebra1")
			mustCreateUser(t, tx, "alpha1")

			users, err := r.ListUsers(t.Context())

			require.NoError(t, err)
			require.Len(t, users, 2)
			assert.Equal(t, "alpha1", users[0].Username)
			assert.Equal(t, "zebra1", users[1].Username)
		})
	})

	t.Run("set password hash", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			user := mustCreateUser(t, tx, "changer")

			got, err := r.SetPasswordHash(t.Context(), user.ID, "new-hash")

			require.NoError(t, err)
			assert.Equal(t, "new-hash", got.HashedPassword)

			_, err = r.SetPasswordHash(t.Context(), uuid.New(), "new-hash")
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})

	t.Run("delete user cascades", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := UserRepo{DB: tx}
			rooms := RoomRepo{DB: tx}
			messages := MessageRepo{DB: tx}

			owner := mustCreateUser(t, tx, "owner1")
			other := mustCreateUser(t, tx, "other1")
			ownedRoom := mustCreateRoom(t, tx, "Owned room", owner)
			otherRoom := mustCreateRoom(t, tx, "Other room", other)
			_, err := rooms.AddMember(t.Context(), owner.ID, otherRoom.ID)
			require.NoError(t, err)
			ownMsg, err := messages.CreateMessage(t.Context(), otherRoom.ID, owner, "hello")
			require.NoError(t, err)

			err = r.DeleteUser(t.Context(), owner.ID)
			require.NoError(t, err)

			_, err = rooms.GetRoom(t.Context(), ownedRoom.ID)
			assert.ErrorIs(t, err, apperrors.ErrRoomNotFound, "rooms administered by user should be deleted")
			_, err = messages.GetMessage(t.Context(), ownMsg.ID)
			assert.ErrorIs(t, err, apperrors.ErrMessageNotFound, "user messages should be deleted")
			member, err := rooms.IsMember(t.Context(), owner.ID, otherRoom.ID)
			require.NoError(t, err)
			assert.False(t, member)
			_, err = rooms.GetRoom(t.Context(), otherRoom.ID)
			assert.NoError(t, err, "rooms of other users must be kept")

			err = r.DeleteUser(t.Context(), owner.ID)
			assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
		})
	})
}
