package postgres

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/chatrooms/internal/models"
)

func mustParseTime(value string) time.Time {
	dt, err := time.Parse("2006-01-02 15:04:05Z07:00", value)
	if err != nil {
		panic(err)
	}
	return dt
}

func mustCreateUser(t *testing.T, tx pgx.Tx, username string) models.User {
	t.Helper()

	user, err := (&UserRepo{DB: tx}).CreateUser(t.Context(), username, "hashed-"+username)
	require.NoError(t, err, "user should be created")
	return user
}

func mustCreateRoom(t *testing.T, tx pgx.Tx, name string, admin models.User) models.Room {
	t.Helper()

	room, err := (&RoomRepo{DB: tx}).CreateRoom(t.Context(), name, admin, "")
	require.NoError(t, err, "room should be created")
	return room
}
