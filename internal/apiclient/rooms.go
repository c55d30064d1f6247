package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/nkiryanov/chatrooms/internal/models"
)

type JoinResult struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Admin        string    `json:"admin"`
	NewRoomAdded bool      `json:"newRoomAdded"`
}

func (c *Client) CreateRoom(ctx context.Context, name string, password string) (models.RoomSummary, error) {
	var room models.RoomSummary
	err := c.Do(ctx, http.MethodPost, "/api/chatrooms", map[string]string{"name": name, "password": password}, &room)
	return room, err
}

// JoinRoom makes user a room member (password is needed the first time only) and binds the socket to the room
func (c *Client) JoinRoom(ctx context.Context, roomID uuid.UUID, socketID string, password string) (JoinResult, error) {
	var result JoinResult
	body := map[string]string{"socketId": socketID, "password": password}
	err := c.Do(ctx, http.MethodPost, "/api/chatrooms/"+roomID.String()+"/login", body, &result)
	return result, err
}

func (c *Client) LeaveRoom(ctx context.Context, roomID uuid.UUID) error {
	return c.Do(ctx, http.MethodPost, "/api/chatrooms/"+roomID.String()+"/logout", nil, nil)
}

// Rooms with name containing nameFilter, ordered by name and starting after the given one
func (c *Client) SearchRooms(ctx context.Context, nameFilter string, after string, limit int) ([]models.RoomSummary, error) {
	var rooms []models.RoomSummary
	path := "/api/chatrooms/search" + pageQuery("after", after, limit)
	err := c.Do(ctx, http.MethodPost, path, map[string]string{"nameFilter": nameFilter}, &rooms)
	return rooms, err
}

// Messages older than 'before' message, newest first. Empty before means the newest page
func (c *Client) ListMessages(ctx context.Context, roomID uuid.UUID, before string, limit int) ([]models.Message, error) {
	var messages []models.Message
	path := "/api/chatrooms/" + roomID.String() + "/messages" + pageQuery("before", before, limit)
	err := c.Do(ctx, http.MethodGet, path, nil, &messages)
	return messages, err
}

func (c *Client) SendMessage(ctx context.Context, roomID uuid.UUID, body string) (models.Message, error) {
	var msg models.Message
	err := c.Do(ctx, http.MethodPost, "/api/chatrooms/"+roomID.String()+"/messages", map[string]string{"body": body}, &msg)
	return msg, err
}

func pageQuery(cursorName string, cursor string, limit int) string {
	q := url.Values{}
	if cursor != "" {
		q.Set(cursorName, cursor)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}
