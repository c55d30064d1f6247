package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/chatrooms/internal/models"
	"github.com/nkiryanov/chatrooms/internal/realtime"
)

type wsFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, srv testServer, token string) (*websocket.Conn, string) {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.DialContext(t.Context(), url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	frame := readFrame(t, conn)
	require.Equal(t, realtime.EventConnected, frame.Event)
	var connected realtime.Connected
	require.NoError(t, json.Unmarshal(frame.Data, &connected))
	require.NotEmpty(t, connected.SocketID)

	return conn, connected.SocketID
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame wsFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func sendFrame(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

func Test_EndToEnd(t *testing.T) {
	t.Parallel()

	pg := startPostgres(t)

	t.Run("websocket requires token", func(t *testing.T) {
		serveWithTx(pg, t, func(srv testServer) {
			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?token=garbage"
			_, resp, err := websocket.DefaultDialer.DialContext(t.Context(), url, nil)

			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	})

	t.Run("room chat scenario", func(t *testing.T) {
		serveWithTx(pg, t, func(srv testServer) {
			_, aliceToken := srv.signup(t, "alicealice")
			_, bobToken := srv.signup(t, "bobbobbob")

			resp, body := srv.do(t, http.MethodPost, "/api/chatrooms", aliceToken, `{"name": "Secret garden", "password": "1234"}`)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
			room := decode[models.RoomSummary](t, body)
			loginPath := fmt.Sprintf("/api/chatrooms/%s/login", room.ID)

			aliceConn, aliceSocket := dialWS(t, srv, aliceToken)
			bobConn, bobSocket := dialWS(t, srv, bobToken)

			// Wrong password changes nothing
			resp, _ = srv.do(t, http.MethodPost, loginPath, bobToken, fmt.Sprintf(`{"socketId": %q, "password": "0000"}`, bobSocket))
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

			resp, body = srv.do(t, http.MethodPost, loginPath, bobToken, fmt.Sprintf(`{"socketId": %q, "password": "1234"}`, bobSocket))
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"newRoomAdded":true`)

			resp, body = srv.do(t, http.MethodPost, loginPath, aliceToken, fmt.Sprintf(`{"socketId": %q}`, aliceSocket))
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"newRoomAdded":false`, "admin is a member since room created")

			// Typing reaches others only
			sendFrame(t, bobConn, realtime.EventUserTyping, room.ID)
			frame := readFrame(t, aliceConn)
			require.Equal(t, realtime.EventUserTyping, frame.Event)
			require.JSONEq(t, `"bobbobbob"`, string(frame.Data))

			// Posting a message fans out and stops typing
			resp, body = srv.do(t, http.MethodPost, fmt.Sprintf("/api/chatrooms/%s/messages", room.ID), bobToken, `{"body": "hi alice"}`)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
			posted := decode[models.Message](t, body)

			frame = readFrame(t, aliceConn)
			require.Equal(t, realtime.EventAddMessage, frame.Event)
			require.JSONEq(t, body, string(frame.Data))
			frame = readFrame(t, aliceConn)
			require.Equal(t, realtime.EventUserStoppedTyping, frame.Event)
			require.JSONEq(t, `"bobbobbob"`, string(frame.Data))

			frame = readFrame(t, bobConn)
			require.Equal(t, realtime.EventAddMessage, frame.Event, "sender gets own message too")

			// History
			resp, body = srv.do(t, http.MethodGet, fmt.Sprintf("/api/chatrooms/%s/messages?limit=10", room.ID), aliceToken, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			history := decode[[]models.Message](t, body)
			require.Len(t, history, 1)
			require.Equal(t, posted.ID, history[0].ID)

			// Delete message
			resp, _ = srv.do(t, http.MethodDelete, "/api/messages/"+posted.ID.String(), bobToken, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			frame = readFrame(t, aliceConn)
			require.Equal(t, realtime.EventDeleteMessage, frame.Event)
			require.JSONEq(t, fmt.Sprintf("%q", posted.ID), string(frame.Data))
			frame = readFrame(t, bobConn)
			require.Equal(t, realtime.EventDeleteMessage, frame.Event)

			// Room removal unbinds everyone
			resp, _ = srv.do(t, http.MethodDelete, "/api/chatrooms/"+room.ID.String(), aliceToken, "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
			frame = readFrame(t, bobConn)
			require.Equal(t, realtime.EventChatRoomDeleted, frame.Event)
			require.JSONEq(t, fmt.Sprintf("%q", room.ID), string(frame.Data))

			_, bound := srv.Hub.Room(bobSocket)
			require.False(t, bound)
		})
	})

	t.Run("password set after creation", func(t *testing.T) {
		serveWithTx(pg, t, func(srv testServer) {
			_, adminToken := srv.signup(t, "alicealice")
			_, bobToken := srv.signup(t, "bobbobbob")
			_, carolToken := srv.signup(t, "carolcarol")

			resp, body := srv.do(t, http.MethodPost, "/api/chatrooms", adminToken, `{"name": "Open garden"}`)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
			room := decode[models.RoomSummary](t, body)
			loginPath := fmt.Sprintf("/api/chatrooms/%s/login", room.ID)
			join := func(token string, socket string, password string) (*http.Response, string) {
				return srv.do(t, http.MethodPost, loginPath, token, fmt.Sprintf(`{"socketId": %q, "password": %q}`, socket, password))
			}

			_, adminSocket := dialWS(t, srv, adminToken)
			_, bobSocket := dialWS(t, srv, bobToken)
			_, carolSocket := dialWS(t, srv, carolToken)

			resp, body = join(adminToken, adminSocket, "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"newRoomAdded":false`, "creator is a member already")

			// Bob joins the open room
			resp, body = join(bobToken, bobSocket, "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"newRoomAdded":true`)

			resp, body = srv.do(t, http.MethodPatch, "/api/chatrooms/"+room.ID.String(), adminToken, `{"password": "1234"}`)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.True(t, decode[models.RoomSummary](t, body).HasPassword)

			// Newcomer needs the password now
			resp, body = join(carolToken, carolSocket, "")
			require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			require.Contains(t, body, "Chat room password required")
			_, bound := srv.Hub.Room(carolSocket)
			require.False(t, bound)

			resp, body = join(carolToken, carolSocket, "1234")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"newRoomAdded":true`)

			// Members joined before keep access without the password
			resp, body = join(bobToken, bobSocket, "")
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"newRoomAdded":false`)
			require.Equal(t, 3, srv.Hub.Online(room.ID))
		})
	})

	t.Run("disconnect vacates the room", func(t *testing.T) {
		serveWithTx(pg, t, func(srv testServer) {
			admin, token := srv.signup(t, "alicealice")
			room, err := srv.Rooms.Create(t.Context(), admin, "Open room", "")
			require.NoError(t, err)

			conn, socket := dialWS(t, srv, token)
			resp, _ := srv.do(t, http.MethodPost, fmt.Sprintf("/api/chatrooms/%s/login", room.ID), token, fmt.Sprintf(`{"socketId": %q}`, socket))
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Equal(t, 1, srv.Hub.Online(room.ID))

			_ = conn.Close()

			require.Eventually(t, func() bool { return srv.Hub.Online(room.ID) == 0 }, 2*time.Second, 10*time.Millisecond)

			// Stale socket can't be bound anymore
			resp, _ = srv.do(t, http.MethodPost, fmt.Sprintf("/api/chatrooms/%s/login", room.ID), token, fmt.Sprintf(`{"socketId": %q}`, socket))
			require.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	})

	t.Run("metrics exposed", func(t *testing.T) {
		serveWithTx(pg, t, func(srv testServer) {
			srv.do(t, http.MethodGet, "/api/users", "", "")

			resp, body := srv.do(t, http.MethodGet, "/metrics", "", "")

			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Contains(t, body, `http_requests_total{method="GET",path="GET /api/users",status="401"}`)
			require.Contains(t, body, "chatrooms_ws_connections")
		})
	})
}
