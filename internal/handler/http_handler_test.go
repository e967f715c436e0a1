package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var body envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealth(t *testing.T) {
	s := setupServer(t)
	resp := s.do(t, http.MethodGet, "/health", "", nil)
	body := decode(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
}

func TestStartChat_Validation(t *testing.T) {
	s := setupServer(t)

	resp := s.do(t, http.MethodPost, "/api/v1/chat/start", "", map[string]string{})
	body := decode(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, body.Success)

	resp = s.do(t, http.MethodPost, "/api/v1/chat/start", "", map[string]string{"owner_id": "   "})
	decode(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRooms(t *testing.T) {
	s := setupServer(t)
	chat := s.startChat(t, "owner-1")
	s.startChat(t, "owner-2")

	resp := s.do(t, http.MethodGet, "/api/v1/chat/rooms", "", nil)
	decode(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/chat/rooms", s.ownerToken(t, "owner-1"), nil)
	body := decode(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Rooms []struct {
			ID     string `json:"id"`
			Active bool   `json:"is_active"`
		} `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.Len(t, data.Rooms, 1)
	assert.Equal(t, chat.RoomID, data.Rooms[0].ID)
	assert.True(t, data.Rooms[0].Active)
	assert.NotContains(t, string(body.Data), chat.VisitorToken, "the visitor secret is never listed")
}

func TestHistory(t *testing.T) {
	s := setupServer(t)
	chat := s.startChat(t, "owner-1")
	visitor := s.join(t, chat.WSURL)
	send(t, visitor, `{"message":"hello"}`)
	readFrame(t, visitor)

	path := "/api/v1/chat/rooms/" + chat.RoomID + "/messages"

	resp := s.do(t, http.MethodGet, path+"?visitor="+url.QueryEscape(chat.VisitorToken), "", nil)
	body := decode(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page struct {
		Messages []struct {
			Message    string `json:"message"`
			SenderType string `json:"sender_type"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(body.Data, &page))
	require.Len(t, page.Messages, 1)
	assert.Equal(t, "hello", page.Messages[0].Message)

	resp = s.do(t, http.MethodGet, path, s.ownerToken(t, "owner-1"), nil)
	decode(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodGet, path, s.ownerToken(t, "owner-2"), nil)
	body = decode(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, body.Error)
	assert.Equal(t, "FORBIDDEN", body.Error.Code)

	resp = s.do(t, http.MethodGet, path+"?before=not-a-time", s.ownerToken(t, "owner-1"), nil)
	decode(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/api/v1/chat/rooms/missing/messages", s.ownerToken(t, "owner-1"), nil)
	decode(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeactivateRoom(t *testing.T) {
	s := setupServer(t)
	chat := s.startChat(t, "owner-1")
	path := "/api/v1/chat/rooms/" + chat.RoomID

	resp := s.do(t, http.MethodDelete, path, s.ownerToken(t, "owner-2"), nil)
	decode(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, path, s.ownerToken(t, "owner-1"), nil)
	decode(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(t, http.MethodDelete, path, s.ownerToken(t, "owner-1"), nil)
	decode(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
