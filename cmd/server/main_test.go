package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiliankoe/promptparty/internal/cards"
	"github.com/kiliankoe/promptparty/internal/game"
)

func testRouter(t *testing.T) (*gin.Engine, *game.RoomManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rm := game.NewRoomManager(game.DefaultRules(), cards.Embedded(), game.WithLogger(zerolog.Nop()))
	r := gin.New()
	routes(r, rm)
	return r, rm
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	r, _ := testRouter(t)
	w := get(r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)
}

func TestSessionInfo(t *testing.T) {
	r, rm := testRouter(t)
	code, _, _, err := rm.CreateSession(context.Background(), "Alice")
	require.NoError(t, err)

	w := get(r, "/api/sessions/"+strings.ToLower(code))
	require.Equal(t, http.StatusOK, w.Code)
	var info game.Info
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, code, info.Code)
	assert.Equal(t, game.PhaseLobby, info.Phase)
	assert.Equal(t, 1, info.Players)
	assert.Equal(t, 8, info.MaxPlayers)

	assert.Equal(t, http.StatusBadRequest, get(r, "/api/sessions/nope").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/api/sessions/ZZZZZZ").Code)
}
