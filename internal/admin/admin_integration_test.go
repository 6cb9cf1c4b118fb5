package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pokevote/gameserver/internal/ban"
	"github.com/pokevote/gameserver/internal/logging"
	"github.com/pokevote/gameserver/internal/storetest"
)

func TestCreateListUnbanFlow(t *testing.T) {
	client := storetest.NewClient(t)
	bans := ban.New(client, logging.NewSilent())
	h := New(bans, testSecret)

	// Create an IP ban through the route-bound handler; the path fixes the
	// kind, so the body does not carry one.
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/ban/ip",
		strings.NewReader(`{"identifier":"1.2.3.4","reason":"abuse","type":"hard"}`))
	r.Header.Set("X-Admin-Secret", testSecret)
	h.HandleCreateFor(ban.KindIP)(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	// It shows up in the listing.
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/api/v1/admin/bans", nil)
	r.Header.Set("X-Admin-Secret", testSecret)
	h.HandleList(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var listing struct {
		Bans []ban.Record `json:"bans"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listing))
	require.Len(t, listing.Bans, 1)
	require.Equal(t, ban.TypeHard, listing.Bans[0].Type)
	require.Equal(t, "1.2.3.4", listing.Bans[0].Identifier)
	require.Equal(t, ban.KindIP, listing.Bans[0].Kind)

	// The banned IP is rejected by the check path.
	res, err := bans.Check(r.Context(), "", "1.2.3.4", "ua")
	require.NoError(t, err)
	require.True(t, res.Banned)

	// Unban clears it.
	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/api/v1/admin/unban",
		strings.NewReader(`{"identifier":"1.2.3.4","kind":"ip"}`))
	r.Header.Set("X-Admin-Secret", testSecret)
	h.HandleUnban(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	res, err = bans.Check(r.Context(), "", "1.2.3.4", "ua")
	require.NoError(t, err)
	require.False(t, res.Banned)
}
