package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/songdecks/internal/accounts"
	"github.com/jason-s-yu/songdecks/internal/auth"
	"github.com/jason-s-yu/songdecks/internal/catalog"
	"github.com/jason-s-yu/songdecks/internal/game"
	"github.com/jason-s-yu/songdecks/internal/lists"
	"github.com/jason-s-yu/songdecks/internal/models"
	"github.com/jason-s-yu/songdecks/internal/realtime"
	"github.com/jason-s-yu/songdecks/internal/store"
	"github.com/jason-s-yu/songdecks/internal/store/memstore"
	"github.com/jason-s-yu/songdecks/internal/workbench"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	Success  bool            `json:"success"`
	Response json.RawMessage `json:"response"`
	Code     string          `json:"code"`
}

type fixture struct {
	store    *memstore.Store
	sessions *auth.Sessions
	handler  http.Handler

	player    string // token of a plain user
	moderator string // token of a moderator

	faction   models.Faction
	commander models.Commander
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	sessions, err := auth.NewSessions(time.Hour)
	require.NoError(t, err)
	st := memstore.New()
	hub := realtime.NewHub(logger)
	svc := Services{
		Accounts:  accounts.NewService(st, sessions, logger),
		Catalog:   catalog.NewService(st, logger),
		Lists:     lists.NewEngine(st, logger),
		Games:     game.NewEngine(st, hub, logger),
		Workbench: workbench.NewService(st, logger),
		Hub:       hub,
		Sessions:  sessions,
	}
	fx := &fixture{
		store:    st,
		sessions: sessions,
		handler:  NewAPI(svc, Options{LoginRatePerMin: 5}, logger).Routes(),
	}

	require.NoError(t, st.WithTx(ctx, func(tx store.Tx) error {
		player := &models.Profile{Username: "arya", Email: "arya@example.com"}
		mod := &models.Profile{Username: "maester", Email: "maester@example.com", Moderator: true}
		require.NoError(t, tx.CreateProfile(ctx, player))
		require.NoError(t, tx.CreateProfile(ctx, mod))

		fx.faction = models.Faction{Name: "Stark"}
		require.NoError(t, tx.SaveFaction(ctx, &fx.faction))
		fx.commander = models.Commander{Name: "Robb", FactionID: fx.faction.ID, CommanderType: models.CommanderTypeAttachment}
		require.NoError(t, tx.SaveCommander(ctx, &fx.commander))
		for _, name := range []string{"Rally", "Hold the Line"} {
			require.NoError(t, tx.SaveCardTemplate(ctx, &models.CardTemplate{CardName: name, FactionID: &fx.faction.ID}))
		}

		fx.player, err = sessions.CreateJWT(player.ID)
		require.NoError(t, err)
		fx.moderator, err = sessions.CreateJWT(mod.ID)
		require.NoError(t, err)
		return nil
	}))
	return fx
}

// do sends method path with body as JSON and token as a bearer token.
func (fx *fixture) do(t *testing.T, method, path, token string, body any) (int, result) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		buf = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	fx.handler.ServeHTTP(w, req)

	var res result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return w.Code, res
}

func decodeInto[T any](t *testing.T, res result) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(res.Response, &out), string(res.Response))
	return out
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t)
	status, res := fx.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, res.Success)
}

func TestRegisterLoginAndCurrent(t *testing.T) {
	fx := newFixture(t)

	status, res := fx.do(t, http.MethodPost, "/user/create", "", accounts.RegisterInput{
		Username: "sansa",
		Email:    "sansa@example.com",
		Password: "lemon cakes",
	})
	require.Equal(t, http.StatusCreated, status, string(res.Response))
	assert.NotContains(t, string(res.Response), "lemon cakes")

	b, _ := json.Marshal(loginRequest{Login: "sansa@example.com", Password: "lemon cakes"})
	w := httptest.NewRecorder()
	fx.handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/user/login", bytes.NewReader(b)))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/user/current", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	fx.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var cur result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cur))
	assert.Equal(t, "sansa", decodeInto[models.Profile](t, cur).Username)

	status, res = fx.do(t, http.MethodGet, "/user/current", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, res.Success)
	assert.Equal(t, "UNAUTHORIZED", res.Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	fx := newFixture(t)
	codes := make([]int, 0, 6)
	for range 6 {
		status, _ := fx.do(t, http.MethodPost, "/user/login", "", loginRequest{Login: "nobody", Password: "wrong"})
		codes = append(codes, status)
	}
	assert.Equal(t, http.StatusUnauthorized, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[5])
}

func TestErrorMapping(t *testing.T) {
	fx := newFixture(t)
	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"bad path id", http.MethodGet, "/lists/abc", fx.player, nil, http.StatusBadRequest, "VALIDATION"},
		{"missing list", http.MethodGet, "/lists/99", fx.player, nil, http.StatusNotFound, "NOT_FOUND"},
		{"anonymous save", http.MethodPost, "/lists", "", lists.Submission{Name: "x"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"plain user edits catalog", http.MethodPost, "/factions", fx.player, models.Faction{Name: "Greyjoy"}, http.StatusForbidden, "FORBIDDEN"},
		{"cards need a filter", http.MethodGet, "/cards", "", nil, http.StatusBadRequest, "VALIDATION"},
		{"malformed body", http.MethodPost, "/games", fx.player, "not an object", http.StatusBadRequest, "VALIDATION"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, res := fx.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, status, string(res.Response))
			assert.False(t, res.Success)
			assert.Equal(t, tt.code, res.Code)
		})
	}
}

func TestCatalogEditing(t *testing.T) {
	fx := newFixture(t)

	status, res := fx.do(t, http.MethodPost, "/factions", fx.moderator, models.Faction{ID: 42, Name: "Greyjoy"})
	require.Equal(t, http.StatusCreated, status, string(res.Response))
	created := decodeInto[models.Faction](t, res)
	assert.NotEqual(t, int64(42), created.ID)

	path := fmt.Sprintf("/factions/%d", created.ID)
	status, res = fx.do(t, http.MethodPost, path, fx.moderator, models.Faction{Name: "Ironborn"})
	require.Equal(t, http.StatusOK, status, string(res.Response))
	assert.Equal(t, "Ironborn", decodeInto[models.Faction](t, res).Name)

	_, res = fx.do(t, http.MethodGet, "/factions", "", nil)
	names := make([]string, 0)
	for _, f := range decodeInto[[]models.Faction](t, res) {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"Stark", "Ironborn"}, names)

	_, res = fx.do(t, http.MethodGet, fmt.Sprintf("/cards?faction_id=%d", fx.faction.ID), "", nil)
	assert.Len(t, decodeInto[[]models.CardTemplate](t, res), 2)

	status, _ = fx.do(t, http.MethodDelete, path, fx.moderator, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = fx.do(t, http.MethodPost, path, fx.moderator, models.Faction{Name: "Ironborn"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGameFlow(t *testing.T) {
	fx := newFixture(t)

	status, res := fx.do(t, http.MethodPost, "/games", fx.player, game.StartRequest{FactionID: fx.faction.ID, CommanderID: fx.commander.ID})
	require.Equal(t, http.StatusCreated, status, string(res.Response))
	session := decodeInto[game.Session](t, res)
	require.NotEmpty(t, session.Cards)
	base := fmt.Sprintf("/games/%d", session.Game.ID)

	status, res = fx.do(t, http.MethodPost, base+"/actions/draw", fx.player, nil)
	require.Equal(t, http.StatusOK, status, string(res.Response))
	drawn := decodeInto[game.ActionResult](t, res)
	require.NotNil(t, drawn.NewCard)
	assert.Equal(t, models.CardInHand, drawn.NewCard.Status)

	status, res = fx.do(t, http.MethodPost, base+"/actions/play", fx.player, game.ActionRequest{CardID: drawn.NewCard.ID})
	require.Equal(t, http.StatusOK, status, string(res.Response))
	status, res = fx.do(t, http.MethodPost, base+"/actions/play", fx.player, game.ActionRequest{CardID: drawn.NewCard.ID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION", res.Code)
	status, _ = fx.do(t, http.MethodPost, base+"/actions/fly", fx.player, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = fx.do(t, http.MethodGet, base+"/cards", fx.moderator, nil)
	assert.Equal(t, http.StatusNotFound, status, "other profiles cannot see the game")

	status, res = fx.do(t, http.MethodPost, base+"/end_round", fx.player, nil)
	require.Equal(t, http.StatusOK, status, string(res.Response))
	rolled := decodeInto[game.RollupResult](t, res)
	assert.Equal(t, 1, rolled.Drawn)
	assert.Equal(t, 2, rolled.Game.Round)

	_, res = fx.do(t, http.MethodGet, "/games/recent?limit=5", fx.player, nil)
	recent := decodeInto[[]models.Game](t, res)
	require.Len(t, recent, 1)
	assert.Equal(t, session.Game.ID, recent[0].ID)

	status, _ = fx.do(t, http.MethodGet, "/games/recent?limit=lots", fx.player, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, res = fx.do(t, http.MethodPost, base+"/end_game", fx.player, nil)
	require.Equal(t, http.StatusOK, status, string(res.Response))
	assert.Equal(t, models.GameCompleted, decodeInto[game.RollupResult](t, res).Game.Status)
}

func TestGameWebSocket(t *testing.T) {
	fx := newFixture(t)
	_, res := fx.do(t, http.MethodPost, "/games", fx.player, game.StartRequest{FactionID: fx.faction.ID, CommanderID: fx.commander.ID})
	session := decodeInto[game.Session](t, res)

	srv := httptest.NewServer(fx.handler)
	defer srv.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + fmt.Sprintf("/game/ws/%d", session.Game.ID)

	_, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{realtime.Subprotocol}})
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, "anonymous callers are refused before the upgrade")
	}

	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{realtime.Subprotocol},
		HTTPHeader:   http.Header{"Authorization": []string{"Bearer " + fx.player}},
	})
	require.NoError(t, err)
	defer c.CloseNow()

	type event struct {
		Action *models.CardAction  `json:"action"`
		Cards  []models.PlayerCard `json:"cards"`
	}
	var first event
	require.NoError(t, wsjson.Read(ctx, c, &first))
	assert.Nil(t, first.Action)
	assert.Len(t, first.Cards, len(session.Cards))

	fx.do(t, http.MethodPost, fmt.Sprintf("/games/%d/actions/draw", session.Game.ID), fx.player, nil)

	var next event
	require.NoError(t, wsjson.Read(ctx, c, &next))
	require.NotNil(t, next.Action)
	assert.Equal(t, "draw", next.Action.Action)
	inHand := 0
	for _, card := range next.Cards {
		if card.Status == models.CardInHand {
			inHand++
		}
	}
	assert.Equal(t, 1, inHand)
}

func TestWorkbenchRoutes(t *testing.T) {
	fx := newFixture(t)

	status, res := fx.do(t, http.MethodPost, "/tags", fx.moderator, tagRequest{Name: "balance"})
	require.Equal(t, http.StatusCreated, status, string(res.Response))
	tag := decodeInto[models.Tag](t, res)

	status, res = fx.do(t, http.MethodPost, "/proposals", fx.player, map[string]any{"text": "buff cavalry", "tags": []int64{tag.ID}})
	require.Equal(t, http.StatusCreated, status, string(res.Response))
	proposal := decodeInto[models.Proposal](t, res)
	assert.Equal(t, models.ProposalPending, proposal.Status)

	status, res = fx.do(t, http.MethodPost, fmt.Sprintf("/proposals/%d/favorite", proposal.ID), fx.player, nil)
	require.Equal(t, http.StatusOK, status, string(res.Response))
	assert.Len(t, decodeInto[models.Proposal](t, res).FavoritedBy, 1)

	status, res = fx.do(t, http.MethodPost, "/tasks", fx.moderator, map[string]any{"title": "rework cavalry"})
	require.Equal(t, http.StatusCreated, status, string(res.Response))
	first := decodeInto[models.Task](t, res)
	status, res = fx.do(t, http.MethodPost, "/tasks", fx.moderator, map[string]any{"title": "playtest", "dependencies": []int64{first.ID}})
	require.Equal(t, http.StatusCreated, status, string(res.Response))
	second := decodeInto[models.Task](t, res)

	status, res = fx.do(t, http.MethodPost, fmt.Sprintf("/tasks/%d", first.ID), fx.moderator, map[string]any{"dependencies": []int64{second.ID}})
	assert.Equal(t, http.StatusBadRequest, status, "cycles are rejected")
	assert.Equal(t, "VALIDATION", res.Code)

	status, res = fx.do(t, http.MethodPost, "/subtasks", fx.moderator, map[string]any{"task": first.ID, "title": "draft stats"})
	require.Equal(t, http.StatusCreated, status, string(res.Response))
	assert.Len(t, decodeInto[models.Task](t, res).SubTasks, 1)

	status, _ = fx.do(t, http.MethodPost, "/tasks", fx.player, map[string]any{"title": "sneaky"})
	assert.Equal(t, http.StatusForbidden, status)

	_, res = fx.do(t, http.MethodGet, "/moderators", fx.moderator, nil)
	mods := decodeInto[[]models.Profile](t, res)
	require.Len(t, mods, 1)
	assert.Equal(t, "maester", mods[0].Username)
}

func TestCatalogDeleteInUse(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	status, res := fx.do(t, http.MethodPost, "/units", fx.moderator, catalog.UnitInput{Name: "Outriders", FactionID: fx.faction.ID, Status: models.UnitStatusGeneric})
	require.Equal(t, http.StatusCreated, status, string(res.Response))
	unit := decodeInto[models.Unit](t, res)
	require.NoError(t, fx.store.WithTx(ctx, func(tx store.Tx) error {
		l := &models.List{Name: "Wolves", FactionID: fx.faction.ID, CommanderID: fx.commander.ID}
		if err := tx.SaveList(ctx, l); err != nil {
			return err
		}
		return tx.CreateListUnit(ctx, &models.ListUnit{ListID: l.ID, UnitID: unit.ID})
	}))

	status, res = fx.do(t, http.MethodDelete, fmt.Sprintf("/units/%d", unit.ID), fx.moderator, nil)
	assert.Equal(t, http.StatusConflict, status, string(res.Response))
	assert.Equal(t, "CONFLICT", res.Code)

	_, res = fx.do(t, http.MethodGet, "/lists", fx.player, nil)
	assert.True(t, res.Success, "lists still load")
}

func TestKeywordRoutes(t *testing.T) {
	fx := newFixture(t)

	status, res := fx.do(t, http.MethodPost, "/keyword_types", fx.moderator, models.KeywordType{Name: "Order"})
	require.Equal(t, http.StatusCreated, status, string(res.Response))
	order := decodeInto[models.KeywordType](t, res)

	status, res = fx.do(t, http.MethodPost, "/keywords", fx.moderator, models.KeywordPair{Keyword: "Sunder", KeywordTypeID: &order.ID})
	require.Equal(t, http.StatusCreated, status, string(res.Response))
	pair := decodeInto[models.KeywordPair](t, res)

	status, _ = fx.do(t, http.MethodPost, "/keywords", fx.player, models.KeywordPair{Keyword: "Vicious"})
	assert.Equal(t, http.StatusForbidden, status)

	_, res = fx.do(t, http.MethodGet, "/keywords", "", nil)
	assert.Len(t, decodeInto[[]models.KeywordPair](t, res), 1)

	status, _ = fx.do(t, http.MethodDelete, fmt.Sprintf("/keyword_types/%d", order.ID), fx.moderator, nil)
	assert.Equal(t, http.StatusConflict, status)
	status, _ = fx.do(t, http.MethodDelete, fmt.Sprintf("/keywords/%d", pair.ID), fx.moderator, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = fx.do(t, http.MethodDelete, fmt.Sprintf("/keyword_types/%d", order.ID), fx.moderator, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAccountAdministration(t *testing.T) {
	fx := newFixture(t)

	status, res := fx.do(t, http.MethodGet, "/user/current", fx.player, nil)
	require.Equal(t, http.StatusOK, status)
	arya := decodeInto[models.Profile](t, res)

	path := "/user/" + arya.ID.String()
	status, res = fx.do(t, http.MethodPost, path, fx.player, map[string]any{"first_name": "Arya"})
	require.Equal(t, http.StatusOK, status, string(res.Response))
	updated := decodeInto[models.Profile](t, res)
	assert.Equal(t, "Arya", updated.FirstName)
	assert.Equal(t, "arya@example.com", updated.Email, "omitted fields are kept")

	status, _ = fx.do(t, http.MethodPost, path, fx.player, map[string]any{"email": "not an address"})
	assert.Equal(t, http.StatusBadRequest, status)

	_, res = fx.do(t, http.MethodGet, "/user/current", fx.moderator, nil)
	maester := decodeInto[models.Profile](t, res)
	status, _ = fx.do(t, http.MethodPost, "/user/"+maester.ID.String(), fx.player, map[string]any{"last_name": "Nobody"})
	assert.Equal(t, http.StatusForbidden, status)

	status, res = fx.do(t, http.MethodPost, "/user/request_tester", fx.player, nil)
	require.Equal(t, http.StatusOK, status, string(res.Response))
	assert.True(t, decodeInto[models.Profile](t, res).TesterRequested)

	status, res = fx.do(t, http.MethodPost, "/admin/users/arya/role/tester", fx.moderator, nil)
	require.Equal(t, http.StatusOK, status, string(res.Response))
	_, res = fx.do(t, http.MethodGet, "/admin/testers", fx.moderator, nil)
	testers := decodeInto[[]models.Profile](t, res)
	require.Len(t, testers, 1)
	assert.Equal(t, "arya", testers[0].Username)
	assert.False(t, testers[0].TesterRequested, "granting the role settles the request")

	status, res = fx.do(t, http.MethodPost, "/user/request_tester", fx.player, nil)
	assert.Equal(t, http.StatusConflict, status, string(res.Response))

	_, res = fx.do(t, http.MethodGet, "/admin/admins", fx.moderator, nil)
	assert.Empty(t, decodeInto[[]models.Profile](t, res))
	status, _ = fx.do(t, http.MethodGet, "/admin/testers", fx.player, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = fx.do(t, http.MethodPost, "/admin/users/arya/reset_password", fx.player, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, res = fx.do(t, http.MethodPost, "/admin/users/arya/reset_password", fx.moderator, nil)
	require.Equal(t, http.StatusOK, status, string(res.Response))
	reset := decodeInto[accounts.PasswordReset](t, res)
	require.NotEmpty(t, reset.Password)

	status, res = fx.do(t, http.MethodPost, "/user/login", "", loginRequest{Login: "arya", Password: reset.Password})
	assert.Equal(t, http.StatusOK, status, string(res.Response))
}
