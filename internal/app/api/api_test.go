package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"vitstts/db"
	"vitstts/internal/app/api"
	"vitstts/internal/app/audio"
	"vitstts/internal/app/history"
	"vitstts/internal/app/notifications"
	"vitstts/internal/app/processor"
	"vitstts/internal/app/roster"
	"vitstts/internal/app/settings"
	"vitstts/pkg/vits"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const player = `<audio src="file/outputs/1.mp3" controls autoplay></audio>`

var srcRe = regexp.MustCompile(`<audio src="file/([^"]+)"`)

type testEnv struct {
	router   http.Handler
	settings *settings.Store
	db       *db.DB
}

func newTestEnv(t *testing.T, vitsHandler http.HandlerFunc) *testEnv {
	t.Helper()

	vitsSrv := httptest.NewServer(vitsHandler)
	t.Cleanup(vitsSrv.Close)

	historyDB, err := db.New(context.Background(), &db.Config{ConnStr: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = historyDB.Close() })

	store, err := audio.New(&audio.Config{Dir: t.TempDir()}, "mp3")
	require.NoError(t, err)

	params := settings.DefaultParams()
	params.BaseURL = vitsSrv.URL
	s := settings.New(params)

	client := vits.New(vitsSrv.Client(), nil)
	proc := processor.NewProcessor(slog.Default(), s, client, store, roster.NewFetcher(slog.Default(), client))

	a := api.NewAPI(&api.Config{}, slog.Default(), proc, historyDB, notifications.New(), store.Dir(), prometheus.NewRegistry())

	return &testEnv{
		router:   a.NewRouter(),
		settings: s,
		db:       historyDB,
	}
}

func okVits(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/voice/speakers":
		_, _ = w.Write([]byte(`{"VITS":[{"id":1,"name":"nahida","lang":["zh","ja"]},{"id":2,"name":"amber","lang":["en"]}]}`))
	case "/voice/vits":
		_, _ = w.Write([]byte("MP3DATA"))
	default:
		http.NotFound(w, r)
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	return rec
}

func (e *testEnv) form(t *testing.T, target string, values url.Values) *httptest.ResponseRecorder {
	t.Helper()

	return e.do(t, http.MethodPost, target, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
}

func (e *testEnv) postJSON(t *testing.T, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	return e.do(t, http.MethodPost, target, strings.NewReader(string(data)), "application/json")
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())

	return v
}

func sampleHistory() *history.History {
	return &history.History{
		Internal: []history.Turn{{"hi", "Hello!"}, {"bye", "Goodbye."}},
		Visible:  []history.Turn{{"hi", player + "\n\nHello!"}, {"bye", "Goodbye."}},
	}
}

func TestPanelPage(t *testing.T) {
	e := newTestEnv(t, okVits)

	rec := e.do(t, http.MethodGet, "/?chat_id=c1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "1 | nahida | zh/ja")
	assert.Contains(t, body, "2 | amber | en")
	assert.Contains(t, body, `data-chat-id="c1"`)
	assert.Contains(t, body, "Confirm (cannot be undone)")

	// the first roster entry became the selection
	assert.Equal(t, "1 | nahida | zh/ja", e.settings.Snapshot().SelectedVoice)
}

func TestPanelPageServerDown(t *testing.T) {
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	rec := e.do(t, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), roster.DefaultVoice)
}

func TestUpdateSetting(t *testing.T) {
	e := newTestEnv(t, okVits)

	rec := e.form(t, "/settings/autoplay", url.Values{"value": {"true"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, e.settings.Snapshot().Autoplay)

	rec = e.form(t, "/settings/noisew", url.Values{"value": {"0.8"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.8", e.settings.Snapshot().NoiseW)

	rec = e.form(t, "/settings/volume", url.Values{"value": {"11"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.form(t, "/settings/activate", url.Values{"value": {"sometimes"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/settings", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0.8", decode[settings.Params](t, rec).NoiseW)
}

func TestSelectVoiceFromRoster(t *testing.T) {
	e := newTestEnv(t, okVits)

	rec := e.form(t, "/settings/selected_voice", url.Values{"value": {"9 | ghost | en"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEqual(t, "9 | ghost | en", e.settings.Snapshot().SelectedVoice)

	rec = e.form(t, "/settings/selected_voice", url.Values{"value": {"2 | amber | en"}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2 | amber | en", e.settings.Snapshot().SelectedVoice)
}

func TestShowTextTogglesHistory(t *testing.T) {
	e := newTestEnv(t, okVits)

	require.Equal(t, http.StatusOK, e.postJSON(t, "/hooks/history", map[string]any{
		"chat_id": "c1",
		"history": sampleHistory(),
	}).Code)

	rec := e.form(t, "/settings/show_text", url.Values{"value": {"false"}, "chat_id": {"c1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	deautoplayed := strings.Replace(player, "controls autoplay>", "controls>", 1)

	stored, err := e.db.GetHistory(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, deautoplayed, stored.Visible[0][1])
	assert.Equal(t, "Goodbye.", stored.Visible[1][1])

	rec = e.form(t, "/settings/show_text", url.Values{"value": {"true"}, "chat_id": {"c1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err = e.db.GetHistory(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, deautoplayed+"\n\nHello!", stored.Visible[0][1])

	// unknown chat only updates the setting
	rec = e.form(t, "/settings/show_text", url.Values{"value": {"false"}, "chat_id": {"nope"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, e.settings.Snapshot().ShowText)
}

func TestStripFlow(t *testing.T) {
	e := newTestEnv(t, okVits)

	require.Equal(t, http.StatusOK, e.postJSON(t, "/hooks/history", map[string]any{
		"chat_id": "c1",
		"history": sampleHistory(),
	}).Code)

	type controls struct {
		TriggerVisible bool   `json:"trigger_visible"`
		CancelVisible  bool   `json:"cancel_visible"`
		ConfirmVisible bool   `json:"confirm_visible"`
		Token          string `json:"token"`
	}
	type stripResponse struct {
		Controls controls         `json:"controls"`
		History  *history.History `json:"history"`
	}

	// confirm without a request does nothing
	rec := e.form(t, "/chats/c1/strip/confirm", url.Values{})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.form(t, "/chats/c1/strip", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	requested := decode[stripResponse](t, rec)
	assert.False(t, requested.Controls.TriggerVisible)
	assert.True(t, requested.Controls.ConfirmVisible)
	assert.True(t, requested.Controls.CancelVisible)
	require.NotEmpty(t, requested.Controls.Token)

	rec = e.form(t, "/chats/c1/strip/confirm", url.Values{"token": {"wrong"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.form(t, "/chats/c1/strip/confirm", url.Values{"token": {requested.Controls.Token}})
	require.Equal(t, http.StatusOK, rec.Code)
	confirmed := decode[stripResponse](t, rec)
	assert.True(t, confirmed.Controls.TriggerVisible)
	assert.False(t, confirmed.Controls.ConfirmVisible)

	for i := range confirmed.History.Visible {
		assert.Equal(t, confirmed.History.Internal[i][1], confirmed.History.Visible[i][1])
	}

	stored, err := e.db.GetHistory(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "Hello!", stored.Visible[0][1])

	// tokens are single use
	rec = e.form(t, "/chats/c1/strip/confirm", url.Values{"token": {requested.Controls.Token}})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStripCancel(t *testing.T) {
	e := newTestEnv(t, okVits)

	rec := e.form(t, "/chats/c1/strip", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Controls struct {
			Token string `json:"token"`
		} `json:"controls"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = e.form(t, "/chats/c1/strip/cancel", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.form(t, "/chats/c1/strip/confirm", url.Values{"token": {resp.Controls.Token}})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStripUnknownChat(t *testing.T) {
	e := newTestEnv(t, okVits)

	var resp struct {
		Controls struct {
			Token string `json:"token"`
		} `json:"controls"`
	}
	rec := e.form(t, "/chats/missing/strip", url.Values{})
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = e.form(t, "/chats/missing/strip/confirm", url.Values{"token": {resp.Controls.Token}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/chats/missing/history", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshVoices(t *testing.T) {
	e := newTestEnv(t, okVits)
	require.NoError(t, e.settings.Update(settings.KeySelectedVoice, "2 | amber | en"))

	rec := e.do(t, http.MethodPost, "/voices/refresh", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[map[string]any](t, rec)
	assert.Equal(t, "1 | nahida | zh/ja", resp["selected"])
	assert.Equal(t, false, resp["degraded"])
	assert.Len(t, resp["voices"], 2)
}

func TestHooks(t *testing.T) {
	e := newTestEnv(t, okVits)
	require.NoError(t, e.settings.Update(settings.KeyActivate, true))

	rec := e.postJSON(t, "/hooks/state", processor.State{Stream: true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[processor.State](t, rec).Stream)

	rec = e.postJSON(t, "/hooks/input", map[string]string{"text": "hey"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, processor.WaitingMessage, decode[processor.InputResult](t, rec).ProcessingMessage)

	rec = e.postJSON(t, "/hooks/history", map[string]any{"history": sampleHistory()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "autoplay")

	rec = e.do(t, http.MethodGet, "/hooks/ui", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[processor.Panel](t, rec).Voices, 2)

	rec = e.do(t, http.MethodPost, "/hooks/state", strings.NewReader(""), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOutputHookServesAudio(t *testing.T) {
	e := newTestEnv(t, okVits)
	require.NoError(t, e.settings.Update(settings.KeyActivate, true))

	rec := e.postJSON(t, "/hooks/output", map[string]string{"text": "Hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[map[string]string](t, rec)["text"]
	m := srcRe.FindStringSubmatch(out)
	require.Len(t, m, 2)

	rec = e.do(t, http.MethodGet, "/file/"+m[1], nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MP3DATA", rec.Body.String())

	rec = e.do(t, http.MethodGet, "/file/etc/passwd", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOutputHookFailure(t *testing.T) {
	e := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	require.NoError(t, e.settings.Update(settings.KeyActivate, true))

	rec := e.postJSON(t, "/hooks/output", map[string]string{"text": "Hello"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestMetrics(t *testing.T) {
	e := newTestEnv(t, okVits)

	rec := e.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebsocketEvents(t *testing.T) {
	e := newTestEnv(t, okVits)

	srv := httptest.NewServer(e.router)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?chat_id=c1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	readEvent := func() *notifications.Event {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

		event := &notifications.Event{}
		require.NoError(t, conn.ReadJSON(event))

		return event
	}

	assert.Equal(t, notifications.EventSettings, readEvent().Type)

	resp, err := http.PostForm(srv.URL+"/chats/c1/strip", url.Values{})
	require.NoError(t, err)
	resp.Body.Close()

	event := readEvent()
	assert.Equal(t, notifications.EventStrip, event.Type)
	assert.Equal(t, "c1", event.ChatID)
	assert.NotContains(t, event.Controls, "token")
}
