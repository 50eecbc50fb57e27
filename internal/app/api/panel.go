package api

import (
	"errors"
	"net/http"
	"slices"

	"vitstts/db"
	"vitstts/internal/app/history"
	"vitstts/internal/app/notifications"
	"vitstts/internal/app/settings"

	"github.com/dchest/uniuri"
	"github.com/go-chi/chi/v5"
)

type panelPage struct {
	ChatID string

	Params         settings.Params
	Voices         []string
	VoicesDegraded bool
}

func (api *API) panelPage(w http.ResponseWriter, r *http.Request) {
	panel := api.ext.UI(r.Context())

	page := createPage(r)
	page.Content = getHtml("panel.html", &panelPage{
		ChatID:         r.URL.Query().Get("chat_id"),
		Params:         panel.Params,
		Voices:         panel.Voices,
		VoicesDegraded: panel.VoicesDegraded,
	})

	submitPage(w, page)
}

func (api *API) getSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, api.ext.Settings().Snapshot())
}

func (api *API) updateSetting(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	value := r.FormValue("value")

	logger := api.logger.With("key", key)

	// the selector only offers roster entries, keep direct calls to the same contract
	if key == settings.KeySelectedVoice && !slices.Contains(api.ext.UI(r.Context()).Voices, value) {
		respondError(w, http.StatusBadRequest, "voice is not in the current roster: "+value)
		return
	}

	if err := api.ext.Settings().Update(key, value); err != nil {
		if errors.Is(err, settings.ErrUnknownKey) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}

		respondError(w, http.StatusBadRequest, err.Error())

		return
	}

	params := api.ext.Settings().Snapshot()

	logger.Info("setting updated", "value", value)

	api.notifications.Notify(&notifications.Event{
		Type:     notifications.EventSettings,
		Settings: params,
	})

	if chatID := r.FormValue("chat_id"); key == settings.KeyShowText && chatID != "" {
		h, err := api.rewriteHistory(r, chatID, func(h *history.History) *history.History {
			return history.ToggleText(h, params.ShowText)
		})
		if err != nil && db.ErrCode(err) != db.ErrCodeNoRows {
			logger.Error("failed to toggle text in history", "chat_id", chatID, "err", err)
			respondError(w, http.StatusInternalServerError, "failed to toggle text in history: "+err.Error())

			return
		}

		if h != nil {
			respondJSON(w, http.StatusOK, &settingsResponse{Settings: params, History: h})
			return
		}
	}

	respondJSON(w, http.StatusOK, &settingsResponse{Settings: params})
}

type settingsResponse struct {
	Settings settings.Params  `json:"settings"`
	History  *history.History `json:"history,omitempty"`
}

type voicesResponse struct {
	Voices   []string `json:"voices"`
	Selected string   `json:"selected"`
	Degraded bool     `json:"degraded"`
	Error    string   `json:"error,omitempty"`
}

func (api *API) refreshVoices(w http.ResponseWriter, r *http.Request) {
	res := api.ext.RefreshVoices(r.Context())

	resp := &voicesResponse{
		Voices:   res.Voices,
		Selected: api.ext.Settings().Snapshot().SelectedVoice,
		Degraded: res.Degraded,
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}

	api.notifications.Notify(&notifications.Event{
		Type:   notifications.EventVoices,
		Voices: res.Voices,
	})

	respondJSON(w, http.StatusOK, resp)
}

func (api *API) getHistory(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chat_id")

	h, err := api.history.GetHistory(r.Context(), chatID)
	if err != nil {
		if db.ErrCode(err) == db.ErrCodeNoRows {
			respondError(w, http.StatusNotFound, "history not found")
			return
		}

		api.logger.Error("failed to get history", "chat_id", chatID, "err", err)
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	respondJSON(w, http.StatusOK, h)
}

// rewriteHistory loads, transforms, persists and redraws a chat history.
func (api *API) rewriteHistory(r *http.Request, chatID string, transform func(*history.History) *history.History) (*history.History, error) {
	h, err := api.history.GetHistory(r.Context(), chatID)
	if err != nil {
		return nil, err
	}

	h = transform(h)

	if err := api.history.SaveHistory(r.Context(), chatID, h); err != nil {
		return nil, err
	}

	api.notifications.Notify(&notifications.Event{
		Type:    notifications.EventRedraw,
		ChatID:  chatID,
		History: h,
	})

	return h, nil
}

// stripControls is the visibility of the two-step "replace audios with text" controls.
type stripControls struct {
	TriggerVisible bool   `json:"trigger_visible"`
	CancelVisible  bool   `json:"cancel_visible"`
	ConfirmVisible bool   `json:"confirm_visible"`
	Token          string `json:"token,omitempty"`
}

var idleStripControls = stripControls{TriggerVisible: true}

type stripResponse struct {
	Controls stripControls    `json:"controls"`
	History  *history.History `json:"history,omitempty"`
}

func (api *API) stripRequest(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chat_id")
	token := uniuri.New()

	api.stripLock.Lock()
	api.pendingStrips[chatID] = token
	api.stripLock.Unlock()

	controls := stripControls{
		CancelVisible:  true,
		ConfirmVisible: true,
	}

	api.notifications.Notify(&notifications.Event{
		Type:     notifications.EventStrip,
		ChatID:   chatID,
		Controls: controls,
	})

	controls.Token = token
	respondJSON(w, http.StatusOK, &stripResponse{Controls: controls})
}

func (api *API) takeStripToken(chatID, token string) bool {
	api.stripLock.Lock()
	defer api.stripLock.Unlock()

	pending, ok := api.pendingStrips[chatID]
	if !ok || token == "" || pending != token {
		return false
	}

	delete(api.pendingStrips, chatID)

	return true
}

func (api *API) stripConfirm(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chat_id")

	if !api.takeStripToken(chatID, r.FormValue("token")) {
		respondError(w, http.StatusConflict, "no pending confirmation for this chat")
		return
	}

	api.notifications.Notify(&notifications.Event{
		Type:     notifications.EventStrip,
		ChatID:   chatID,
		Controls: idleStripControls,
	})

	h, err := api.rewriteHistory(r, chatID, history.StripAudio)
	if err != nil {
		if db.ErrCode(err) == db.ErrCodeNoRows {
			respondError(w, http.StatusNotFound, "history not found")
			return
		}

		api.logger.Error("failed to strip audio from history", "chat_id", chatID, "err", err)
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	api.logger.Info("audio permanently replaced with text", "chat_id", chatID, "turns", h.Len())

	respondJSON(w, http.StatusOK, &stripResponse{Controls: idleStripControls, History: h})
}

func (api *API) stripCancel(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chat_id")

	api.stripLock.Lock()
	delete(api.pendingStrips, chatID)
	api.stripLock.Unlock()

	api.notifications.Notify(&notifications.Event{
		Type:     notifications.EventStrip,
		ChatID:   chatID,
		Controls: idleStripControls,
	})

	respondJSON(w, http.StatusOK, &stripResponse{Controls: idleStripControls})
}
