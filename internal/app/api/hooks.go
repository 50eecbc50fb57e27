package api

import (
	"net/http"

	"vitstts/internal/app/history"
	"vitstts/internal/app/processor"
)

func (api *API) uiHook(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, api.ext.UI(r.Context()))
}

func (api *API) stateHook(w http.ResponseWriter, r *http.Request) {
	var state processor.State
	if err := decodeJSON(r, &state); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, api.ext.StateModifier(state))
}

type textRequest struct {
	Text string `json:"text"`
}

func (api *API) inputHook(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, api.ext.InputModifier(req.Text))
}

type historyRequest struct {
	ChatID  string           `json:"chat_id"`
	History *history.History `json:"history"`
}

// historyHook runs before every render. The host copy is kept so panel operations can
// rewrite it later.
func (api *API) historyHook(w http.ResponseWriter, r *http.Request) {
	var req historyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.History == nil {
		req.History = &history.History{}
	}

	h := api.ext.HistoryModifier(req.History)

	if req.ChatID != "" {
		if err := api.history.SaveHistory(r.Context(), req.ChatID, h); err != nil {
			api.logger.Error("failed to save history", "chat_id", req.ChatID, "err", err)
			respondError(w, http.StatusInternalServerError, err.Error())

			return
		}
	}

	respondJSON(w, http.StatusOK, h)
}

func (api *API) outputHook(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := api.ext.OutputModifier(r.Context(), req.Text)
	if err != nil {
		api.logger.Error("failed to convert reply to speech", "err", err)
		respondError(w, http.StatusBadGateway, err.Error())

		return
	}

	respondJSON(w, http.StatusOK, &textRequest{Text: out})
}
