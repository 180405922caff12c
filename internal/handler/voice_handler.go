package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/studysync/internal/metrics"
	"github.com/hitoshi/studysync/internal/middleware"
	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/repository"
	"github.com/hitoshi/studysync/internal/sync"
)

// VoiceServiceInterface は音声同期ハンドラーが必要とするサービスインターフェース。
type VoiceServiceInterface interface {
	GetSettings(ctx context.Context, userID string) (*model.VoiceSettings, bool, error)
	UpsertSettings(ctx context.Context, userID string, in *model.VoiceSettingsInput) (*model.VoiceSettings, error)
	ListCommands(ctx context.Context, userID string, f repository.VoiceCommandFilter, page sync.Page) ([]model.VoiceCommand, int, error)
	SaveCommands(ctx context.Context, userID string, inputs []model.VoiceCommandInput) (*sync.Outcome[model.VoiceCommand], error)
	UpdateCommand(ctx context.Context, userID, id string, in *model.VoiceCommandInput) (*model.VoiceCommand, error)
	DeleteCommand(ctx context.Context, userID, id string) (*sync.DeleteResponse, error)
	DeleteCommandsBySession(ctx context.Context, userID, sessionID string) (*sync.DeleteResponse, error)
	DeleteCommandsOlderThan(ctx context.Context, userID string, cutoff time.Time) (*sync.DeleteResponse, error)
}

// VoiceHandler は音声設定・コマンド同期のHTTPハンドラー。
type VoiceHandler struct {
	service VoiceServiceInterface
	metrics metrics.MetricsCollector
}

// NewVoiceHandler はVoiceHandlerを生成する。collectorはnil可。
func NewVoiceHandler(service VoiceServiceInterface, collector metrics.MetricsCollector) *VoiceHandler {
	return &VoiceHandler{
		service: service,
		metrics: collector,
	}
}

// voiceWriteRequest は音声書き込みリクエストのボディ。
type voiceWriteRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// voiceCommandsData は type=commands のdata形式。
type voiceCommandsData struct {
	Commands []voiceCommandPayload `json:"commands"`
}

// Get は設定取得またはコマンド履歴の増分取得を処理する。
// GET /api/sync/voice?type=settings|commands
// 設定が未作成の場合はデフォルトを作成し、sync.created=trueで返す。
func (h *VoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	h.recordRequest(r.Method)

	q := r.URL.Query()

	switch q.Get("type") {
	case "", "settings":
		settings, created, err := h.service.GetSettings(r.Context(), userID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sync.ReadResponse{
			Items:      toVoiceSettingsPayload(settings),
			Pagination: sync.NewPagination(1, sync.Page{Limit: 1}),
			Sync:       sync.Meta{Timestamp: time.Now().UTC(), TotalItems: 1, Created: created},
		})

	case "commands":
		since, err := sync.ParseSince(q.Get("lastSyncedAt"))
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("lastSyncedAtはRFC 3339形式で指定してください"))
			return
		}
		startDate, err := parseDateQuery(q.Get("startDate"))
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("startDateはRFC 3339形式で指定してください"))
			return
		}
		endDate, err := parseDateQuery(q.Get("endDate"))
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("endDateはRFC 3339形式で指定してください"))
			return
		}
		var successful *bool
		if raw := q.Get("successful"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("successfulはtrueまたはfalseを指定してください"))
				return
			}
			successful = &v
		}
		page := sync.NormalizePage(q.Get("limit"), q.Get("offset"))

		commands, total, err := h.service.ListCommands(r.Context(), userID, repository.VoiceCommandFilter{
			SessionID:  q.Get("sessionId"),
			Successful: successful,
			StartDate:  startDate,
			EndDate:    endDate,
			Since:      since,
		}, page)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sync.ReadResponse{
			Items:      toVoiceCommandPayloads(commands),
			Pagination: sync.NewPagination(total, page),
			// totalItemsは今回返したページの件数（フィルタ一致総数はpagination.total）
			Sync: sync.Meta{Timestamp: time.Now().UTC(), TotalItems: len(commands)},
		})

	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("typeはsettingsまたはcommandsを指定してください"))
	}
}

// Post はコマンド履歴のバッチ保存を処理する。
// POST /api/sync/voice
func (h *VoiceHandler) Post(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	h.recordRequest(r.Method)

	var req voiceWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	if req.Type != "commands" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("typeはcommandsを指定してください"))
		return
	}

	var data voiceCommandsData
	if err := json.Unmarshal(req.Data, &data); err != nil {
		writeInvalidBody(w)
		return
	}
	inputs := make([]model.VoiceCommandInput, 0, len(data.Commands))
	for i := range data.Commands {
		inputs = append(inputs, data.Commands[i].toInput())
	}
	h.recordBatchSize(len(inputs))

	outcome, err := h.service.SaveCommands(r.Context(), userID, inputs)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.recordBatchOutcome(len(outcome.Applied), len(outcome.Errors))

	writeJSON(w, http.StatusOK, sync.WriteResponse{
		Created: toVoiceCommandPayloads(outcome.Applied),
		Errors:  outcome.Errors,
		Count:   len(outcome.Applied),
		Sync:    sync.Meta{Timestamp: time.Now().UTC(), TotalItems: len(outcome.Applied)},
	})
}

// Put は設定のupsertまたは既存コマンドの更新を処理する。
// PUT /api/sync/voice
func (h *VoiceHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	h.recordRequest(r.Method)

	var req voiceWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	switch req.Type {
	case "settings":
		var payload voiceSettingsPayload
		if err := json.Unmarshal(req.Data, &payload); err != nil {
			writeInvalidBody(w)
			return
		}
		settings, err := h.service.UpsertSettings(r.Context(), userID, payload.toInput())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sync.WriteResponse{
			Updated: toVoiceSettingsPayload(settings),
			Errors:  []sync.ItemError{},
			Count:   1,
			Sync:    sync.Meta{Timestamp: time.Now().UTC(), TotalItems: 1},
		})

	case "command":
		var payload voiceCommandPayload
		if err := json.Unmarshal(req.Data, &payload); err != nil {
			writeInvalidBody(w)
			return
		}
		if payload.ID == "" {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("idを指定してください"))
			return
		}
		in := payload.toInput()
		command, err := h.service.UpdateCommand(r.Context(), userID, payload.ID, &in)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sync.WriteResponse{
			Updated: toVoiceCommandPayload(command),
			Errors:  []sync.ItemError{},
			Count:   1,
			Sync:    sync.Meta{Timestamp: time.Now().UTC(), TotalItems: 1},
		})

	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("typeはsettingsまたはcommandを指定してください"))
	}
}

// parseOlderThan はolderThanパラメータを削除基準日時に変換する。
// RFC 3339形式の日時、または現在からの日数（整数）を受け付ける。
func parseOlderThan(raw string) (time.Time, error) {
	if cutoff, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return cutoff.UTC(), nil
	}
	days, err := strconv.Atoi(raw)
	if err != nil {
		return time.Time{}, err
	}
	if days <= 0 {
		return time.Time{}, fmt.Errorf("olderThan days must be positive: %d", days)
	}
	return time.Now().UTC().AddDate(0, 0, -days), nil
}

// Delete はコマンド履歴の削除を処理する。ID単体、セッション単位、
// 基準日時指定（executedAtが指定日時より古いもの）のいずれか。
// DELETE /api/sync/voice?type=commands&(id=|sessionId=|olderThan=)
func (h *VoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	h.recordRequest(r.Method)

	q := r.URL.Query()
	if t := q.Get("type"); t != "" && t != "commands" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("typeはcommandsを指定してください"))
		return
	}

	switch {
	case q.Get("id") != "":
		result, err := h.service.DeleteCommand(r.Context(), userID, q.Get("id"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case q.Get("sessionId") != "":
		result, err := h.service.DeleteCommandsBySession(r.Context(), userID, q.Get("sessionId"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case q.Get("olderThan") != "":
		cutoff, err := parseOlderThan(q.Get("olderThan"))
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("olderThanはRFC 3339形式の日時または日数を指定してください"))
			return
		}
		result, err := h.service.DeleteCommandsOlderThan(r.Context(), userID, cutoff)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("id、sessionId、olderThanのいずれかを指定してください"))
	}
}

func (h *VoiceHandler) recordRequest(method string) {
	if h.metrics != nil {
		h.metrics.RecordSyncRequest("voice", method)
	}
}

func (h *VoiceHandler) recordBatchSize(size int) {
	if h.metrics != nil {
		h.metrics.RecordBatchSize("voice", size)
	}
}

func (h *VoiceHandler) recordBatchOutcome(applied, failed int) {
	if h.metrics != nil {
		h.metrics.RecordBatchApplied("voice", applied)
		h.metrics.RecordBatchFailed("voice", failed)
	}
}
