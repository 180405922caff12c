package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/studysync/internal/metrics"
	"github.com/hitoshi/studysync/internal/middleware"
	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/repository"
	"github.com/hitoshi/studysync/internal/sync"
)

// ChatServiceInterface はチャット同期ハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	ListSessions(ctx context.Context, userID string, f repository.ChatSessionFilter, page sync.Page) ([]model.ChatSession, int, error)
	ListMessages(ctx context.Context, userID string, f repository.ChatMessageFilter, page sync.Page) ([]model.ChatMessage, int, error)
	UpsertSession(ctx context.Context, userID string, in *model.ChatSessionInput) (*model.ChatSession, error)
	UpdateSession(ctx context.Context, userID string, in *model.ChatSessionInput) (*model.ChatSession, error)
	SaveMessages(ctx context.Context, userID, sessionID string, inputs []model.ChatMessageInput) (*sync.Outcome[model.ChatMessage], error)
	UpdateMessage(ctx context.Context, userID string, in *model.ChatMessageInput) (*model.ChatMessage, error)
	DeleteSession(ctx context.Context, userID, sessionID string) (*sync.SessionDeleteResponse, error)
	DeleteMessage(ctx context.Context, userID, messageID string) (*sync.DeleteResponse, error)
}

// ChatHandler はチャット同期のHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
	metrics metrics.MetricsCollector
}

// NewChatHandler はChatHandlerを生成する。collectorはnil可。
func NewChatHandler(service ChatServiceInterface, collector metrics.MetricsCollector) *ChatHandler {
	return &ChatHandler{
		service: service,
		metrics: collector,
	}
}

// chatWriteRequest はチャット書き込みリクエストのボディ。
// typeに応じてdataの形式が変わるため、dataは遅延デコードする。
type chatWriteRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// chatMessagesData は type=messages のdata形式。
type chatMessagesData struct {
	SessionID string               `json:"sessionId"`
	Messages  []chatMessagePayload `json:"messages"`
}

// Get は増分取得を処理する。
// GET /api/sync/chat?type=sessions|messages
func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	h.recordRequest(r.Method)

	q := r.URL.Query()
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
	page := sync.NormalizePage(q.Get("limit"), q.Get("offset"))

	switch q.Get("type") {
	case "", "sessions":
		sessions, total, err := h.service.ListSessions(r.Context(), userID, repository.ChatSessionFilter{
			Subject:   q.Get("subject"),
			StartDate: startDate,
			EndDate:   endDate,
			Since:     since,
		}, page)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sync.ReadResponse{
			Items:      toChatSessionPayloads(sessions),
			Pagination: sync.NewPagination(total, page),
			// totalItemsは今回返したページの件数（フィルタ一致総数はpagination.total）
			Sync: sync.Meta{Timestamp: time.Now().UTC(), TotalItems: len(sessions)},
		})

	case "messages":
		messages, total, err := h.service.ListMessages(r.Context(), userID, repository.ChatMessageFilter{
			SessionID: q.Get("sessionId"),
			Since:     since,
		}, page)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sync.ReadResponse{
			Items:      toChatMessagePayloads(messages),
			Pagination: sync.NewPagination(total, page),
			Sync:       sync.Meta{Timestamp: time.Now().UTC(), TotalItems: len(messages)},
		})

	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("typeはsessionsまたはmessagesを指定してください"))
	}
}

// Post はセッションのupsertまたはメッセージのバッチ保存を処理する。
// POST /api/sync/chat
func (h *ChatHandler) Post(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	h.recordRequest(r.Method)

	var req chatWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	switch req.Type {
	case "session":
		var payload chatSessionPayload
		if err := json.Unmarshal(req.Data, &payload); err != nil {
			writeInvalidBody(w)
			return
		}
		session, err := h.service.UpsertSession(r.Context(), userID, payload.toInput())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sync.WriteResponse{
			Created: toChatSessionPayload(session),
			Errors:  []sync.ItemError{},
			Count:   1,
			Sync:    sync.Meta{Timestamp: time.Now().UTC(), TotalItems: 1},
		})

	case "messages":
		var data chatMessagesData
		if err := json.Unmarshal(req.Data, &data); err != nil {
			writeInvalidBody(w)
			return
		}
		inputs := make([]model.ChatMessageInput, 0, len(data.Messages))
		for i := range data.Messages {
			inputs = append(inputs, data.Messages[i].toInput())
		}
		h.recordBatchSize(len(inputs))

		outcome, err := h.service.SaveMessages(r.Context(), userID, data.SessionID, inputs)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		h.recordBatchOutcome(len(outcome.Applied), len(outcome.Errors))
		writeJSON(w, http.StatusOK, sync.WriteResponse{
			Created: toChatMessagePayloads(outcome.Applied),
			Errors:  outcome.Errors,
			Count:   len(outcome.Applied),
			Sync:    sync.Meta{Timestamp: time.Now().UTC(), TotalItems: len(outcome.Applied)},
		})

	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("typeはsessionまたはmessagesを指定してください"))
	}
}

// Put は既存セッション・メッセージの更新を処理する。存在しない場合は404。
// PUT /api/sync/chat
func (h *ChatHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	h.recordRequest(r.Method)

	var req chatWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return
	}

	switch req.Type {
	case "session":
		var payload chatSessionPayload
		if err := json.Unmarshal(req.Data, &payload); err != nil {
			writeInvalidBody(w)
			return
		}
		session, err := h.service.UpdateSession(r.Context(), userID, payload.toInput())
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sync.WriteResponse{
			Updated: toChatSessionPayload(session),
			Errors:  []sync.ItemError{},
			Count:   1,
			Sync:    sync.Meta{Timestamp: time.Now().UTC(), TotalItems: 1},
		})

	case "message":
		var payload chatMessagePayload
		if err := json.Unmarshal(req.Data, &payload); err != nil {
			writeInvalidBody(w)
			return
		}
		in := payload.toInput()
		message, err := h.service.UpdateMessage(r.Context(), userID, &in)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sync.WriteResponse{
			Updated: toChatMessagePayload(message),
			Errors:  []sync.ItemError{},
			Count:   1,
			Sync:    sync.Meta{Timestamp: time.Now().UTC(), TotalItems: 1},
		})

	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("typeはsessionまたはmessageを指定してください"))
	}
}

// Delete はセッション（配下メッセージ含む）またはメッセージ単体の削除を処理する。
// DELETE /api/sync/chat?sessionId= | ?messageId=
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	h.recordRequest(r.Method)

	q := r.URL.Query()
	sessionID := q.Get("sessionId")
	messageID := q.Get("messageId")

	switch {
	case sessionID != "":
		result, err := h.service.DeleteSession(r.Context(), userID, sessionID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case messageID != "":
		result, err := h.service.DeleteMessage(r.Context(), userID, messageID)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("sessionIdまたはmessageIdを指定してください"))
	}
}

func (h *ChatHandler) recordRequest(method string) {
	if h.metrics != nil {
		h.metrics.RecordSyncRequest("chat", method)
	}
}

func (h *ChatHandler) recordBatchSize(size int) {
	if h.metrics != nil {
		h.metrics.RecordBatchSize("chat", size)
	}
}

func (h *ChatHandler) recordBatchOutcome(applied, failed int) {
	if h.metrics != nil {
		h.metrics.RecordBatchApplied("chat", applied)
		h.metrics.RecordBatchFailed("chat", failed)
	}
}
