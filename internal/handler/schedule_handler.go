package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/studysync/internal/metrics"
	"github.com/hitoshi/studysync/internal/middleware"
	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/repository"
	"github.com/hitoshi/studysync/internal/sync"
)

// ScheduleServiceInterface はスケジュール同期ハンドラーが必要とするサービスインターフェース。
type ScheduleServiceInterface interface {
	List(ctx context.Context, userID string, f repository.ScheduleItemFilter, page sync.Page) ([]model.ScheduleItem, int, error)
	CreateItems(ctx context.Context, userID string, inputs []model.ScheduleItemInput) (*sync.Outcome[model.ScheduleItem], error)
	UpdateItems(ctx context.Context, userID string, inputs []model.ScheduleItemInput) (*sync.Outcome[model.ScheduleItem], error)
	DeleteItem(ctx context.Context, userID, id string) (*sync.DeleteResponse, error)
	DeleteItems(ctx context.Context, userID string, ids []string) (*sync.DeleteResponse, error)
}

// ScheduleHandler はスケジュール同期のHTTPハンドラー。
type ScheduleHandler struct {
	service ScheduleServiceInterface
	metrics metrics.MetricsCollector
}

// NewScheduleHandler はScheduleHandlerを生成する。collectorはnil可。
func NewScheduleHandler(service ScheduleServiceInterface, collector metrics.MetricsCollector) *ScheduleHandler {
	return &ScheduleHandler{
		service: service,
		metrics: collector,
	}
}

// scheduleItemsRequest はスケジュール書き込みリクエストのボディ。
type scheduleItemsRequest struct {
	Items []scheduleItemPayload `json:"items"`
}

// Get は増分取得を処理する。
// GET /api/sync/schedule
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	items, total, err := h.service.List(r.Context(), userID, repository.ScheduleItemFilter{
		Status:    q.Get("status"),
		Priority:  q.Get("priority"),
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
		Items:      toScheduleItemPayloads(items),
		Pagination: sync.NewPagination(total, page),
		// totalItemsは今回返したページの件数（フィルタ一致総数はpagination.total）
		Sync: sync.Meta{Timestamp: time.Now().UTC(), TotalItems: len(items)},
	})
}

// Post は項目のバッチ作成を処理する。IDはサーバーが採番する。
// POST /api/sync/schedule
func (h *ScheduleHandler) Post(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	h.recordRequest(r.Method)

	inputs, ok := h.decodeItems(w, r)
	if !ok {
		return
	}
	h.recordBatchSize(len(inputs))

	outcome, err := h.service.CreateItems(r.Context(), userID, inputs)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.recordBatchOutcome(len(outcome.Applied), len(outcome.Errors))

	writeJSON(w, http.StatusOK, sync.WriteResponse{
		Created: toScheduleItemPayloads(outcome.Applied),
		Errors:  outcome.Errors,
		Count:   len(outcome.Applied),
		Sync:    sync.Meta{Timestamp: time.Now().UTC(), TotalItems: len(outcome.Applied)},
	})
}

// Put は既存項目のバッチ更新を処理する。各項目はidを必須とする。
// PUT /api/sync/schedule
func (h *ScheduleHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	h.recordRequest(r.Method)

	inputs, ok := h.decodeItems(w, r)
	if !ok {
		return
	}
	h.recordBatchSize(len(inputs))

	outcome, err := h.service.UpdateItems(r.Context(), userID, inputs)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.recordBatchOutcome(len(outcome.Applied), len(outcome.Errors))

	writeJSON(w, http.StatusOK, sync.WriteResponse{
		Updated: toScheduleItemPayloads(outcome.Applied),
		Errors:  outcome.Errors,
		Count:   len(outcome.Applied),
		Sync:    sync.Meta{Timestamp: time.Now().UTC(), TotalItems: len(outcome.Applied)},
	})
}

// Delete は単一または複数の項目削除を処理する。存在しないIDは黙って無視する。
// DELETE /api/sync/schedule?id= | ?ids=a,b,c
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}
	h.recordRequest(r.Method)

	q := r.URL.Query()
	id := q.Get("id")
	idsParam := q.Get("ids")

	switch {
	case id != "":
		result, err := h.service.DeleteItem(r.Context(), userID, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case idsParam != "":
		ids := splitIDs(idsParam)
		result, err := h.service.DeleteItems(r.Context(), userID, ids)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	default:
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("idまたはidsを指定してください"))
	}
}

// decodeItems はリクエストボディからアイテム配列を取り出す。
// 失敗時はエラーレスポンスを書き込みfalseを返す。
func (h *ScheduleHandler) decodeItems(w http.ResponseWriter, r *http.Request) ([]model.ScheduleItemInput, bool) {
	var req scheduleItemsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBody(w)
		return nil, false
	}

	inputs := make([]model.ScheduleItemInput, 0, len(req.Items))
	for i := range req.Items {
		inputs = append(inputs, req.Items[i].toInput())
	}
	return inputs, true
}

// splitIDs はカンマ区切りのIDリストを分割する。空要素は除外する。
func splitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

func (h *ScheduleHandler) recordRequest(method string) {
	if h.metrics != nil {
		h.metrics.RecordSyncRequest("schedule", method)
	}
}

func (h *ScheduleHandler) recordBatchSize(size int) {
	if h.metrics != nil {
		h.metrics.RecordBatchSize("schedule", size)
	}
}

func (h *ScheduleHandler) recordBatchOutcome(applied, failed int) {
	if h.metrics != nil {
		h.metrics.RecordBatchApplied("schedule", applied)
		h.metrics.RecordBatchFailed("schedule", failed)
	}
}
