package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/repository"
	"github.com/hitoshi/studysync/internal/sync"
)

// mockScheduleService はScheduleServiceInterfaceのテスト用モック。
type mockScheduleService struct {
	listFn        func(ctx context.Context, userID string, f repository.ScheduleItemFilter, page sync.Page) ([]model.ScheduleItem, int, error)
	createItemsFn func(ctx context.Context, userID string, inputs []model.ScheduleItemInput) (*sync.Outcome[model.ScheduleItem], error)
	updateItemsFn func(ctx context.Context, userID string, inputs []model.ScheduleItemInput) (*sync.Outcome[model.ScheduleItem], error)
	deleteItemFn  func(ctx context.Context, userID, id string) (*sync.DeleteResponse, error)
	deleteItemsFn func(ctx context.Context, userID string, ids []string) (*sync.DeleteResponse, error)
}

func (m *mockScheduleService) List(ctx context.Context, userID string, f repository.ScheduleItemFilter, page sync.Page) ([]model.ScheduleItem, int, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, f, page)
	}
	return []model.ScheduleItem{}, 0, nil
}

func (m *mockScheduleService) CreateItems(ctx context.Context, userID string, inputs []model.ScheduleItemInput) (*sync.Outcome[model.ScheduleItem], error) {
	if m.createItemsFn != nil {
		return m.createItemsFn(ctx, userID, inputs)
	}
	applied := make([]model.ScheduleItem, 0, len(inputs))
	for _, in := range inputs {
		applied = append(applied, model.ScheduleItem{ID: "generated", Title: in.Title})
	}
	return &sync.Outcome[model.ScheduleItem]{Applied: applied, Errors: []sync.ItemError{}}, nil
}

func (m *mockScheduleService) UpdateItems(ctx context.Context, userID string, inputs []model.ScheduleItemInput) (*sync.Outcome[model.ScheduleItem], error) {
	if m.updateItemsFn != nil {
		return m.updateItemsFn(ctx, userID, inputs)
	}
	applied := make([]model.ScheduleItem, 0, len(inputs))
	for _, in := range inputs {
		applied = append(applied, model.ScheduleItem{ID: in.ID, Title: in.Title})
	}
	return &sync.Outcome[model.ScheduleItem]{Applied: applied, Errors: []sync.ItemError{}}, nil
}

func (m *mockScheduleService) DeleteItem(ctx context.Context, userID, id string) (*sync.DeleteResponse, error) {
	if m.deleteItemFn != nil {
		return m.deleteItemFn(ctx, userID, id)
	}
	return &sync.DeleteResponse{Deleted: 1}, nil
}

func (m *mockScheduleService) DeleteItems(ctx context.Context, userID string, ids []string) (*sync.DeleteResponse, error) {
	if m.deleteItemsFn != nil {
		return m.deleteItemsFn(ctx, userID, ids)
	}
	return &sync.DeleteResponse{Deleted: int64(len(ids))}, nil
}

func TestScheduleHandler_Get_PassesFilters(t *testing.T) {
	var gotFilter repository.ScheduleItemFilter
	service := &mockScheduleService{
		listFn: func(ctx context.Context, userID string, f repository.ScheduleItemFilter, page sync.Page) ([]model.ScheduleItem, int, error) {
			gotFilter = f
			return []model.ScheduleItem{}, 0, nil
		},
	}
	h := NewScheduleHandler(service, nil)

	req := authedRequest(http.MethodGet, "/api/sync/schedule?status=pending&priority=high&subject=math", "")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotFilter.Status != "pending" || gotFilter.Priority != "high" || gotFilter.Subject != "math" {
		t.Errorf("filter = %+v", gotFilter)
	}
}

func TestScheduleHandler_Get_InvalidStartDate(t *testing.T) {
	h := NewScheduleHandler(&mockScheduleService{}, nil)

	req := authedRequest(http.MethodGet, "/api/sync/schedule?startDate=tomorrow", "")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestScheduleHandler_Get_InvalidPriority(t *testing.T) {
	// 不正な優先度フィルタはサービス層の検証エラーを400で返す
	service := &mockScheduleService{
		listFn: func(ctx context.Context, userID string, f repository.ScheduleItemFilter, page sync.Page) ([]model.ScheduleItem, int, error) {
			return nil, 0, model.NewValidationError("優先度が不正です")
		},
	}
	h := NewScheduleHandler(service, nil)

	req := authedRequest(http.MethodGet, "/api/sync/schedule?priority=extreme", "")
	rec := httptest.NewRecorder()

	h.Get(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestScheduleHandler_Post_CreatesItems(t *testing.T) {
	var gotInputs []model.ScheduleItemInput
	service := &mockScheduleService{
		createItemsFn: func(ctx context.Context, userID string, inputs []model.ScheduleItemInput) (*sync.Outcome[model.ScheduleItem], error) {
			gotInputs = inputs
			return &sync.Outcome[model.ScheduleItem]{
				Applied: []model.ScheduleItem{{ID: "id-1", Title: "英単語"}},
				Errors:  []sync.ItemError{},
			}, nil
		},
	}
	h := NewScheduleHandler(service, nil)

	body := `{"items":[{"title":"英単語","priority":"high"}]}`
	req := authedRequest(http.MethodPost, "/api/sync/schedule", body)
	rec := httptest.NewRecorder()

	h.Post(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(gotInputs) != 1 || gotInputs[0].Title != "英単語" || gotInputs[0].Priority != "high" {
		t.Errorf("inputs = %+v", gotInputs)
	}

	var resp sync.WriteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestScheduleHandler_Post_PartialFailure(t *testing.T) {
	service := &mockScheduleService{
		createItemsFn: func(ctx context.Context, userID string, inputs []model.ScheduleItemInput) (*sync.Outcome[model.ScheduleItem], error) {
			return &sync.Outcome[model.ScheduleItem]{
				Applied: []model.ScheduleItem{{ID: "id-1"}},
				Errors: []sync.ItemError{
					{Item: inputs[1], Error: "タイトルは必須です"},
				},
			}, nil
		},
	}
	h := NewScheduleHandler(service, nil)

	body := `{"items":[{"title":"物理"},{"title":""}]}`
	req := authedRequest(http.MethodPost, "/api/sync/schedule", body)
	rec := httptest.NewRecorder()

	h.Post(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp sync.WriteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(resp.Errors) != 1 {
		t.Errorf("errors = %d, want 1", len(resp.Errors))
	}
}

func TestScheduleHandler_Put_UpdatesItems(t *testing.T) {
	h := NewScheduleHandler(&mockScheduleService{}, nil)

	body := `{"items":[{"id":"id-1","title":"更新後"}]}`
	req := authedRequest(http.MethodPut, "/api/sync/schedule", body)
	rec := httptest.NewRecorder()

	h.Put(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp sync.WriteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if resp.Updated == nil {
		t.Error("updatedが空")
	}
}

func TestScheduleHandler_Delete_SingleID(t *testing.T) {
	var gotID string
	service := &mockScheduleService{
		deleteItemFn: func(ctx context.Context, userID, id string) (*sync.DeleteResponse, error) {
			gotID = id
			return &sync.DeleteResponse{Deleted: 1}, nil
		},
	}
	h := NewScheduleHandler(service, nil)

	req := authedRequest(http.MethodDelete, "/api/sync/schedule?id=id-1", "")
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotID != "id-1" {
		t.Errorf("id = %q, want %q", gotID, "id-1")
	}
}

func TestScheduleHandler_Delete_MultipleIDs(t *testing.T) {
	var gotIDs []string
	service := &mockScheduleService{
		deleteItemsFn: func(ctx context.Context, userID string, ids []string) (*sync.DeleteResponse, error) {
			gotIDs = ids
			return &sync.DeleteResponse{Deleted: int64(len(ids))}, nil
		},
	}
	h := NewScheduleHandler(service, nil)

	req := authedRequest(http.MethodDelete, "/api/sync/schedule?ids=a,%20b,,c", "")
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	// 空要素と前後の空白は除外される
	if !reflect.DeepEqual(gotIDs, []string{"a", "b", "c"}) {
		t.Errorf("ids = %v, want [a b c]", gotIDs)
	}
}

func TestScheduleHandler_Delete_MissingParams(t *testing.T) {
	h := NewScheduleHandler(&mockScheduleService{}, nil)

	req := authedRequest(http.MethodDelete, "/api/sync/schedule", "")
	rec := httptest.NewRecorder()

	h.Delete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
