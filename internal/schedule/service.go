// Package schedule はスケジュール項目同期のドメインロジックを提供する。
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/studysync/internal/model"
	"github.com/hitoshi/studysync/internal/repository"
	"github.com/hitoshi/studysync/internal/sync"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	maxSubjectLength     = 100
	minDurationMinutes   = 1
	maxDurationMinutes   = 1440
)

// validPriorities は許可される優先度の集合。
var validPriorities = map[string]bool{
	model.PriorityLow:    true,
	model.PriorityMedium: true,
	model.PriorityHigh:   true,
	model.PriorityUrgent: true,
}

// validStatuses は許可される状態の集合。
var validStatuses = map[string]bool{
	model.StatusPending:    true,
	model.StatusInProgress: true,
	model.StatusCompleted:  true,
	model.StatusCancelled:  true,
}

// Service はスケジュール同期のサービス層。
type Service struct {
	repo repository.ScheduleItemRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.ScheduleItemRepository) *Service {
	return &Service{repo: repo}
}

// List は取得条件に一致する項目一覧とフィルタ一致総数を返す。
func (s *Service) List(ctx context.Context, userID string, f repository.ScheduleItemFilter, page sync.Page) ([]model.ScheduleItem, int, error) {
	if f.Priority != "" && !validPriorities[f.Priority] {
		return nil, 0, model.NewValidationError(fmt.Sprintf("不正なpriority: %s", f.Priority))
	}
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, model.NewValidationError(fmt.Sprintf("不正なstatus: %s", f.Status))
	}

	items, err := s.repo.List(ctx, userID, f, page)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, userID, f)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// validateItemInput は項目入力を検証し、デフォルトを補う。
func validateItemInput(in *model.ScheduleItemInput) error {
	if in.Title == "" {
		return model.NewValidationError("titleは必須です")
	}
	if len(in.Title) > maxTitleLength {
		return model.NewValidationError(fmt.Sprintf("titleは%d文字以内で指定してください", maxTitleLength))
	}
	if len(in.Description) > maxDescriptionLength {
		return model.NewValidationError(fmt.Sprintf("descriptionは%d文字以内で指定してください", maxDescriptionLength))
	}
	if len(in.Subject) > maxSubjectLength {
		return model.NewValidationError(fmt.Sprintf("subjectは%d文字以内で指定してください", maxSubjectLength))
	}
	if in.Duration != nil && (*in.Duration < minDurationMinutes || *in.Duration > maxDurationMinutes) {
		return model.NewValidationError(fmt.Sprintf("durationは%d〜%d分の範囲で指定してください", minDurationMinutes, maxDurationMinutes))
	}
	if in.Priority == "" {
		in.Priority = model.PriorityMedium
	} else if !validPriorities[in.Priority] {
		return model.NewValidationError(fmt.Sprintf("不正なpriority: %s", in.Priority))
	}
	if in.Status == "" {
		in.Status = model.StatusPending
	} else if !validStatuses[in.Status] {
		return model.NewValidationError(fmt.Sprintf("不正なstatus: %s", in.Status))
	}
	return nil
}

// buildItem は検証済み入力から永続化用の項目を組み立てる。
func buildItem(userID, id string, in model.ScheduleItemInput, now time.Time) *model.ScheduleItem {
	return &model.ScheduleItem{
		ID:           id,
		UserID:       userID,
		Title:        in.Title,
		Description:  in.Description,
		Subject:      in.Subject,
		DueDate:      in.DueDate,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		Duration:     in.Duration,
		Priority:     in.Priority,
		Status:       in.Status,
		Tags:         in.Tags,
		Reminder:     in.Reminder,
		Recurrence:   in.Recurrence,
		CompletedAt:  in.CompletedAt,
		LastSyncedAt: now,
		UpdatedAt:    now,
	}
}

// CreateItems は新規項目をバッチ作成する。IDはサーバー側で採番し、
// 項目ごとに独立して処理する。
func (s *Service) CreateItems(ctx context.Context, userID string, inputs []model.ScheduleItemInput) (*sync.Outcome[model.ScheduleItem], error) {
	if len(inputs) > sync.MaxBatchSize {
		return nil, model.NewBatchTooLargeError(sync.MaxBatchSize)
	}

	outcome := sync.Run(inputs, func(in model.ScheduleItemInput) (model.ScheduleItem, error) {
		if err := validateItemInput(&in); err != nil {
			return model.ScheduleItem{}, err
		}

		now := time.Now().UTC()
		item := buildItem(userID, uuid.NewString(), in, now)
		item.CreatedAt = now
		if err := s.repo.Create(ctx, item); err != nil {
			return model.ScheduleItem{}, err
		}
		return *item, nil
	})

	return &outcome, nil
}

// UpdateItems は既存項目をバッチ更新する。各項目はlast-write-winsの
// 全フィールド上書きで、未検出の項目だけが個別に失敗する。
func (s *Service) UpdateItems(ctx context.Context, userID string, inputs []model.ScheduleItemInput) (*sync.Outcome[model.ScheduleItem], error) {
	if len(inputs) > sync.MaxBatchSize {
		return nil, model.NewBatchTooLargeError(sync.MaxBatchSize)
	}

	outcome := sync.Run(inputs, func(in model.ScheduleItemInput) (model.ScheduleItem, error) {
		if in.ID == "" {
			return model.ScheduleItem{}, model.NewValidationError("idは必須です")
		}
		if err := validateItemInput(&in); err != nil {
			return model.ScheduleItem{}, err
		}

		now := time.Now().UTC()
		item := buildItem(userID, in.ID, in, now)
		// クライアントにはDBの行をそのまま返す（created_atはサーバー管理）
		saved, err := s.repo.Update(ctx, item)
		if err != nil {
			return model.ScheduleItem{}, err
		}
		if saved == nil {
			return model.ScheduleItem{}, model.NewScheduleItemNotFoundError(in.ID)
		}
		return *saved, nil
	})

	return &outcome, nil
}

// DeleteItem は単一項目を削除し、削除件数を返す。0件でもエラーにはしない。
func (s *Service) DeleteItem(ctx context.Context, userID, id string) (*sync.DeleteResponse, error) {
	deleted, err := s.repo.DeleteByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return &sync.DeleteResponse{Deleted: deleted}, nil
}

// DeleteItems は複数項目を一括削除し、削除件数を返す。
func (s *Service) DeleteItems(ctx context.Context, userID string, ids []string) (*sync.DeleteResponse, error) {
	if len(ids) == 0 {
		return nil, model.NewInvalidRequestError("idまたはidsを指定してください")
	}
	if len(ids) > sync.MaxBatchSize {
		return nil, model.NewBatchTooLargeError(sync.MaxBatchSize)
	}

	deleted, err := s.repo.DeleteByIDs(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	return &sync.DeleteResponse{Deleted: deleted}, nil
}
