package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fitclub/backend/internal/model"
	pkgerrors "fitclub/backend/pkg/errors"
)

// TrainingRepository 训练课时数据访问接口
type TrainingRepository interface {
	TryCreate(ctx context.Context, training *model.Training) (WriteOutcome, error)
	TryUpdate(ctx context.Context, training *model.Training) (WriteOutcome, error)
	GetByID(ctx context.Context, id string) (*model.Training, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Training, error)
	// ExistsAt 检查 (date, start) 是否已被占用；excludeID 非空时排除该训练自身
	ExistsAt(ctx context.Context, date time.Time, start string, excludeID string) (bool, error)
	ListByDateRange(ctx context.Context, from, to time.Time) ([]model.Training, error)
	// ListForMember 返回 userID 开设或已报名、且日期在 [from, to] 内的训练
	ListForMember(ctx context.Context, userID string, from, to time.Time) ([]model.Training, error)
	ListStartingAt(ctx context.Context, date time.Time, start string) ([]model.Training, error)
	Delete(ctx context.Context, id string) error
}

// trainingRepo TrainingRepository 的 GORM 实现
type trainingRepo struct {
	db *gorm.DB
}

// NewTrainingRepo 创建 TrainingRepository 实例
func NewTrainingRepo(db *gorm.DB) TrainingRepository {
	return &trainingRepo{db: db}
}

// ────── Create / Update ──────

func (r *trainingRepo) TryCreate(ctx context.Context, training *model.Training) (WriteOutcome, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(training)
	if result.Error != nil {
		if pkgerrors.IsUniqueViolation(result.Error) {
			return WriteConflict, nil
		}
		return WriteApplied, result.Error
	}
	if result.RowsAffected == 0 {
		return WriteConflict, nil
	}
	return WriteApplied, nil
}

// TryUpdate 整行写回 training 的可编辑字段；调用方应在同一事务内先以 GetByIDForUpdate 读取
func (r *trainingRepo) TryUpdate(ctx context.Context, training *model.Training) (WriteOutcome, error) {
	// 嵌套事务以 SAVEPOINT 执行，唯一冲突不会污染外层事务
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(&model.Training{}).
			Where("training_id = ?", training.TrainingID).
			Updates(map[string]interface{}{
				"title":        training.Title,
				"description":  training.Description,
				"date":         training.Date,
				"start_time":   training.StartTime,
				"end_time":     training.EndTime,
				"meeting_link": training.MeetingLink,
				"capacity":     training.Capacity,
				"is_public":    training.IsPublic,
				"updated_by":   training.UpdatedBy,
				"updated_at":   training.UpdatedAt,
			}).Error
	})
	if err != nil {
		if pkgerrors.IsUniqueViolation(err) {
			return WriteConflict, nil
		}
		return WriteApplied, err
	}
	return WriteApplied, nil
}

// ────── Query ──────

func (r *trainingRepo) GetByID(ctx context.Context, id string) (*model.Training, error) {
	var training model.Training
	err := r.db.WithContext(ctx).
		Preload("Trainer").
		Where("training_id = ?", id).
		First(&training).Error
	if err != nil {
		return nil, err
	}
	return &training, nil
}

func (r *trainingRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Training, error) {
	var training model.Training
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("training_id = ?", id).
		First(&training).Error
	if err != nil {
		return nil, err
	}
	return &training, nil
}

func (r *trainingRepo) ExistsAt(ctx context.Context, date time.Time, start string, excludeID string) (bool, error) {
	var count int64
	db := r.db.WithContext(ctx).Model(&model.Training{}).
		Where("date = ? AND start_time = ?", datatypes.Date(date), start)
	if excludeID != "" {
		db = db.Where("training_id <> ?", excludeID)
	}
	if err := db.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *trainingRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]model.Training, error) {
	var trainings []model.Training
	err := r.db.WithContext(ctx).
		Preload("Trainer").
		Where("date BETWEEN ? AND ?", datatypes.Date(from), datatypes.Date(to)).
		Order("date ASC, start_time ASC").
		Find(&trainings).Error
	return trainings, err
}

func (r *trainingRepo) ListForMember(ctx context.Context, userID string, from, to time.Time) ([]model.Training, error) {
	var trainings []model.Training
	joined := r.db.Model(&model.TrainingSignup{}).Select("training_id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Preload("Trainer").
		Where("date BETWEEN ? AND ?", datatypes.Date(from), datatypes.Date(to)).
		Where(r.db.Where("trainer_id = ?", userID).Or("training_id IN (?)", joined)).
		Order("date ASC, start_time ASC").
		Find(&trainings).Error
	return trainings, err
}

func (r *trainingRepo) ListStartingAt(ctx context.Context, date time.Time, start string) ([]model.Training, error) {
	var trainings []model.Training
	err := r.db.WithContext(ctx).
		Where("date = ? AND start_time = ?", datatypes.Date(date), start).
		Find(&trainings).Error
	return trainings, err
}

// ────── Delete ──────

func (r *trainingRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("training_id = ?", id).
		Delete(&model.Training{}).Error
}
