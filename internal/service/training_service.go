package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fitclub/backend/internal/dto"
	"fitclub/backend/internal/model"
	"fitclub/backend/internal/repository"
)

// ── 训练模块业务错误 ──

var (
	ErrTrainingNotFound     = errors.New("训练不存在")
	ErrNotTrainer           = errors.New("仅教练可以创建训练")
	ErrNotTrainingOwner     = errors.New("只有开课教练可以修改该训练")
	ErrSlotConflict         = errors.New("该日期与开始时间已有训练")
	ErrTrainingFull         = errors.New("训练名额已满")
	ErrTrainingAlreadyPast  = errors.New("训练已结束，无法报名")
	ErrSignupNotFound       = errors.New("未报名该训练")
	ErrInvalidDate          = errors.New("日期格式应为 YYYY-MM-DD")
	ErrInvalidMonth         = errors.New("月份格式应为 YYYY-MM")
	ErrInvalidTimeRange     = errors.New("时间格式应为 HH:MM，且结束时间必须晚于开始时间")
	ErrInvalidMeetingLink   = errors.New("会议链接必须是 http/https 地址")
	ErrInvalidCapacity      = errors.New("名额不能为负数")
	ErrInvalidTitle         = errors.New("标题不能为空")
	ErrCapacityBelowSignups = errors.New("名额不能少于已报名人数")
)

// defaultTrainingTitle 未填写标题时使用
const defaultTrainingTitle = "Тренировка"

// TrainingService 训练预约业务接口
type TrainingService interface {
	Create(ctx context.Context, req *dto.CreateTrainingRequest, trainerID string) (*dto.TrainingResponse, error)
	Update(ctx context.Context, id string, req *dto.UpdateTrainingRequest, trainerID string) (*dto.TrainingResponse, error)
	Delete(ctx context.Context, id string, trainerID string) error
	Get(ctx context.Context, id string, viewerID string) (*dto.TrainingResponse, error)
	List(ctx context.Context, req *dto.TrainingListRequest, viewerID string) ([]dto.TrainingResponse, error)
	Join(ctx context.Context, id string, userID string) (*dto.TrainingResponse, error)
	Leave(ctx context.Context, id string, userID string) error
	Participants(ctx context.Context, id string, trainerID string) ([]dto.ParticipantResponse, error)
}

type trainingService struct {
	repo   *repository.Repository
	clock  clockwork.Clock
	loc    *time.Location
	logger *zap.Logger
}

// NewTrainingService 创建 TrainingService 实例
// loc 为俱乐部时区，训练日期与时刻均按此解释
func NewTrainingService(repo *repository.Repository, clock clockwork.Clock, loc *time.Location, logger *zap.Logger) TrainingService {
	return &trainingService{repo: repo, clock: clock, loc: loc, logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *trainingService) Create(ctx context.Context, req *dto.CreateTrainingRequest, trainerID string) (*dto.TrainingResponse, error) {
	trainer, err := s.repo.User.GetByID(ctx, trainerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotTrainer
		}
		s.logger.Error("查询教练失败", zap.String("trainer_id", trainerID), zap.Error(err))
		return nil, err
	}
	if !trainer.CanTrain() {
		return nil, ErrNotTrainer
	}

	day, start, end, err := parseSlot(req.Date, req.Start, req.End, s.loc)
	if err != nil {
		return nil, err
	}
	if err := validateMeetingLink(req.MeetingLink); err != nil {
		return nil, err
	}

	capacity := model.DefaultCapacity
	if req.Capacity != nil {
		capacity = *req.Capacity
	}
	if capacity < 0 {
		return nil, ErrInvalidCapacity
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultTrainingTitle
	}
	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	// 预检查只是优化，唯一约束才是最终依据
	taken, err := s.repo.Training.ExistsAt(ctx, day, start, "")
	if err != nil {
		s.logger.Error("检查时段占用失败", zap.Error(err))
		return nil, err
	}
	if taken {
		return nil, ErrSlotConflict
	}

	training := &model.Training{
		TrainerID:   trainerID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Date:        datatypes.Date(day),
		StartTime:   start,
		EndTime:     end,
		MeetingLink: strings.TrimSpace(req.MeetingLink),
		Capacity:    capacity,
		IsPublic:    isPublic,
	}
	training.CreatedBy = &trainerID
	training.UpdatedBy = &trainerID

	outcome, err := s.repo.Training.TryCreate(ctx, training)
	if err != nil {
		s.logger.Error("创建训练失败", zap.Error(err))
		return nil, err
	}
	if outcome == repository.WriteConflict {
		return nil, ErrSlotConflict
	}
	training.Trainer = trainer

	s.logger.Info("训练已创建",
		zap.String("training_id", training.TrainingID),
		zap.String("trainer_id", trainerID),
		zap.String("date", training.Day()),
		zap.String("start", start),
	)

	view := s.toTrainingResponse(training, trainerID, false, 0, s.clock.Now())
	return &view, nil
}

// ────────────────────── Update ──────────────────────

func (s *trainingService) Update(ctx context.Context, id string, req *dto.UpdateTrainingRequest, trainerID string) (*dto.TrainingResponse, error) {
	// 锁定训练行：名额校验到写入之间不允许并发报名，且基于最新数据修改
	err := s.repo.WithinTransaction(ctx, func(tx *repository.Repository) error {
		training, err := tx.Training.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTrainingNotFound
			}
			return err
		}
		if training.TrainerID != trainerID {
			return ErrNotTrainingOwner
		}

		rescheduled, err := s.applyUpdate(training, req)
		if err != nil {
			return err
		}

		if req.Capacity != nil {
			count, err := tx.Signup.CountByTraining(ctx, id)
			if err != nil {
				return err
			}
			if int64(*req.Capacity) < count {
				return ErrCapacityBelowSignups
			}
		}

		if rescheduled {
			taken, err := tx.Training.ExistsAt(ctx, time.Time(training.Date), training.StartTime, id)
			if err != nil {
				return err
			}
			if taken {
				return ErrSlotConflict
			}
		}

		training.UpdatedBy = &trainerID
		training.UpdatedAt = s.clock.Now()

		outcome, err := tx.Training.TryUpdate(ctx, training)
		if err != nil {
			return err
		}
		if outcome == repository.WriteConflict {
			return ErrSlotConflict
		}
		return nil
	})
	if err != nil {
		if isTrainingDomainError(err) {
			return nil, err
		}
		s.logger.Error("更新训练失败", zap.String("training_id", id), zap.Error(err))
		return nil, err
	}

	s.logger.Info("训练已更新", zap.String("training_id", id), zap.String("trainer_id", trainerID))
	return s.Get(ctx, id, trainerID)
}

// applyUpdate 将请求中出现的字段校验后写入 training，返回日期或时刻是否变化
func (s *trainingService) applyUpdate(training *model.Training, req *dto.UpdateTrainingRequest) (bool, error) {
	rescheduled := req.Date != nil || req.Start != nil || req.End != nil
	if rescheduled {
		date, start, end := training.Day(), training.StartTime, training.EndTime
		if req.Date != nil {
			date = *req.Date
		}
		if req.Start != nil {
			start = *req.Start
		}
		if req.End != nil {
			end = *req.End
		}

		day, normStart, normEnd, err := parseSlot(date, start, end, s.loc)
		if err != nil {
			return false, err
		}
		training.Date = datatypes.Date(day)
		training.StartTime = normStart
		training.EndTime = normEnd
	}

	if req.MeetingLink != nil {
		if err := validateMeetingLink(*req.MeetingLink); err != nil {
			return false, err
		}
		training.MeetingLink = strings.TrimSpace(*req.MeetingLink)
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return false, ErrInvalidTitle
		}
		training.Title = title
	}
	if req.Description != nil {
		training.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsPublic != nil {
		training.IsPublic = *req.IsPublic
	}
	if req.Capacity != nil {
		if *req.Capacity < 0 {
			return false, ErrInvalidCapacity
		}
		training.Capacity = *req.Capacity
	}
	return rescheduled, nil
}

// ────────────────────── Delete ──────────────────────

func (s *trainingService) Delete(ctx context.Context, id string, trainerID string) error {
	if _, err := s.getOwned(ctx, id, trainerID); err != nil {
		return err
	}

	err := s.repo.WithinTransaction(ctx, func(tx *repository.Repository) error {
		if err := tx.Signup.DeleteByTraining(ctx, id); err != nil {
			return err
		}
		return tx.Training.Delete(ctx, id)
	})
	if err != nil {
		s.logger.Error("删除训练失败", zap.String("training_id", id), zap.Error(err))
		return err
	}

	s.logger.Info("训练已删除", zap.String("training_id", id), zap.String("trainer_id", trainerID))
	return nil
}

// ────────────────────── Get / List ──────────────────────

func (s *trainingService) Get(ctx context.Context, id string, viewerID string) (*dto.TrainingResponse, error) {
	training, err := s.repo.Training.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrainingNotFound
		}
		s.logger.Error("查询训练失败", zap.String("training_id", id), zap.Error(err))
		return nil, err
	}

	count, err := s.repo.Signup.CountByTraining(ctx, id)
	if err != nil {
		s.logger.Error("统计报名人数失败", zap.String("training_id", id), zap.Error(err))
		return nil, err
	}
	signedUp, err := s.isSignedUp(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}

	view := s.toTrainingResponse(training, viewerID, signedUp, count, s.clock.Now())
	return &view, nil
}

func (s *trainingService) List(ctx context.Context, req *dto.TrainingListRequest, viewerID string) ([]dto.TrainingResponse, error) {
	now := s.clock.Now().In(s.loc)

	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	if req.Month != "" {
		m, err := time.ParseInLocation(model.MonthLayout, req.Month, s.loc)
		if err != nil {
			return nil, ErrInvalidMonth
		}
		first = m
	}
	last := first.AddDate(0, 1, -1)

	trainings, err := s.repo.Training.ListByDateRange(ctx, first, last)
	if err != nil {
		s.logger.Error("列出训练失败", zap.Error(err))
		return nil, err
	}

	ids := make([]string, 0, len(trainings))
	for i := range trainings {
		ids = append(ids, trainings[i].TrainingID)
	}
	counts, err := s.repo.Signup.CountByTrainings(ctx, ids)
	if err != nil {
		s.logger.Error("统计报名人数失败", zap.Error(err))
		return nil, err
	}
	joined, err := s.repo.Signup.JoinedTrainingIDs(ctx, viewerID, ids)
	if err != nil {
		s.logger.Error("查询报名状态失败", zap.Error(err))
		return nil, err
	}

	result := make([]dto.TrainingResponse, 0, len(trainings))
	for i := range trainings {
		t := &trainings[i]
		result = append(result, s.toTrainingResponse(t, viewerID, joined[t.TrainingID], counts[t.TrainingID], now))
	}
	return result, nil
}

// ────────────────────── Join / Leave ──────────────────────

func (s *trainingService) Join(ctx context.Context, id string, userID string) (*dto.TrainingResponse, error) {
	now := s.clock.Now()

	// 锁定训练行，保证并发报名不会突破名额
	err := s.repo.WithinTransaction(ctx, func(tx *repository.Repository) error {
		training, err := tx.Training.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTrainingNotFound
			}
			return err
		}

		end, err := training.EndsAt(s.loc)
		if err != nil {
			return err
		}
		if !now.Before(end) {
			return ErrTrainingAlreadyPast
		}

		if _, err := tx.Signup.Get(ctx, id, userID); err == nil {
			return nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		count, err := tx.Signup.CountByTraining(ctx, id)
		if err != nil {
			return err
		}
		if count >= int64(training.Capacity) {
			return ErrTrainingFull
		}

		outcome, err := tx.Signup.TryCreate(ctx, &model.TrainingSignup{TrainingID: id, UserID: userID})
		if err != nil {
			return err
		}
		if outcome == repository.WriteConflict {
			s.logger.Debug("重复报名，按幂等成功处理", zap.String("training_id", id), zap.String("user_id", userID))
		}
		return nil
	})
	if err != nil {
		if isTrainingDomainError(err) {
			return nil, err
		}
		s.logger.Error("报名失败", zap.String("training_id", id), zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	return s.Get(ctx, id, userID)
}

func (s *trainingService) Leave(ctx context.Context, id string, userID string) error {
	deleted, err := s.repo.Signup.Delete(ctx, id, userID)
	if err != nil {
		s.logger.Error("取消报名失败", zap.String("training_id", id), zap.String("user_id", userID), zap.Error(err))
		return err
	}
	if !deleted {
		return ErrSignupNotFound
	}
	return nil
}

// ────────────────────── Participants ──────────────────────

func (s *trainingService) Participants(ctx context.Context, id string, trainerID string) ([]dto.ParticipantResponse, error) {
	if _, err := s.getOwned(ctx, id, trainerID); err != nil {
		return nil, err
	}

	signups, err := s.repo.Signup.ListByTraining(ctx, id)
	if err != nil {
		s.logger.Error("查询参与者失败", zap.String("training_id", id), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ParticipantResponse, 0, len(signups))
	for _, su := range signups {
		p := dto.ParticipantResponse{
			UserID:        su.UserID,
			JoinedAt:      su.CreatedAt.In(s.loc).Format(time.RFC3339),
			Notified1h:    su.Notified1h,
			NotifiedStart: su.NotifiedStart,
		}
		if su.User != nil {
			p.Name = su.User.Name
		}
		result = append(result, p)
	}
	return result, nil
}

// ────────────────────── 辅助方法 ──────────────────────

// getOwned 查询训练并校验调用者为开课教练
func (s *trainingService) getOwned(ctx context.Context, id, trainerID string) (*model.Training, error) {
	training, err := s.repo.Training.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrainingNotFound
		}
		s.logger.Error("查询训练失败", zap.String("training_id", id), zap.Error(err))
		return nil, err
	}
	if training.TrainerID != trainerID {
		return nil, ErrNotTrainingOwner
	}
	return training, nil
}

func (s *trainingService) isSignedUp(ctx context.Context, id, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	_, err := s.repo.Signup.Get(ctx, id, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	s.logger.Error("查询报名状态失败", zap.String("training_id", id), zap.Error(err))
	return false, err
}

// toTrainingResponse 按查看者身份序列化训练，链接仅在可见时输出
func (s *trainingService) toTrainingResponse(t *model.Training, viewerID string, signedUp bool, count int64, now time.Time) dto.TrainingResponse {
	resp := dto.TrainingResponse{
		ID:               t.TrainingID,
		TrainerID:        t.TrainerID,
		Title:            t.Title,
		Description:      t.Description,
		Date:             t.Day(),
		Start:            t.StartTime,
		End:              t.EndTime,
		Capacity:         t.Capacity,
		IsPublic:         t.IsPublic,
		ViewerIsOwner:    viewerID != "" && viewerID == t.TrainerID,
		ViewerIsSignedUp: signedUp,
	}
	if t.Trainer != nil {
		resp.TrainerName = t.Trainer.Name
	}

	spots := t.Capacity - int(count)
	if spots < 0 {
		spots = 0
	}
	resp.SpotsLeft = spots

	if end, err := t.EndsAt(s.loc); err == nil {
		resp.IsPast = !now.Before(end)
	}
	if visibleAt, err := LinkVisibleAt(t, s.loc); err == nil {
		resp.LinkVisibleAt = visibleAt.Format(time.RFC3339)
	}

	if CanSeeLink(viewerID, t, signedUp, now, s.loc) {
		link := t.MeetingLink
		resp.CanOpenLink = true
		resp.Link = &link
	}
	return resp
}

// parseSlot 校验并规范化日期与起止时刻
func parseSlot(date, start, end string, loc *time.Location) (time.Time, string, string, error) {
	day, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, "", "", ErrInvalidDate
	}
	startHM, err := time.Parse(model.ClockLayout, strings.TrimSpace(start))
	if err != nil {
		return time.Time{}, "", "", ErrInvalidTimeRange
	}
	endHM, err := time.Parse(model.ClockLayout, strings.TrimSpace(end))
	if err != nil {
		return time.Time{}, "", "", ErrInvalidTimeRange
	}
	if !endHM.After(startHM) {
		return time.Time{}, "", "", ErrInvalidTimeRange
	}
	return day, startHM.Format(model.ClockLayout), endHM.Format(model.ClockLayout), nil
}

func validateMeetingLink(link string) error {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return ErrInvalidMeetingLink
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidMeetingLink
	}
	return nil
}

// trainingDomainErrors 业务错误，调用方直接返回不记录错误日志
var trainingDomainErrors = []error{
	ErrTrainingNotFound, ErrNotTrainer, ErrNotTrainingOwner, ErrSlotConflict,
	ErrTrainingFull, ErrTrainingAlreadyPast, ErrSignupNotFound,
	ErrInvalidDate, ErrInvalidMonth, ErrInvalidTimeRange, ErrInvalidMeetingLink,
	ErrInvalidCapacity, ErrInvalidTitle, ErrCapacityBelowSignups,
}

func isTrainingDomainError(err error) bool {
	for _, target := range trainingDomainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
