package service

import (
	"context"
	"net/url"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"fitclub/backend/internal/repository"
)

// calendarWindow 日历订阅覆盖的前后天数
const calendarWindow = 90

// CalendarService 个人训练日历订阅
//
// 输出 RFC 5545 VCALENDAR：查看者开设或已报名的训练各对应一个 VEVENT。
// URL 指向门户训练页，不包含会议链接。
type CalendarService interface {
	Feed(ctx context.Context, userID string) ([]byte, error)
}

type calendarService struct {
	repo      *repository.Repository
	clock     clockwork.Clock
	loc       *time.Location
	portalURL string
	uidHost   string
	logger    *zap.Logger
}

// NewCalendarService 创建 CalendarService 实例
func NewCalendarService(repo *repository.Repository, clock clockwork.Clock, loc *time.Location, portalURL string, logger *zap.Logger) CalendarService {
	host := "fitclub"
	if u, err := url.Parse(portalURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return &calendarService{
		repo:      repo,
		clock:     clock,
		loc:       loc,
		portalURL: portalURL,
		uidHost:   host,
		logger:    logger,
	}
}

func (s *calendarService) Feed(ctx context.Context, userID string) ([]byte, error) {
	now := s.clock.Now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)

	trainings, err := s.repo.Training.ListForMember(ctx, userID,
		today.AddDate(0, 0, -calendarWindow), today.AddDate(0, 0, calendarWindow))
	if err != nil {
		s.logger.Error("查询日历训练失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//FitClub//Trainings//RU")
	cal.SetXWRCalName("FitClub")
	cal.SetXWRTimezone(s.loc.String())

	for i := range trainings {
		t := &trainings[i]
		start, err := t.StartsAt(s.loc)
		if err != nil {
			s.logger.Warn("跳过时刻无效的训练", zap.String("training_id", t.TrainingID), zap.Error(err))
			continue
		}
		end, err := t.EndsAt(s.loc)
		if err != nil {
			s.logger.Warn("跳过时刻无效的训练", zap.String("training_id", t.TrainingID), zap.Error(err))
			continue
		}

		event := cal.AddEvent(t.TrainingID + "@" + s.uidHost)
		event.SetDtStampTime(now)
		event.SetStartAt(start)
		event.SetEndAt(end)
		event.SetSummary(t.Title)
		if t.Description != "" {
			event.SetDescription(t.Description)
		}
		if t.Trainer != nil {
			event.SetOrganizer(t.Trainer.Email, ics.WithCN(t.Trainer.Name))
		}
		if link := portalLink(s.portalURL, "/trainings/"+t.TrainingID); link != "" {
			event.SetURL(link)
		}
	}

	return []byte(cal.Serialize()), nil
}
