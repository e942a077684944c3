package service

import (
	"time"

	"fitclub/backend/internal/model"
)

// LinkRevealLead 参与者可提前看到会议链接的时长
const LinkRevealLead = 10 * time.Minute

// LinkVisibleAt 参与者可看到会议链接的起始时刻
func LinkVisibleAt(training *model.Training, loc *time.Location) (time.Time, error) {
	start, err := training.StartsAt(loc)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(-LinkRevealLead), nil
}

// CanSeeLink 判断 viewerID 在 now 时刻能否看到训练的会议链接
//   - 开课教练任何时候可见
//   - 已报名的参与者在 [start-10min, end) 内可见
//   - 其他人不可见
func CanSeeLink(viewerID string, training *model.Training, isSignedUp bool, now time.Time, loc *time.Location) bool {
	if viewerID != "" && viewerID == training.TrainerID {
		return true
	}
	if !isSignedUp {
		return false
	}

	visibleAt, err := LinkVisibleAt(training, loc)
	if err != nil {
		return false
	}
	end, err := training.EndsAt(loc)
	if err != nil {
		return false
	}
	return !now.Before(visibleAt) && now.Before(end)
}
