package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fitclub/backend/internal/model"
	"fitclub/backend/internal/repository"
)

func dateOf(t time.Time) datatypes.Date {
	return datatypes.Date(t)
}

func sameDay(a, b time.Time) bool {
	return a.Format(model.DateLayout) == b.Format(model.DateLayout)
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) add(u *model.User) *model.User {
	m.users[u.UserID] = u
	return u
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) lookup(id string) *model.User {
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

// ── Mock TrainingRepository ──

type mockTrainingRepo struct {
	trainings map[string]*model.Training
	users     *mockUserRepo
	signups   *mockSignupRepo
	nextID    int

	// skipPrecheck 让 ExistsAt 总是返回 false，模拟预检查与写入之间的并发插入
	skipPrecheck bool
	err          error

	// locked 模拟 SELECT ... FOR UPDATE 持有的行锁，事务结束时由 mockTransactor 释放
	locked  map[string]bool
	waiting []func()
}

func newMockTrainingRepo(users *mockUserRepo, signups *mockSignupRepo) *mockTrainingRepo {
	return &mockTrainingRepo{
		trainings: make(map[string]*model.Training),
		users:     users,
		signups:   signups,
		locked:    make(map[string]bool),
	}
}

// whenUnlocked 模拟另一会话的操作：行被锁定时排队到锁释放后执行
func (m *mockTrainingRepo) whenUnlocked(id string, fn func()) {
	if m.locked[id] {
		m.waiting = append(m.waiting, fn)
		return
	}
	fn()
}

func (m *mockTrainingRepo) releaseLocks() {
	waiting := m.waiting
	m.locked = make(map[string]bool)
	m.waiting = nil
	for _, fn := range waiting {
		fn()
	}
}

func (m *mockTrainingRepo) occupied(t *model.Training, excludeID string) bool {
	for id, other := range m.trainings {
		if id == excludeID {
			continue
		}
		if sameDay(time.Time(other.Date), time.Time(t.Date)) && other.StartTime == t.StartTime {
			return true
		}
	}
	return false
}

func (m *mockTrainingRepo) withTrainer(t *model.Training) *model.Training {
	cp := *t
	cp.Trainer = m.users.lookup(t.TrainerID)
	return &cp
}

func (m *mockTrainingRepo) TryCreate(_ context.Context, t *model.Training) (repository.WriteOutcome, error) {
	if m.err != nil {
		return repository.WriteApplied, m.err
	}
	if m.occupied(t, "") {
		return repository.WriteConflict, nil
	}
	m.nextID++
	t.TrainingID = fmt.Sprintf("training-%d", m.nextID)
	cp := *t
	cp.Trainer = nil
	m.trainings[t.TrainingID] = &cp
	return repository.WriteApplied, nil
}

func (m *mockTrainingRepo) TryUpdate(_ context.Context, t *model.Training) (repository.WriteOutcome, error) {
	if m.err != nil {
		return repository.WriteApplied, m.err
	}
	if m.occupied(t, t.TrainingID) {
		return repository.WriteConflict, nil
	}
	cp := *t
	cp.Trainer = nil
	m.trainings[t.TrainingID] = &cp
	return repository.WriteApplied, nil
}

func (m *mockTrainingRepo) GetByID(_ context.Context, id string) (*model.Training, error) {
	if t, ok := m.trainings[id]; ok {
		return m.withTrainer(t), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTrainingRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Training, error) {
	t, err := m.GetByID(ctx, id)
	if err == nil {
		m.locked[id] = true
	}
	return t, err
}

func (m *mockTrainingRepo) ExistsAt(_ context.Context, date time.Time, start string, excludeID string) (bool, error) {
	if m.skipPrecheck {
		return false, nil
	}
	for id, t := range m.trainings {
		if id != excludeID && sameDay(time.Time(t.Date), date) && t.StartTime == start {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockTrainingRepo) sorted(keep func(t *model.Training) bool) []model.Training {
	var result []model.Training
	for _, t := range m.trainings {
		if keep(t) {
			result = append(result, *m.withTrainer(t))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Day() != result[j].Day() {
			return result[i].Day() < result[j].Day()
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result
}

func (m *mockTrainingRepo) ListByDateRange(_ context.Context, from, to time.Time) ([]model.Training, error) {
	lo, hi := from.Format(model.DateLayout), to.Format(model.DateLayout)
	return m.sorted(func(t *model.Training) bool {
		return t.Day() >= lo && t.Day() <= hi
	}), nil
}

func (m *mockTrainingRepo) ListForMember(_ context.Context, userID string, from, to time.Time) ([]model.Training, error) {
	lo, hi := from.Format(model.DateLayout), to.Format(model.DateLayout)
	return m.sorted(func(t *model.Training) bool {
		if t.Day() < lo || t.Day() > hi {
			return false
		}
		return t.TrainerID == userID || m.signups.find(t.TrainingID, userID) != nil
	}), nil
}

func (m *mockTrainingRepo) ListStartingAt(_ context.Context, date time.Time, start string) ([]model.Training, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.sorted(func(t *model.Training) bool {
		return sameDay(time.Time(t.Date), date) && t.StartTime == start
	}), nil
}

func (m *mockTrainingRepo) Delete(_ context.Context, id string) error {
	delete(m.trainings, id)
	return nil
}

// ── Mock TrainingSignupRepository ──

type mockSignupRepo struct {
	signups map[string]*model.TrainingSignup
	users   *mockUserRepo
	nextID  int
	created time.Time

	// raceOnCreate 模拟同一用户的并发报名：TryCreate 前已有另一事务写入
	raceOnCreate bool
	markErr      error

	// afterCount 在 CountByTraining 返回前调用，用于在计数与写入之间插入并发操作
	afterCount func(trainingID string)
}

func newMockSignupRepo(users *mockUserRepo) *mockSignupRepo {
	return &mockSignupRepo{
		signups: make(map[string]*model.TrainingSignup),
		users:   users,
		created: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func (m *mockSignupRepo) find(trainingID, userID string) *model.TrainingSignup {
	for _, s := range m.signups {
		if s.TrainingID == trainingID && s.UserID == userID {
			return s
		}
	}
	return nil
}

func (m *mockSignupRepo) insert(trainingID, userID string) *model.TrainingSignup {
	m.nextID++
	s := &model.TrainingSignup{
		SignupID:   fmt.Sprintf("signup-%d", m.nextID),
		TrainingID: trainingID,
		UserID:     userID,
		CreatedAt:  m.created.Add(time.Duration(m.nextID) * time.Minute),
	}
	m.signups[s.SignupID] = s
	return s
}

func (m *mockSignupRepo) TryCreate(_ context.Context, s *model.TrainingSignup) (repository.WriteOutcome, error) {
	if m.raceOnCreate {
		m.raceOnCreate = false
		m.insert(s.TrainingID, s.UserID)
		return repository.WriteConflict, nil
	}
	if m.find(s.TrainingID, s.UserID) != nil {
		return repository.WriteConflict, nil
	}
	created := m.insert(s.TrainingID, s.UserID)
	s.SignupID = created.SignupID
	return repository.WriteApplied, nil
}

func (m *mockSignupRepo) Get(_ context.Context, trainingID, userID string) (*model.TrainingSignup, error) {
	if s := m.find(trainingID, userID); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockSignupRepo) CountByTraining(_ context.Context, trainingID string) (int64, error) {
	var n int64
	for _, s := range m.signups {
		if s.TrainingID == trainingID {
			n++
		}
	}
	if hook := m.afterCount; hook != nil {
		m.afterCount = nil
		hook(trainingID)
	}
	return n, nil
}

func (m *mockSignupRepo) CountByTrainings(ctx context.Context, ids []string) (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, id := range ids {
		n, _ := m.CountByTraining(ctx, id)
		if n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

func (m *mockSignupRepo) JoinedTrainingIDs(_ context.Context, userID string, ids []string) (map[string]bool, error) {
	joined := make(map[string]bool)
	for _, id := range ids {
		if m.find(id, userID) != nil {
			joined[id] = true
		}
	}
	return joined, nil
}

func (m *mockSignupRepo) ListByTraining(_ context.Context, trainingID string) ([]model.TrainingSignup, error) {
	var result []model.TrainingSignup
	for _, s := range m.signups {
		if s.TrainingID == trainingID {
			cp := *s
			cp.User = m.users.lookup(s.UserID)
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *mockSignupRepo) MarkNotified(_ context.Context, signupID string, kind model.ReminderKind) error {
	if m.markErr != nil {
		return m.markErr
	}
	s, ok := m.signups[signupID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	switch kind {
	case model.ReminderTrainingHour:
		s.Notified1h = true
	case model.ReminderTrainingStart:
		s.NotifiedStart = true
	default:
		return errors.New("unsupported kind")
	}
	return nil
}

func (m *mockSignupRepo) Delete(_ context.Context, trainingID, userID string) (bool, error) {
	s := m.find(trainingID, userID)
	if s == nil {
		return false, nil
	}
	delete(m.signups, s.SignupID)
	return true, nil
}

func (m *mockSignupRepo) DeleteByTraining(_ context.Context, trainingID string) error {
	for id, s := range m.signups {
		if s.TrainingID == trainingID {
			delete(m.signups, id)
		}
	}
	return nil
}

// ── Mock NotificationPreferenceRepository ──

type mockPreferenceRepo struct {
	prefs map[string]*model.NotificationPreference
	users *mockUserRepo
}

func newMockPreferenceRepo(users *mockUserRepo) *mockPreferenceRepo {
	return &mockPreferenceRepo{prefs: make(map[string]*model.NotificationPreference), users: users}
}

func (m *mockPreferenceRepo) GetByUserID(_ context.Context, userID string) (*model.NotificationPreference, error) {
	if p, ok := m.prefs[userID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPreferenceRepo) ListMealSubscribers(_ context.Context) ([]model.NotificationPreference, error) {
	var result []model.NotificationPreference
	for _, p := range m.prefs {
		u := m.users.lookup(p.UserID)
		if !p.TelegramEnabled || !p.MealReminders || u == nil || u.Handle() == "" {
			continue
		}
		cp := *p
		cp.User = u
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

// ── Mock SubscriptionRepository ──

type mockSubscriptionRepo struct {
	subs  map[string]*model.Subscription
	users *mockUserRepo
}

func newMockSubscriptionRepo(users *mockUserRepo) *mockSubscriptionRepo {
	return &mockSubscriptionRepo{subs: make(map[string]*model.Subscription), users: users}
}

func (m *mockSubscriptionRepo) ListExpiringOn(_ context.Context, day time.Time) ([]model.Subscription, error) {
	var result []model.Subscription
	for _, s := range m.subs {
		if !s.IsActive || s.EndDate == nil || !sameDay(time.Time(*s.EndDate), day) {
			continue
		}
		cp := *s
		cp.User = m.users.lookup(s.UserID)
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SubscriptionID < result[j].SubscriptionID })
	return result, nil
}

func (m *mockSubscriptionRepo) MarkRenewalReminderSent(_ context.Context, id string, day time.Time) error {
	s, ok := m.subs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	d := dateOf(day)
	s.RenewalReminderSentOn = &d
	return nil
}

// ── Mock MealReminderRepository ──

type mockMealReminderRepo struct {
	logs []model.MealReminderLog
}

func (m *mockMealReminderRepo) Exists(_ context.Context, userID, mealType string, day time.Time) (bool, error) {
	for _, l := range m.logs {
		if l.UserID == userID && l.MealType == mealType && sameDay(time.Time(l.DateSent), day) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockMealReminderRepo) TryCreate(ctx context.Context, log *model.MealReminderLog) (repository.WriteOutcome, error) {
	if ok, _ := m.Exists(ctx, log.UserID, log.MealType, time.Time(log.DateSent)); ok {
		return repository.WriteConflict, nil
	}
	m.logs = append(m.logs, *log)
	return repository.WriteApplied, nil
}

// ── 测试用数据集 ──

type mockStore struct {
	users     *mockUserRepo
	trainings *mockTrainingRepo
	signups   *mockSignupRepo
	prefs     *mockPreferenceRepo
	subs      *mockSubscriptionRepo
	meals     *mockMealReminderRepo
}

func newMockStore() *mockStore {
	users := newMockUserRepo()
	signups := newMockSignupRepo(users)
	return &mockStore{
		users:     users,
		trainings: newMockTrainingRepo(users, signups),
		signups:   signups,
		prefs:     newMockPreferenceRepo(users),
		subs:      newMockSubscriptionRepo(users),
		meals:     &mockMealReminderRepo{},
	}
}

func (s *mockStore) repository() *repository.Repository {
	return &repository.Repository{
		Training:     s.trainings,
		Signup:       s.signups,
		User:         s.users,
		Preference:   s.prefs,
		Subscription: s.subs,
		MealReminder: s.meals,
	}
}

// storeSnapshot 事务开始时的可变状态副本
type storeSnapshot struct {
	signups map[string]model.TrainingSignup
	subs    map[string]model.Subscription
	meals   []model.MealReminderLog
}

func (s *mockStore) snapshot() storeSnapshot {
	snap := storeSnapshot{
		signups: make(map[string]model.TrainingSignup, len(s.signups.signups)),
		subs:    make(map[string]model.Subscription, len(s.subs.subs)),
		meals:   append([]model.MealReminderLog(nil), s.meals.logs...),
	}
	for id, su := range s.signups.signups {
		snap.signups[id] = *su
	}
	for id, sub := range s.subs.subs {
		snap.subs[id] = *sub
	}
	return snap
}

func (s *mockStore) restore(snap storeSnapshot) {
	s.signups.signups = make(map[string]*model.TrainingSignup, len(snap.signups))
	for id, su := range snap.signups {
		s.signups.signups[id] = &su
	}
	s.subs.subs = make(map[string]*model.Subscription, len(snap.subs))
	for id, sub := range snap.subs {
		s.subs.subs[id] = &sub
	}
	s.meals.logs = snap.meals
}

// mockTransactor 回调成功后按 failCommit 决定"提交"或回滚到快照；结束时释放行锁
type mockTransactor struct {
	store      *mockStore
	repo       *repository.Repository
	failCommit bool
	calls      int
}

var errCommitFailed = errors.New("commit failed")

func (t *mockTransactor) WithinTransaction(_ context.Context, fn func(tx *repository.Repository) error) error {
	t.calls++
	defer t.store.trainings.releaseLocks()
	snap := t.store.snapshot()
	if err := fn(t.repo); err != nil {
		t.store.restore(snap)
		return err
	}
	if t.failCommit {
		t.store.restore(snap)
		return errCommitFailed
	}
	return nil
}
