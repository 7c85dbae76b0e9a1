package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"fittrack-be/internal/entity"
	"fittrack-be/internal/model"
	"fittrack-be/internal/repository"
	"fittrack-be/internal/repository/contract"
	"fittrack-be/internal/repository/specification"
	"fittrack-be/internal/repository/unitofwork"
	"fittrack-be/pkg/llm"

	"github.com/google/uuid"
)

// memStore backs the fake repositories. A single store is shared by every
// unit of work a test's factory hands out, so writes are visible across
// service calls the way a database would make them.
type memStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*entity.User
	sessions      map[uuid.UUID]*entity.Session
	resetTokens   map[uuid.UUID]*entity.PasswordResetToken
	chats         map[uuid.UUID]*entity.Chat
	messages      []*entity.Message
	activities    []*entity.Activity
	notifications []*model.Notification

	// findErr, when set, is returned by lookups to stand in for a failing
	// database.
	findErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[uuid.UUID]*entity.User),
		sessions:    make(map[uuid.UUID]*entity.Session),
		resetTokens: make(map[uuid.UUID]*entity.PasswordResetToken),
		chats:       make(map[uuid.UUID]*entity.Chat),
	}
}

type fakeFactory struct {
	store *memStore
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{store: newMemStore()}
}

func (f *fakeFactory) NewUnitOfWork(ctx context.Context) unitofwork.UnitOfWork {
	return &fakeUow{store: f.store}
}

type fakeUow struct {
	store *memStore
}

func (u *fakeUow) Begin(ctx context.Context) error { return nil }
func (u *fakeUow) Commit() error                   { return nil }
func (u *fakeUow) Rollback() error                 { return nil }

func (u *fakeUow) UserRepository() contract.UserRepository {
	return &fakeUserRepo{store: u.store}
}

func (u *fakeUow) SessionRepository() contract.SessionRepository {
	return &fakeSessionRepo{store: u.store}
}

func (u *fakeUow) ChatRepository() contract.ChatRepository {
	return &fakeChatRepo{store: u.store}
}

func (u *fakeUow) MessageRepository() contract.MessageRepository {
	return &fakeMessageRepo{store: u.store}
}

func (u *fakeUow) ActivityRepository() contract.ActivityRepository {
	return &fakeActivityRepo{store: u.store}
}

func (u *fakeUow) NotificationRepository() repository.NotificationRepository {
	return &fakeNotificationRepo{store: u.store}
}

// querySpec is the interpreted form of the specification list the fakes
// receive. Only the concrete specification types the services actually use
// are understood.
type querySpec struct {
	id      *uuid.UUID
	email   *string
	token   *string
	userId  *uuid.UUID
	chatId  *uuid.UUID
	after   *time.Time
	orderBy string
	desc    bool
	limit   int
}

func parseSpecs(specs []specification.Specification) querySpec {
	q := querySpec{limit: -1}
	for _, s := range specs {
		switch v := s.(type) {
		case specification.ByID:
			id := v.ID
			q.id = &id
		case specification.ByEmail:
			email := v.Email
			q.email = &email
		case specification.ByToken:
			token := v.Token
			q.token = &token
		case specification.UserOwnedBy:
			userId := v.UserID
			q.userId = &userId
		case specification.ByChatID:
			chatId := v.ChatID
			q.chatId = &chatId
		case specification.CreatedAfter:
			after := v.After
			q.after = &after
		case specification.OrderBy:
			q.orderBy = v.Field
			q.desc = v.Desc
		case specification.Limit:
			q.limit = v.N
		case specification.Pagination:
			q.limit = v.Limit
		}
	}
	return q
}

type fakeUserRepo struct {
	store *memStore
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *user
	r.store.users[user.Id] = &cp
	return nil
}

func (r *fakeUserRepo) Update(ctx context.Context, user *entity.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *user
	r.store.users[user.Id] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.users, id)
	return nil
}

func (r *fakeUserRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error) {
	q := parseSpecs(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.findErr != nil {
		return nil, r.store.findErr
	}
	for _, u := range r.store.users {
		if q.id != nil && u.Id != *q.id {
			continue
		}
		if q.email != nil && u.Email != *q.email {
			continue
		}
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return int64(len(r.store.users)), nil
}

func (r *fakeUserRepo) CreatePasswordResetToken(ctx context.Context, token *entity.PasswordResetToken) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *token
	r.store.resetTokens[token.Id] = &cp
	return nil
}

func (r *fakeUserRepo) FindPasswordResetToken(ctx context.Context, specs ...specification.Specification) (*entity.PasswordResetToken, error) {
	q := parseSpecs(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.findErr != nil {
		return nil, r.store.findErr
	}
	for _, t := range r.store.resetTokens {
		if q.token != nil && t.Token != *q.token {
			continue
		}
		cp := *t
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeUserRepo) MarkResetTokenUsed(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if t, ok := r.store.resetTokens[id]; ok {
		t.Used = true
	}
	return nil
}

func (r *fakeUserRepo) UpdatePassword(ctx context.Context, userId uuid.UUID, passwordHash string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if u, ok := r.store.users[userId]; ok {
		u.PasswordHash = &passwordHash
	}
	return nil
}

type fakeSessionRepo struct {
	store *memStore
}

func (r *fakeSessionRepo) Create(ctx context.Context, session *entity.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *session
	r.store.sessions[session.Id] = &cp
	return nil
}

func (r *fakeSessionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteByToken(ctx context.Context, token string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, s := range r.store.sessions {
		if s.Token == token {
			delete(r.store.sessions, id)
		}
	}
	return nil
}

func (r *fakeSessionRepo) DeleteAllByUserId(ctx context.Context, userId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, s := range r.store.sessions {
		if s.UserId == userId {
			delete(r.store.sessions, id)
		}
	}
	return nil
}

func (r *fakeSessionRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Session, error) {
	q := parseSpecs(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.sessions {
		if q.id != nil && s.Id != *q.id {
			continue
		}
		if q.token != nil && s.Token != *q.token {
			continue
		}
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeSessionRepo) FindOneWithUser(ctx context.Context, token string) (*entity.Session, *entity.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.sessions {
		if s.Token != token {
			continue
		}
		u, ok := r.store.users[s.UserId]
		if !ok {
			return nil, nil, nil
		}
		sc, uc := *s, *u
		return &sc, &uc, nil
	}
	return nil, nil, nil
}

type fakeChatRepo struct {
	store *memStore
}

func (r *fakeChatRepo) Create(ctx context.Context, chat *entity.Chat) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *chat
	r.store.chats[chat.Id] = &cp
	return nil
}

func (r *fakeChatRepo) Update(ctx context.Context, chat *entity.Chat) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *chat
	r.store.chats[chat.Id] = &cp
	return nil
}

func (r *fakeChatRepo) Touch(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if c, ok := r.store.chats[id]; ok {
		c.UpdatedAt = at
	}
	return nil
}

func (r *fakeChatRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	delete(r.store.chats, id)
	return nil
}

func (r *fakeChatRepo) DeleteAllByUserId(ctx context.Context, userId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, c := range r.store.chats {
		if c.UserId == userId {
			delete(r.store.chats, id)
		}
	}
	return nil
}

func (r *fakeChatRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chat, error) {
	q := parseSpecs(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, c := range r.store.chats {
		if q.id != nil && c.Id != *q.id {
			continue
		}
		if q.userId != nil && c.UserId != *q.userId {
			continue
		}
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeChatRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chat, error) {
	q := parseSpecs(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Chat
	for _, c := range r.store.chats {
		if q.userId != nil && c.UserId != *q.userId {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.desc {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if q.limit >= 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out, nil
}

func (r *fakeChatRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

type fakeMessageRepo struct {
	store *memStore
}

func (r *fakeMessageRepo) Create(ctx context.Context, message *entity.Message) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *message
	r.store.messages = append(r.store.messages, &cp)
	return nil
}

func (r *fakeMessageRepo) DeleteByChatId(ctx context.Context, chatId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.messages[:0]
	for _, m := range r.store.messages {
		if m.ChatId != chatId {
			kept = append(kept, m)
		}
	}
	r.store.messages = kept
	return nil
}

func (r *fakeMessageRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Message, error) {
	q := parseSpecs(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Message
	for _, m := range r.store.messages {
		if q.chatId != nil && m.ChatId != *q.chatId {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	// Insertion order breaks CreatedAt ties, matching a serial database.
	sort.SliceStable(out, func(i, j int) bool {
		if q.desc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if q.limit >= 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out, nil
}

func (r *fakeMessageRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

func (r *fakeMessageRepo) FindLatestPerChat(ctx context.Context, chatIds []uuid.UUID) (map[uuid.UUID]*entity.Message, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(chatIds))
	for _, id := range chatIds {
		wanted[id] = true
	}
	latest := make(map[uuid.UUID]*entity.Message)
	for _, m := range r.store.messages {
		if !wanted[m.ChatId] {
			continue
		}
		prev, ok := latest[m.ChatId]
		if !ok || !m.CreatedAt.Before(prev.CreatedAt) {
			cp := *m
			latest[m.ChatId] = &cp
		}
	}
	return latest, nil
}

type fakeActivityRepo struct {
	store *memStore
}

func (r *fakeActivityRepo) Create(ctx context.Context, activity *entity.Activity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *activity
	r.store.activities = append(r.store.activities, &cp)
	return nil
}

func (r *fakeActivityRepo) Update(ctx context.Context, activity *entity.Activity) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i, a := range r.store.activities {
		if a.Id == activity.Id {
			cp := *activity
			r.store.activities[i] = &cp
		}
	}
	return nil
}

func (r *fakeActivityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.activities[:0]
	for _, a := range r.store.activities {
		if a.Id != id {
			kept = append(kept, a)
		}
	}
	r.store.activities = kept
	return nil
}

func (r *fakeActivityRepo) DeleteAllByUserId(ctx context.Context, userId uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.activities[:0]
	for _, a := range r.store.activities {
		if a.UserId != userId {
			kept = append(kept, a)
		}
	}
	r.store.activities = kept
	return nil
}

func (r *fakeActivityRepo) match(a *entity.Activity, q querySpec) bool {
	if q.id != nil && a.Id != *q.id {
		return false
	}
	if q.userId != nil && a.UserId != *q.userId {
		return false
	}
	if q.after != nil && a.CreatedAt.Before(*q.after) {
		return false
	}
	return true
}

func (r *fakeActivityRepo) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Activity, error) {
	q := parseSpecs(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, a := range r.store.activities {
		if r.match(a, q) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeActivityRepo) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Activity, error) {
	q := parseSpecs(specs)
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entity.Activity
	for _, a := range r.store.activities {
		if r.match(a, q) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.desc {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if q.limit >= 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out, nil
}

func (r *fakeActivityRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

type fakeNotificationRepo struct {
	store *memStore
}

func (r *fakeNotificationRepo) CreateNotification(ctx context.Context, notification *model.Notification) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cp := *notification
	r.store.notifications = append(r.store.notifications, &cp)
	return nil
}

func (r *fakeNotificationRepo) GetNotificationsByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]model.Notification, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []model.Notification
	for _, n := range r.store.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeNotificationRepo) GetUnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for _, n := range r.store.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkAsRead(ctx context.Context, notificationID uuid.UUID, userID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, n := range r.store.notifications {
		if n.ID == notificationID && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return ErrNotFound
}

func (r *fakeNotificationRepo) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, n := range r.store.notifications {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (r *fakeNotificationRepo) DeleteAllByUserID(ctx context.Context, userID uuid.UUID) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	kept := r.store.notifications[:0]
	for _, n := range r.store.notifications {
		if n.UserID != userID {
			kept = append(kept, n)
		}
	}
	r.store.notifications = kept
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

type fakeEmailService struct {
	mu          sync.Mutex
	resetTokens []string
}

func (f *fakeEmailService) SendResetToken(toEmail, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetTokens = append(f.resetTokens, token)
	return nil
}

func (f *fakeEmailService) SendGoalReached(toEmail, name string, goal int) error {
	return nil
}

// fakeProvider scripts the model side of a turn. Each Chat/ChatStream call
// records the window it was handed.
type fakeProvider struct {
	mu      sync.Mutex
	reply   string
	err     error
	delay   time.Duration
	windows [][]llm.Message
	calls   int
}

func (f *fakeProvider) Chat(ctx context.Context, history []llm.Message, options ...llm.Option) (string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.windows = append(f.windows, history)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, history []llm.Message, options ...llm.Option) (<-chan llm.StreamChunk, error) {
	f.mu.Lock()
	f.calls++
	f.windows = append(f.windows, history)
	reply, err := f.reply, f.err
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		// Emit the reply one rune at a time, then the terminal chunk.
		for _, r := range reply {
			out <- llm.StreamChunk{Text: string(r)}
		}
		out <- llm.StreamChunk{Done: true, FinishReason: "stop"}
	}()
	return out, nil
}

func (f *fakeProvider) lastWindow() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.windows) == 0 {
		return nil
	}
	return f.windows[len(f.windows)-1]
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (f *fakePublisher) Publish(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}
