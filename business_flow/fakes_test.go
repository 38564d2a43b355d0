package businessflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/amirphl/shortlink/models"
	"github.com/amirphl/shortlink/repository"
	"github.com/amirphl/shortlink/utils"
	"github.com/google/uuid"
)

var errStoreDown = errors.New("store unavailable")

type fakeTx struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeTx) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	f.mu.Lock()
	f.calls++
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return fn(ctx)
}

// fakeLinkRepo keeps links in memory and enforces the unique short code like the database does
type fakeLinkRepo struct {
	mu       sync.Mutex
	links    map[uint]*models.Link
	nextID   uint
	saves    int
	failWith error
	now      func() time.Time

	// afterMiss runs once IncrementClicks has found no active row
	afterMiss func()
}

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{links: map[uint]*models.Link{}, now: utils.UTCNow}
}

func (r *fakeLinkRepo) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failWith = err
}

func (r *fakeLinkRepo) fail() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failWith
}

func (r *fakeLinkRepo) add(userID uint, code, target string, clicks int64, active bool) *models.Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	l := &models.Link{
		ID:          r.nextID,
		UserID:      userID,
		ShortCode:   code,
		OriginalURL: target,
		Clicks:      clicks,
		IsActive:    utils.ToPtr(active),
		CreatedAt:   r.now().Add(time.Duration(r.nextID) * time.Second),
	}
	r.links[l.ID] = l
	return l
}

func (r *fakeLinkRepo) ByID(ctx context.Context, id uint) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	l, ok := r.links[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (r *fakeLinkRepo) ByFilter(ctx context.Context, filter models.LinkFilter, orderBy string, limit, offset int) ([]*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Link
	for _, l := range r.links {
		if filter.UserID != nil && l.UserID != *filter.UserID {
			continue
		}
		if filter.ShortCode != nil && l.ShortCode != *filter.ShortCode {
			continue
		}
		if filter.IsActive != nil && l.Active() != *filter.IsActive {
			continue
		}
		cp := *l
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeLinkRepo) Save(ctx context.Context, link *models.Link) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	if r.failWith != nil {
		return r.failWith
	}
	for _, l := range r.links {
		if l.ShortCode == link.ShortCode && l.ID != link.ID {
			return repository.ErrDuplicate
		}
	}
	if link.ID == 0 {
		r.nextID++
		link.ID = r.nextID
		link.CreatedAt = r.now()
	}
	cp := *link
	r.links[link.ID] = &cp
	return nil
}

func (r *fakeLinkRepo) SaveBatch(ctx context.Context, links []*models.Link) error {
	for _, l := range links {
		if err := r.Save(ctx, l); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeLinkRepo) Count(ctx context.Context, filter models.LinkFilter) (int64, error) {
	links, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(links)), err
}

func (r *fakeLinkRepo) Exists(ctx context.Context, filter models.LinkFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeLinkRepo) ActiveByShortCode(ctx context.Context, code string) (*models.Link, error) {
	links, _ := r.ByFilter(ctx, models.LinkFilter{ShortCode: &code, IsActive: utils.ToPtr(true)}, "", 1, 0)
	if len(links) == 0 {
		return nil, nil
	}
	return links[0], nil
}

func (r *fakeLinkRepo) ListActiveByUser(ctx context.Context, userID uint) ([]*models.Link, error) {
	if err := r.fail(); err != nil {
		return nil, err
	}
	links, err := r.ByFilter(ctx, models.LinkFilter{UserID: &userID, IsActive: utils.ToPtr(true)}, "", 0, 0)
	sort.Slice(links, func(i, j int) bool {
		if links[i].CreatedAt.Equal(links[j].CreatedAt) {
			return links[i].ID > links[j].ID
		}
		return links[i].CreatedAt.After(links[j].CreatedAt)
	})
	return links, err
}

func (r *fakeLinkRepo) CountActiveByUser(ctx context.Context, userID uint) (int64, error) {
	if err := r.fail(); err != nil {
		return 0, err
	}
	return r.Count(ctx, models.LinkFilter{UserID: &userID, IsActive: utils.ToPtr(true)})
}

func (r *fakeLinkRepo) StatsByUser(ctx context.Context, userID uint) (repository.LinkStats, error) {
	if err := r.fail(); err != nil {
		return repository.LinkStats{}, err
	}
	links, _ := r.ListActiveByUser(ctx, userID)
	var stats repository.LinkStats
	for _, l := range links {
		stats.TotalLinks++
		stats.TotalClicks += l.Clicks
	}
	return stats, nil
}

func (r *fakeLinkRepo) Deactivate(ctx context.Context, linkID, userID uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return 0, r.failWith
	}
	l, ok := r.links[linkID]
	if !ok || l.UserID != userID || !l.Active() {
		return 0, nil
	}
	l.IsActive = utils.ToPtr(false)
	return 1, nil
}

func (r *fakeLinkRepo) IncrementClicks(ctx context.Context, code string, at time.Time) (*models.Link, error) {
	link, err := r.incrementClicks(code, at)
	if err == nil && link == nil && r.afterMiss != nil {
		r.afterMiss()
	}
	return link, err
}

func (r *fakeLinkRepo) incrementClicks(code string, at time.Time) (*models.Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return nil, r.failWith
	}
	for _, l := range r.links {
		if l.ShortCode == code && l.Active() {
			l.Clicks++
			l.LastClickedAt = &at
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

type fakeClickRepo struct {
	mu       sync.Mutex
	clicks   []*models.LinkClick
	links    *fakeLinkRepo
	failWith error
}

func newFakeClickRepo(links *fakeLinkRepo) *fakeClickRepo {
	return &fakeClickRepo{links: links}
}

func (r *fakeClickRepo) ByID(ctx context.Context, id uint) (*models.LinkClick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.clicks {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (r *fakeClickRepo) ByFilter(ctx context.Context, filter models.LinkClickFilter, orderBy string, limit, offset int) ([]*models.LinkClick, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.LinkClick
	for _, c := range r.clicks {
		if filter.LinkID != nil && c.LinkID != *filter.LinkID {
			continue
		}
		if filter.UserID != nil && c.UserID != *filter.UserID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fakeClickRepo) Save(ctx context.Context, click *models.LinkClick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	click.ID = uint(len(r.clicks) + 1)
	r.clicks = append(r.clicks, click)
	return nil
}

func (r *fakeClickRepo) SaveBatch(ctx context.Context, clicks []*models.LinkClick) error {
	for _, c := range clicks {
		if err := r.Save(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeClickRepo) Count(ctx context.Context, filter models.LinkClickFilter) (int64, error) {
	out, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), err
}

func (r *fakeClickRepo) Exists(ctx context.Context, filter models.LinkClickFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeClickRepo) DailyCountsByUser(ctx context.Context, userID uint, since time.Time, timezone string) (map[string]int64, error) {
	if r.failWith != nil {
		return nil, r.failWith
	}
	loc := utils.LoadLocationOrUTC(timezone)
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int64{}
	for _, c := range r.clicks {
		if c.UserID != userID || c.CreatedAt.Before(since) {
			continue
		}
		if r.links != nil {
			if l, _ := r.links.ByID(ctx, c.LinkID); l == nil || !l.Active() {
				continue
			}
		}
		out[c.CreatedAt.In(loc).Format("2006-01-02")]++
	}
	return out, nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[uint]*models.User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[uint]*models.User{}}
}

func (r *fakeUserRepo) ByID(ctx context.Context, id uint) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.users {
		if filter.Email != nil && u.Email != *filter.Email {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeUserRepo) Save(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email && u.ID != user.ID {
			return repository.ErrDuplicate
		}
	}
	if user.ID == 0 {
		r.nextID++
		user.ID = r.nextID
		user.CreatedAt = utils.UTCNow()
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) SaveBatch(ctx context.Context, users []*models.User) error {
	for _, u := range users {
		if err := r.Save(ctx, u); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeUserRepo) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	out, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), err
}

func (r *fakeUserRepo) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeUserRepo) ByEmail(ctx context.Context, email string) (*models.User, error) {
	out, _ := r.ByFilter(ctx, models.UserFilter{Email: &email}, "", 1, 0)
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (r *fakeUserRepo) ByUUID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.UUID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) UpdateLastLogin(ctx context.Context, userID uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[userID]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[uint]*models.UserSession
	nextID   uint
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[uint]*models.UserSession{}}
}

func (r *fakeSessionRepo) ByID(ctx context.Context, id uint) (*models.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) ByFilter(ctx context.Context, filter models.UserSessionFilter, orderBy string, limit, offset int) ([]*models.UserSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.UserSession
	for _, s := range r.sessions {
		if filter.UserID != nil && s.UserID != *filter.UserID {
			continue
		}
		if filter.IsActive != nil && utils.IsTrue(s.IsActive) != *filter.IsActive {
			continue
		}
		if filter.CorrelationID != nil && s.CorrelationID != *filter.CorrelationID {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	return out, nil
}

func (r *fakeSessionRepo) Save(ctx context.Context, session *models.UserSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == 0 {
		r.nextID++
		session.ID = r.nextID
	}
	cp := *session
	r.sessions[session.ID] = &cp
	return nil
}

func (r *fakeSessionRepo) SaveBatch(ctx context.Context, sessions []*models.UserSession) error {
	for _, s := range sessions {
		if err := r.Save(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeSessionRepo) Count(ctx context.Context, filter models.UserSessionFilter) (int64, error) {
	out, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), err
}

func (r *fakeSessionRepo) Exists(ctx context.Context, filter models.UserSessionFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeSessionRepo) find(match func(*models.UserSession) bool) *models.UserSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if match(s) && s.IsValid() {
			cp := *s
			return &cp
		}
	}
	return nil
}

func (r *fakeSessionRepo) BySessionToken(ctx context.Context, token string) (*models.UserSession, error) {
	return r.find(func(s *models.UserSession) bool { return s.SessionToken == token }), nil
}

func (r *fakeSessionRepo) ByRefreshToken(ctx context.Context, token string) (*models.UserSession, error) {
	return r.find(func(s *models.UserSession) bool { return utils.StringValue(s.RefreshToken) == token }), nil
}

func (r *fakeSessionRepo) Deactivate(ctx context.Context, sessionID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.IsActive = utils.ToPtr(false)
	}
	return nil
}

func (r *fakeSessionRepo) Touch(ctx context.Context, sessionID uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[sessionID]; ok {
		s.LastAccessedAt = at
	}
	return nil
}

func (r *fakeSessionRepo) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.IsExpired() {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeSessionRepo) active() int {
	n, _ := r.Count(context.Background(), models.UserSessionFilter{IsActive: utils.ToPtr(true)})
	return int(n)
}

type fakeAuditRepo struct {
	mu   sync.Mutex
	logs []*models.AuditLog
}

func (r *fakeAuditRepo) ByID(ctx context.Context, id uint) (*models.AuditLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) ByFilter(ctx context.Context, filter models.AuditLogFilter, orderBy string, limit, offset int) ([]*models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuditLog
	for _, l := range r.logs {
		if filter.Action != nil && l.Action != *filter.Action {
			continue
		}
		if filter.Success != nil && utils.IsTrue(l.Success) != *filter.Success {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (r *fakeAuditRepo) Save(ctx context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *fakeAuditRepo) SaveBatch(ctx context.Context, logs []*models.AuditLog) error {
	for _, l := range logs {
		_ = r.Save(ctx, l)
	}
	return nil
}

func (r *fakeAuditRepo) Count(ctx context.Context, filter models.AuditLogFilter) (int64, error) {
	out, err := r.ByFilter(ctx, filter, "", 0, 0)
	return int64(len(out)), err
}

func (r *fakeAuditRepo) Exists(ctx context.Context, filter models.AuditLogFilter) (bool, error) {
	n, err := r.Count(ctx, filter)
	return n > 0, err
}

func (r *fakeAuditRepo) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.AuditLog, error) {
	return nil, nil
}

func (r *fakeAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}
