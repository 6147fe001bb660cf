package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/riseup-connect/backend/internal/models"
	"github.com/anonto42/riseup-connect/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// clock is a settable time source
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeUsers struct {
	mu      sync.Mutex
	nextID  uint
	users   map[uint]*models.User
	deleted map[uint]bool
	counts  map[uint][2]int

	// createErr, when set, fails CreateUser
	createErr error
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[uint]*models.User{}, deleted: map[uint]bool{}, counts: map[uint][2]int{}}
	for _, u := range users {
		f.users[u.ID] = u
		if u.ID > f.nextID {
			f.nextID = u.ID
		}
	}
	return f
}

func (f *fakeUsers) live(id uint) (*models.User, bool) {
	u, ok := f.users[id]
	if !ok || f.deleted[id] {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (f *fakeUsers) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	for _, u := range f.users {
		if u.Email == user.Email || (user.Username != "" && u.Username == user.Username) {
			return repositories.ErrDuplicate
		}
	}
	f.nextID++
	user.ID = f.nextID
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) UpdateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) Rename(id uint, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].Name = name
}

func (f *fakeUsers) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.live(id); ok {
		return u, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) GetUsersByIDs(_ context.Context, ids []uint) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	seen := map[uint]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if u, ok := f.live(id); ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUsers) GetUsersByUsernames(_ context.Context, names []string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.User
	for _, name := range names {
		for id, u := range f.users {
			if strings.EqualFold(u.Username, name) && !f.deleted[id] {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}

func (f *fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if !f.deleted[id] && match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return strings.EqualFold(u.Username, username) })
}

func (f *fakeUsers) GetUserByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.FirebaseUID != nil && *u.FirebaseUID == uid })
}

func (f *fakeUsers) DeleteUser(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live(id); !ok {
		return repositories.ErrNotFound
	}
	f.users[id].Tombstone()
	f.deleted[id] = true
	return nil
}

func (f *fakeUsers) AdjustFollowCounts(_ context.Context, followerID, followingID uint, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[followerID]; ok && !f.deleted[followerID] {
		u.FollowingCount += delta
	}
	if u, ok := f.users[followingID]; ok && !f.deleted[followingID] {
		u.FollowersCount += delta
	}
	return nil
}

type fakePosts map[string]*models.Post

func (f fakePosts) GetPostsByIDs(_ context.Context, ids []string) (map[string]*models.Post, error) {
	out := map[string]*models.Post{}
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type fakeNotifications struct {
	mu      sync.Mutex
	entries []models.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	f.entries = append(f.entries, *n)
	return nil
}

func (f *fakeNotifications) ListByRecipient(_ context.Context, recipientID uint, skip, limit int64) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var mine []models.Notification
	for _, n := range f.entries {
		if n.RecipientID == recipientID {
			mine = append(mine, n)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		if !mine[i].CreatedAt.Equal(mine[j].CreatedAt) {
			return mine[i].CreatedAt.After(mine[j].CreatedAt)
		}
		return mine[i].ID.Hex() > mine[j].ID.Hex()
	})
	if skip >= int64(len(mine)) {
		return []models.Notification{}, nil
	}
	end := skip + limit
	if end > int64(len(mine)) {
		end = int64(len(mine))
	}
	return mine[skip:end], nil
}

func (f *fakeNotifications) count(match func(models.Notification) bool) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	var c int64
	for _, n := range f.entries {
		if match(n) {
			c++
		}
	}
	return c
}

func (f *fakeNotifications) CountByRecipient(_ context.Context, recipientID uint) (int64, error) {
	return f.count(func(n models.Notification) bool { return n.RecipientID == recipientID }), nil
}

func (f *fakeNotifications) CountUnread(_ context.Context, recipientID uint) (int64, error) {
	return f.count(func(n models.Notification) bool { return n.RecipientID == recipientID && !n.IsRead }), nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, recipientID uint, id string, at time.Time) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		n := &f.entries[i]
		if n.ID.Hex() == id && n.RecipientID == recipientID {
			if !n.IsRead {
				n.IsRead = true
				t := at
				n.ReadAt = &t
			}
			cp := *n
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeNotifications) MarkAllRead(_ context.Context, recipientID uint, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var changed int64
	for i := range f.entries {
		n := &f.entries[i]
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			t := at
			n.ReadAt = &t
			changed++
		}
	}
	return changed, nil
}

func (f *fakeNotifications) Delete(_ context.Context, recipientID uint, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.entries {
		if n.ID.Hex() == id && n.RecipientID == recipientID {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (f *fakeNotifications) DeleteByRecipient(_ context.Context, recipientID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.entries[:0]
	var removed int64
	for _, n := range f.entries {
		if n.RecipientID == recipientID {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	f.entries = kept
	return removed, nil
}

type fakeFollows struct {
	mu    sync.Mutex
	edges map[uint][]uint // follower -> followees
}

func newFakeFollows() *fakeFollows {
	return &fakeFollows{edges: map[uint][]uint{}}
}

func (f *fakeFollows) Follow(follower, following uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edges[follower] = append(f.edges[follower], following)
}

func (f *fakeFollows) GetFollowingIDs(_ context.Context, userID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint(nil), f.edges[userID]...), nil
}

func (f *fakeFollows) GetFollowerIDs(_ context.Context, userID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []uint
	for follower, followees := range f.edges {
		for _, id := range followees {
			if id == userID {
				out = append(out, follower)
			}
		}
	}
	return out, nil
}

func (f *fakeFollows) DeleteAllForUser(_ context.Context, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.edges, userID)
	for follower, followees := range f.edges {
		kept := followees[:0]
		for _, id := range followees {
			if id != userID {
				kept = append(kept, id)
			}
		}
		f.edges[follower] = kept
	}
	return nil
}

type fakeMoments struct {
	mu      sync.Mutex
	moments map[primitive.ObjectID]*models.Moment

	// afterLoad runs on the stored document after FindVisibleByID returns it
	afterLoad func(*models.Moment)
}

func newFakeMoments() *fakeMoments {
	return &fakeMoments{moments: map[primitive.ObjectID]*models.Moment{}}
}

// Raw returns the stored document, bypassing the visibility predicate
func (f *fakeMoments) Raw(id primitive.ObjectID) *models.Moment {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.moments[id]; ok {
		return cloneMoment(m)
	}
	return nil
}

func cloneMoment(m *models.Moment) *models.Moment {
	cp := *m
	cp.Views = append([]models.MomentView{}, m.Views...)
	cp.Likes = append([]models.MomentLike{}, m.Likes...)
	cp.Comments = append([]models.MomentComment{}, m.Comments...)
	return &cp
}

func visibleIn(m *models.Moment, now time.Time) bool {
	return m.IsActive && m.ExpiresAt.After(now)
}

func (f *fakeMoments) Create(_ context.Context, m *models.Moment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	f.moments[m.ID] = cloneMoment(m)
	return nil
}

func (f *fakeMoments) FindVisibleByID(_ context.Context, id string, now time.Time) (*models.Moment, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repositories.ErrNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.moments[objID]
	if !ok || !visibleIn(m, now) {
		return nil, repositories.ErrNotFound
	}
	out := cloneMoment(m)
	if f.afterLoad != nil {
		f.afterLoad(m)
	}
	return out, nil
}

func (f *fakeMoments) FindVisible(_ context.Context, ownerIDs []uint, now time.Time, skip, limit int64) ([]models.Moment, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	owners := map[uint]bool{}
	for _, id := range ownerIDs {
		owners[id] = true
	}
	var out []models.Moment
	for _, m := range f.moments {
		if owners[m.OwnerID] && visibleIn(m, now) {
			out = append(out, *cloneMoment(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.Hex() > out[j].ID.Hex()
	})
	total := int64(len(out))
	if skip >= total {
		return []models.Moment{}, total, nil
	}
	end := skip + limit
	if end > total {
		end = total
	}
	return out[skip:end], total, nil
}

func (f *fakeMoments) AddView(_ context.Context, id primitive.ObjectID, viewerID uint, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.moments[id]
	if !ok || m.ViewedBy(viewerID) {
		return false, nil
	}
	m.Views = append(m.Views, models.MomentView{UserID: viewerID, ViewedAt: at})
	return true, nil
}

func (f *fakeMoments) AddLike(_ context.Context, id primitive.ObjectID, userID uint, at time.Time) (*models.Moment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.moments[id]
	if !ok || !visibleIn(m, at) || m.LikedBy(userID) {
		return nil, repositories.ErrNotFound
	}
	m.Likes = append(m.Likes, models.MomentLike{UserID: userID, LikedAt: at})
	return cloneMoment(m), nil
}

func (f *fakeMoments) RemoveLike(_ context.Context, id primitive.ObjectID, userID uint, now time.Time) (*models.Moment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.moments[id]
	if !ok || !visibleIn(m, now) {
		return nil, repositories.ErrNotFound
	}
	kept := m.Likes[:0]
	for _, l := range m.Likes {
		if l.UserID != userID {
			kept = append(kept, l)
		}
	}
	m.Likes = kept
	return cloneMoment(m), nil
}

func (f *fakeMoments) AddComment(_ context.Context, id primitive.ObjectID, c models.MomentComment, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.moments[id]
	if !ok || !visibleIn(m, now) {
		return repositories.ErrNotFound
	}
	m.Comments = append(m.Comments, c)
	return nil
}

func (f *fakeMoments) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.moments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.moments, id)
	return nil
}

func (f *fakeMoments) DeleteByOwner(_ context.Context, ownerID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, m := range f.moments {
		if m.OwnerID == ownerID {
			delete(f.moments, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeMoments) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, m := range f.moments {
		if !m.ExpiresAt.After(now) {
			delete(f.moments, id)
			n++
		}
	}
	return n, nil
}

type fakeOTPs struct {
	mu   sync.Mutex
	rows map[primitive.ObjectID]*models.OTP
}

func newFakeOTPs() *fakeOTPs {
	return &fakeOTPs{rows: map[primitive.ObjectID]*models.OTP{}}
}

func (f *fakeOTPs) Rows(email string) []models.OTP {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OTP
	for _, o := range f.rows {
		if o.Email == email {
			out = append(out, *o)
		}
	}
	return out
}

func (f *fakeOTPs) Create(_ context.Context, otp *models.OTP) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.rows {
		if o.Email == otp.Email && !o.IsUsed {
			return repositories.ErrDuplicate
		}
	}
	if otp.ID.IsZero() {
		otp.ID = primitive.NewObjectID()
	}
	cp := *otp
	f.rows[otp.ID] = &cp
	return nil
}

func (f *fakeOTPs) FindUsable(_ context.Context, email string, now time.Time) (*models.OTP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.rows {
		if o.Email == email && o.UsableAt(now) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeOTPs) IncrementAttempts(_ context.Context, id primitive.ObjectID) (*models.OTP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	o.Attempts++
	cp := *o
	return &cp, nil
}

func (f *fakeOTPs) MarkUsed(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.rows[id]
	if !ok || o.IsUsed {
		return repositories.ErrNotFound
	}
	o.IsUsed = true
	return nil
}

func (f *fakeOTPs) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeOTPs) SupersedeUnused(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.rows {
		if o.Email == email && !o.IsUsed {
			o.IsUsed = true
			o.Superseded = true
		}
	}
	return nil
}

func (f *fakeOTPs) FindSuperseded(_ context.Context, email string, now time.Time) ([]models.OTP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OTP
	for _, o := range f.rows {
		if o.Email == email && o.Superseded && o.ExpiresAt.After(now) {
			out = append(out, *o)
		}
	}
	return out, nil
}

// Usable returns the rows that can still be verified
func (f *fakeOTPs) Usable(email string, now time.Time) []models.OTP {
	var out []models.OTP
	for _, o := range f.Rows(email) {
		if o.UsableAt(now) {
			out = append(out, o)
		}
	}
	return out
}

func (f *fakeOTPs) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, o := range f.rows {
		if !o.ExpiresAt.After(now) {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}

// fakeCooldown keys expire against the shared clock
type fakeCooldown struct {
	mu    sync.Mutex
	clock *clock
	until map[string]time.Time
}

func newFakeCooldown(c *clock) *fakeCooldown {
	return &fakeCooldown{clock: c, until: map[string]time.Time{}}
}

func (f *fakeCooldown) Acquire(_ context.Context, key string, ttl time.Duration) (bool, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now()
	if until, ok := f.until[key]; ok && now.Before(until) {
		return false, until.Sub(now), nil
	}
	f.until[key] = now.Add(ttl)
	return true, 0, nil
}

func (f *fakeCooldown) Touch(_ context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.until[key] = f.clock.Now().Add(ttl)
	return nil
}

type fakeSender struct {
	mu    sync.Mutex
	codes map[string][]string
}

func newFakeSender() *fakeSender {
	return &fakeSender{codes: map[string][]string{}}
}

func (f *fakeSender) SendOTP(_ context.Context, toEmail, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[toEmail] = append(f.codes[toEmail], code)
	return nil
}

func (f *fakeSender) Last(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes := f.codes[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}
