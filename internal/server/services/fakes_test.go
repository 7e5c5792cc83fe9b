package services

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/memestore/internal/common"
	"github.com/dmitrijs2005/memestore/internal/dbx"
	"github.com/dmitrijs2005/memestore/internal/server/models"
	memesrepo "github.com/dmitrijs2005/memestore/internal/server/repositories/memes"
	refreshtokensrepo "github.com/dmitrijs2005/memestore/internal/server/repositories/refreshtokens"
	usersrepo "github.com/dmitrijs2005/memestore/internal/server/repositories/users"
	"github.com/google/uuid"
)

var errBoom = errors.New("boom")

// fakeTx stands in for *sql.Tx. Repositories in this file never issue SQL.
type fakeTx struct{ id int }

func (*fakeTx) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("fakeTx: no SQL")
}
func (*fakeTx) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("fakeTx: no SQL")
}
func (*fakeTx) QueryRowContext(context.Context, string, ...any) *sql.Row { return nil }

// --- users ---

type memUsers struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	getErr  error
	initErr error
}

func newMemUsers() *memUsers { return &memUsers{byID: map[string]*models.User{}} }

func (m *memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initErr != nil {
		return nil, m.initErr
	}
	for _, x := range m.byID {
		if x.Email == u.Email {
			return nil, common.ErrEmailInUse
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = time.Now()
	cp := *u
	m.byID[u.ID] = &cp
	return u, nil
}

func (m *memUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, x := range m.byID {
		if x.Email == email {
			cp := *x
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	x, ok := m.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *x
	return &cp, nil
}

func (m *memUsers) UpdatePassword(ctx context.Context, id, hashed string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	x.HashedPassword = hashed
	return nil
}

func (m *memUsers) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return common.ErrorNotFound
	}
	delete(m.byID, id)
	return nil
}

// --- refresh tokens ---

// memTokens mimics row locking: Redeem inside a transaction locks the row
// until that transaction ends, and other transactions skip locked rows.
type memTokens struct {
	mu        sync.Mutex
	rows      map[string]*tokenRow
	nextID    int64
	nextTx    int
	now       func() time.Time
	createErr error
}

type tokenRow struct {
	rt       models.RefreshToken
	lockedBy *fakeTx
	// set on commit of the locking tx
	pendingUsed bool
	// rows created by an uncommitted tx
	createdBy *fakeTx
}

func newMemTokens(now func() time.Time) *memTokens {
	return &memTokens{rows: map[string]*tokenRow{}, now: now}
}

func (m *memTokens) begin() *fakeTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTx++
	return &fakeTx{id: m.nextTx}
}

func (m *memTokens) end(tx *fakeTx, commit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tok, row := range m.rows {
		if row.createdBy == tx {
			if commit {
				row.createdBy = nil
			} else {
				delete(m.rows, tok)
				continue
			}
		}
		if row.lockedBy == tx {
			if commit && row.pendingUsed {
				row.rt.Used = true
			}
			row.pendingUsed = false
			row.lockedBy = nil
		}
	}
}

// runTx is a withTx replacement that drives memTokens transactions.
func (m *memTokens) runTx(ctx context.Context, _ *sql.DB, _ *sql.TxOptions, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	tx := m.begin()
	err := fn(ctx, tx)
	m.end(tx, err == nil)
	return err
}

func (m *memTokens) get(token string) (models.RefreshToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[token]
	if !ok {
		return models.RefreshToken{}, false
	}
	return row.rt, true
}

func (m *memTokens) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memTokensView struct {
	m  *memTokens
	tx *fakeTx
}

func (v *memTokensView) Create(ctx context.Context, userID, token string, expiresAt time.Time) (*models.RefreshToken, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if v.m.createErr != nil {
		return nil, v.m.createErr
	}
	if _, dup := v.m.rows[token]; dup {
		return nil, errors.New("duplicate token")
	}
	v.m.nextID++
	row := &tokenRow{
		rt:        models.RefreshToken{ID: v.m.nextID, UserID: userID, Token: token, ExpiresAt: expiresAt},
		createdBy: v.tx,
	}
	v.m.rows[token] = row
	rt := row.rt
	return &rt, nil
}

func (v *memTokensView) Redeem(ctx context.Context, token string) (*models.RefreshToken, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()

	row, ok := v.m.rows[token]
	if !ok || (row.createdBy != nil && row.createdBy != v.tx) {
		return nil, common.ErrTokenNotFound
	}
	if row.lockedBy != nil && row.lockedBy != v.tx {
		// SKIP LOCKED
		return nil, common.ErrTokenNotFound
	}
	if row.rt.Expired(v.m.now()) {
		return nil, common.ErrTokenExpired
	}
	if row.rt.Used || row.pendingUsed {
		return nil, common.ErrTokenAlreadyUsed
	}

	if v.tx == nil {
		row.rt.Used = true
	} else {
		row.lockedBy = v.tx
		row.pendingUsed = true
	}
	rt := row.rt
	rt.Used = true
	return &rt, nil
}

func (v *memTokensView) FindByUser(ctx context.Context, userID string) ([]*models.RefreshToken, error) {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	var out []*models.RefreshToken
	for _, row := range v.m.rows {
		if row.rt.UserID == userID {
			rt := row.rt
			out = append(out, &rt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// --- memes ---

type memMemes struct {
	mu        sync.Mutex
	rows      map[int64]*models.Meme
	nextID    int64
	createErr error
}

func newMemMemes() *memMemes { return &memMemes{rows: map[int64]*models.Meme{}} }

func (m *memMemes) Create(ctx context.Context, meme *models.Meme) (*models.Meme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextID++
	meme.ID = m.nextID
	meme.CreatedAt = time.Now()
	cp := *meme
	m.rows[meme.ID] = &cp
	return meme, nil
}

func (m *memMemes) GetByOwner(ctx context.Context, ownerID string, id int64) (*models.Meme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.rows[id]
	if !ok || x.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	cp := *x
	return &cp, nil
}

func (m *memMemes) GetPublic(ctx context.Context, ownerID string, id int64) (*models.Meme, error) {
	x, err := m.GetByOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if !x.Visibility {
		return nil, common.ErrorNotFound
	}
	return x, nil
}

func (m *memMemes) list(ownerID string, onlyPublic bool, page models.Page) []*models.Meme {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*models.Meme
	for _, x := range m.rows {
		if x.OwnerID == ownerID && (!onlyPublic || x.Visibility) {
			cp := *x
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	out := make([]*models.Meme, 0)
	for i := page.Offset(); i < len(all) && len(out) < page.Size; i++ {
		out = append(out, all[i])
	}
	return out
}

func (m *memMemes) ListByOwner(ctx context.Context, ownerID string, page models.Page) ([]*models.Meme, error) {
	return m.list(ownerID, false, page), nil
}

func (m *memMemes) ListPublicByOwner(ctx context.Context, ownerID string, page models.Page) ([]*models.Meme, error) {
	return m.list(ownerID, true, page), nil
}

func (m *memMemes) Update(ctx context.Context, ownerID string, id int64, upd models.MemeUpdate) (*models.Meme, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.rows[id]
	if !ok || x.OwnerID != ownerID {
		return nil, common.ErrorNotFound
	}
	if upd.Description != nil {
		x.Description = *upd.Description
	}
	if upd.Visibility != nil {
		x.Visibility = *upd.Visibility
	}
	cp := *x
	return &cp, nil
}

func (m *memMemes) Delete(ctx context.Context, ownerID string, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.rows[id]
	if !ok || x.OwnerID != ownerID {
		return "", common.ErrorNotFound
	}
	delete(m.rows, id)
	return x.ImagePath, nil
}

func (m *memMemes) ImagePathsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, x := range m.rows {
		if x.OwnerID == ownerID {
			out = append(out, x.ImagePath)
		}
	}
	sort.Strings(out)
	return out, nil
}

// --- object store ---

type memObjects struct {
	mu         sync.Mutex
	objects    map[string]string
	uploadErr  error
	presignErr error
	deleteErr  error
	n          int
}

func newMemObjects() *memObjects { return &memObjects{objects: map[string]string{}} }

func (o *memObjects) Upload(ctx context.Context, body io.Reader, size int64, contentType, filename string) (string, error) {
	if o.uploadErr != nil {
		return "", o.uploadErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.n++
	key := uuid.NewString() + "/" + filename
	o.objects[key] = string(b)
	return key, nil
}

func (o *memObjects) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if o.presignErr != nil {
		return "", o.presignErr
	}
	return "https://s3.local/memes/" + key + "?ttl=" + ttl.String(), nil
}

func (o *memObjects) Delete(ctx context.Context, key string) error {
	if o.deleteErr != nil {
		return o.deleteErr
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.objects, key)
	return nil
}

func (o *memObjects) has(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.objects[key]
	return ok
}

// --- repo manager ---

type fakeRepoManager struct {
	users  *memUsers
	tokens *memTokens
	memes  *memMemes
}

func (f *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (f *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return f.users }
func (f *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository {
	tx, _ := db.(*fakeTx)
	return &memTokensView{m: f.tokens, tx: tx}
}
func (f *fakeRepoManager) Memes(db dbx.DBTX) memesrepo.Repository { return f.memes }
