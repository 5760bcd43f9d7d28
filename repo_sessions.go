package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions manages session row persistence. Rotation is expressed as a
// conditional update so the store, not the process, arbitrates between
// concurrent refresh attempts.
type Sessions interface {
	Create(ctx context.Context, session *Session) (*Session, error)
	CreateTx(ctx context.Context, tx bun.IDB, session *Session) (*Session, error)
	GetBySessionToken(ctx context.Context, token string) (*Session, error)
	GetBySessionTokenTx(ctx context.Context, tx bun.IDB, token string) (*Session, error)
	FindByUser(ctx context.Context, userID uuid.UUID) ([]*Session, error)
	Rotate(ctx context.Context, rotated *Session, oldSessionToken string) (int64, error)
	RotateTx(ctx context.Context, tx bun.IDB, rotated *Session, oldSessionToken string) (int64, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
	DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
	DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error
}

type sessions struct {
	db *bun.DB
}

var _ Sessions = (*sessions)(nil)

func NewSessionsRepository(db *bun.DB) Sessions {
	return &sessions{db: db}
}

func (r *sessions) Create(ctx context.Context, session *Session) (*Session, error) {
	return r.CreateTx(ctx, r.db, session)
}

func (r *sessions) CreateTx(ctx context.Context, tx bun.IDB, session *Session) (*Session, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}

	if _, err := tx.NewInsert().Model(session).Exec(ctx); err != nil {
		return nil, err
	}

	return session, nil
}

func (r *sessions) GetBySessionToken(ctx context.Context, token string) (*Session, error) {
	return r.GetBySessionTokenTx(ctx, r.db, token)
}

func (r *sessions) GetBySessionTokenTx(ctx context.Context, tx bun.IDB, token string) (*Session, error) {
	session := &Session{}
	err := tx.NewSelect().
		Model(session).
		Where("?TableAlias.session_token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (r *sessions) FindByUser(ctx context.Context, userID uuid.UUID) ([]*Session, error) {
	var records []*Session
	err := r.db.NewSelect().
		Model(&records).
		Where("?TableAlias.user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *sessions) Rotate(ctx context.Context, rotated *Session, oldSessionToken string) (int64, error) {
	return r.RotateTx(ctx, r.db, rotated, oldSessionToken)
}

// RotateTx swaps in the new token pair, scoped to the superseded session
// token. At most one concurrent caller sees a row affected; the rest lost
// the race and must treat their token as stale.
func (r *sessions) RotateTx(ctx context.Context, tx bun.IDB, rotated *Session, oldSessionToken string) (int64, error) {
	now := time.Now()
	rotated.UpdatedAt = &now

	res, err := tx.NewUpdate().
		Model(rotated).
		Column("session_token", "expires", "refresh_token_hash", "refresh_token_expires", "updated_at").
		Where("?TableAlias.session_token = ?", oldSessionToken).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

func (r *sessions) DeleteByID(ctx context.Context, id uuid.UUID) error {
	return r.DeleteByIDTx(ctx, r.db, id)
}

func (r *sessions) DeleteByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.id = ?", id).
		Exec(ctx)
	return err
}

func (r *sessions) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	return r.DeleteByUserTx(ctx, r.db, userID)
}

func (r *sessions) DeleteByUserTx(ctx context.Context, tx bun.IDB, userID uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*Session)(nil)).
		Where("?TableAlias.user_id = ?", userID).
		Exec(ctx)
	return err
}
