package auth

import (
	"context"

	"github.com/uptrace/bun"
)

// VerificationTokens persists email verification tokens keyed by the
// opaque token string.
type VerificationTokens interface {
	Create(ctx context.Context, token *VerificationToken) (*VerificationToken, error)
	CreateTx(ctx context.Context, tx bun.IDB, token *VerificationToken) (*VerificationToken, error)
	GetByToken(ctx context.Context, token string) (*VerificationToken, error)
	GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*VerificationToken, error)
	DeleteByToken(ctx context.Context, token string) (int64, error)
	DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) (int64, error)
	DeleteByIdentifier(ctx context.Context, identifier string) error
	DeleteByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) error
}

type verificationTokens struct {
	db *bun.DB
}

var _ VerificationTokens = (*verificationTokens)(nil)

func NewVerificationTokensRepository(db *bun.DB) VerificationTokens {
	return &verificationTokens{db: db}
}

func (r *verificationTokens) Create(ctx context.Context, token *VerificationToken) (*VerificationToken, error) {
	return r.CreateTx(ctx, r.db, token)
}

func (r *verificationTokens) CreateTx(ctx context.Context, tx bun.IDB, token *VerificationToken) (*VerificationToken, error) {
	if _, err := tx.NewInsert().Model(token).Exec(ctx); err != nil {
		return nil, err
	}
	return token, nil
}

func (r *verificationTokens) GetByToken(ctx context.Context, token string) (*VerificationToken, error) {
	return r.GetByTokenTx(ctx, r.db, token)
}

func (r *verificationTokens) GetByTokenTx(ctx context.Context, tx bun.IDB, token string) (*VerificationToken, error) {
	record := &VerificationToken{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *verificationTokens) DeleteByToken(ctx context.Context, token string) (int64, error) {
	return r.DeleteByTokenTx(ctx, r.db, token)
}

// DeleteByTokenTx reports the number of rows removed so callers can
// enforce single use: a second consume deletes nothing.
func (r *verificationTokens) DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) (int64, error) {
	res, err := tx.NewDelete().
		Model((*VerificationToken)(nil)).
		Where("?TableAlias.token = ?", token).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *verificationTokens) DeleteByIdentifier(ctx context.Context, identifier string) error {
	return r.DeleteByIdentifierTx(ctx, r.db, identifier)
}

func (r *verificationTokens) DeleteByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) error {
	_, err := tx.NewDelete().
		Model((*VerificationToken)(nil)).
		Where("?TableAlias.identifier = ?", identifier).
		Exec(ctx)
	return err
}
