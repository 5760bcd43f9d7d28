package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultVerificationTTL bounds how long an emailed link stays usable.
const DefaultVerificationTTL = time.Hour

// VerificationFlow issues and consumes single-use email verification
// tokens. Consumption marks the user verified and burns the token in the
// same transaction.
type VerificationFlow struct {
	repo   RepositoryManager
	ttl    time.Duration
	logger Logger
	now    func() time.Time
}

type VerificationFlowOption func(*VerificationFlow)

func WithVerificationTTL(ttl time.Duration) VerificationFlowOption {
	return func(f *VerificationFlow) {
		if ttl > 0 {
			f.ttl = ttl
		}
	}
}

func WithVerificationLogger(l Logger) VerificationFlowOption {
	return func(f *VerificationFlow) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithVerificationClock(now func() time.Time) VerificationFlowOption {
	return func(f *VerificationFlow) {
		if now != nil {
			f.now = now
		}
	}
}

func NewVerificationFlow(repo RepositoryManager, opts ...VerificationFlowOption) *VerificationFlow {
	f := &VerificationFlow{
		repo:   repo,
		ttl:    DefaultVerificationTTL,
		logger: defLogger{},
		now:    time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	return f
}

// Issue creates a fresh token for the email. Any earlier token for the
// same address is dropped first so only the latest link works.
func (f *VerificationFlow) Issue(ctx context.Context, email string) (*VerificationToken, error) {
	if email == "" {
		return nil, goerrors.New("email is required", goerrors.CategoryValidation)
	}

	token := &VerificationToken{
		Token:      uuid.NewString(),
		Identifier: email,
		Expires:    f.now().Add(f.ttl),
	}

	err := f.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := f.repo.VerificationTokens().DeleteByIdentifierTx(ctx, tx, email); err != nil {
			return WrapStoreError(err, "failed to drop stale verification tokens")
		}

		if _, err := f.repo.VerificationTokens().CreateTx(ctx, tx, token); err != nil {
			return WrapStoreError(err, "failed to persist verification token")
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return token, nil
}

// IssueTx is Issue running inside an enclosing transaction, for callers
// that create the user and the token as one unit of work.
func (f *VerificationFlow) IssueTx(ctx context.Context, tx bun.IDB, email string) (*VerificationToken, error) {
	token := &VerificationToken{
		Token:      uuid.NewString(),
		Identifier: email,
		Expires:    f.now().Add(f.ttl),
	}

	if err := f.repo.VerificationTokens().DeleteByIdentifierTx(ctx, tx, email); err != nil {
		return nil, WrapStoreError(err, "failed to drop stale verification tokens")
	}

	if _, err := f.repo.VerificationTokens().CreateTx(ctx, tx, token); err != nil {
		return nil, WrapStoreError(err, "failed to persist verification token")
	}

	return token, nil
}

// Consume redeems a token: the user behind the identifier is marked
// verified and the token row is deleted. An expired token is reported
// without touching any state. A token that was already consumed deletes
// zero rows and reports not found, which makes reuse visible even under
// concurrent redeems.
func (f *VerificationFlow) Consume(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrVerificationTokenNotFound
	}

	var identifier string

	err := f.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := f.repo.VerificationTokens().GetByTokenTx(ctx, tx, token)
		if err != nil {
			if IsNoRows(err) {
				return ErrVerificationTokenNotFound
			}
			return WrapStoreError(err, "failed to look up verification token")
		}

		now := f.now()
		if record.Expired(now) {
			return ErrVerificationTokenExpired
		}

		if err := f.repo.Users().MarkEmailVerifiedTx(ctx, tx, record.Identifier, now); err != nil {
			return WrapStoreError(err, "failed to mark email verified")
		}

		rows, err := f.repo.VerificationTokens().DeleteByTokenTx(ctx, tx, token)
		if err != nil {
			return WrapStoreError(err, "failed to burn verification token")
		}

		if rows == 0 {
			return ErrVerificationTokenNotFound
		}

		identifier = record.Identifier
		return nil
	})
	if err != nil {
		return "", err
	}

	f.logger.Info("email verified", "identifier", identifier)

	return identifier, nil
}
