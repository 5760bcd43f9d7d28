package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserResult is what a successful registration produced.
type RegisterUserResult struct {
	User              *User
	VerificationToken *VerificationToken
}

// RegisterUserHandler creates the account and its verification token in
// one transaction, then hands the token to the mail sink. The user id is
// derived from the email so repeated imports of the same address are
// stable across environments.
type RegisterUserHandler struct {
	repo         RepositoryManager
	verification *VerificationFlow
	mailer       Mailer
	logger       Logger
}

func NewRegisterUserHandler(repo RepositoryManager, verification *VerificationFlow, mailer Mailer) *RegisterUserHandler {
	if mailer == nil {
		mailer = NewLogMailer("", defLogger{})
	}

	return &RegisterUserHandler{
		repo:         repo,
		verification: verification,
		mailer:       mailer,
		logger:       defLogger{},
	}
}

func (h *RegisterUserHandler) WithLogger(l Logger) *RegisterUserHandler {
	if l != nil {
		h.logger = l
	}
	return h
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*RegisterUserResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*RegisterUserResult, error) {
	user := &User{}
	var verification *VerificationToken

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := h.repo.Users().EmailExistsTx(ctx, tx, event.Email)
		if err != nil {
			return WrapStoreError(err, "failed to check email uniqueness")
		}
		if taken {
			return ErrEmailTaken
		}

		username := event.Username
		if username == "" {
			if username, err = UniqueUsernameTx(ctx, tx, h.repo.Users(), event.Email); err != nil {
				return err
			}
		} else {
			taken, err := h.repo.Users().UsernameExistsTx(ctx, tx, username)
			if err != nil {
				return WrapStoreError(err, "failed to check username uniqueness")
			}
			if taken {
				return ErrUsernameTaken
			}
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = event.Email
		user.Username = username
		user.Role = event.Role
		user.Provider = ProviderCredentials
		if id, err := hashid.NewUUID(event.Email); err == nil {
			user.ID = id
		}

		if user, err = h.repo.Users().RegisterTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		if verification, err = h.verification.IssueTx(ctx, tx, user.Email); err != nil {
			return err
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}

		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	// Delivery happens after commit. A mail failure does not unwind the
	// account; the token stays valid and can be re-sent.
	if err := h.mailer.SendVerificationEmail(ctx, user.Email, verification.Token); err != nil {
		h.logger.Error("failed to send verification email", "email", user.Email, "error", err)
	}

	return &RegisterUserResult{
		User:              user.Sanitized(),
		VerificationToken: verification,
	}, nil
}
