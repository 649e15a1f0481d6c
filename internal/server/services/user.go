// Package services contains server-side business logic. This file implements
// UserService, the session manager: registration, login, logout,
// refresh-token rotation, password changes and profile updates.
package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/media"
	"github.com/dmitrijs2005/accounts/internal/server/metrics"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
	"github.com/asaskevich/govalidator"
	validation "github.com/go-ozzo/ozzo-validation"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
}

// Session is the result of a successful login.
type Session struct {
	User *models.Profile
	TokenPair
}

type RegisterInput struct {
	UserName string
	Email    string
	Password string
	FullName string
	// AvatarPath and CoverImagePath are local files staged by the transport.
	AvatarPath     string
	CoverImagePath string
}

// Deps are the collaborators of UserService. Metrics may be nil.
type Deps struct {
	Users   users.Repository
	Tx      users.Transactor
	Tokens  *auth.TokenService
	Hasher  auth.PasswordHasher
	Media   media.Storage
	Metrics *metrics.Metrics
	Logger  logging.Logger
}

// UserService is safe for concurrent use; it keeps no per-request state.
type UserService struct {
	users   users.Repository
	tx      users.Transactor
	tokens  *auth.TokenService
	hasher  auth.PasswordHasher
	media   media.Storage
	metrics *metrics.Metrics
	logger  logging.Logger

	concealUnknownUser     bool
	revokeOnPasswordChange bool

	dummyOnce sync.Once
	dummyHash string
}

func NewUserService(d Deps, cfg *config.Config) *UserService {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	return &UserService{
		users:                  d.Users,
		tx:                     d.Tx,
		tokens:                 d.Tokens,
		hasher:                 d.Hasher,
		media:                  d.Media,
		metrics:                d.Metrics,
		logger:                 logger.With("module", "users"),
		concealUnknownUser:     cfg.ConcealUnknownUser,
		revokeOnPasswordChange: cfg.RevokeSessionsOnPasswordChange,
	}
}

var (
	errInvalidCredentials = common.Unauthorized("invalid user credentials")
	errRefreshRejected    = common.Unauthorized("refresh token is expired or used")
	errInvalidRefresh     = common.Unauthorized("invalid refresh token")
)

func normalize(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func required(field string) validation.Rule {
	return validation.Required.Error(field + " is required")
}

var passwordLength = validation.By(func(v any) error {
	if s, _ := v.(string); len(s) > auth.MaxPasswordBytes {
		return errors.New("password must be at most 72 bytes")
	}
	return nil
})

// emailFormat checks syntax only. The is.Email rule of this ozzo version
// resolves the domain's MX or A record.
var emailFormat = validation.NewStringRule(govalidator.IsEmail, "email must be a valid email address")

type fieldRules struct {
	value any
	rules []validation.Rule
}

func field(value any, rules ...validation.Rule) fieldRules {
	return fieldRules{value: value, rules: rules}
}

// firstInvalid validates fields in order and reports the first failure.
func firstInvalid(fields ...fieldRules) error {
	for _, f := range fields {
		if err := validation.Validate(f.value, f.rules...); err != nil {
			return common.Validation(err.Error())
		}
	}
	return nil
}

// internal logs unexpected failures. Kinded client errors pass untouched.
func (s *UserService) internal(ctx context.Context, op string, err error) error {
	switch common.KindOf(err) {
	case common.KindInternal:
		s.logger.Error(ctx, op+" failed", "error", err)
	case common.KindUnavailable:
		s.logger.Warn(ctx, op+" unavailable", "error", err)
	}
	return err
}

func (s *UserService) checkConflicts(ctx context.Context, repo users.Repository, email, username string) error {
	taken, err := repo.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return common.Conflict("user with this email already exists")
	}
	taken, err = repo.ExistsByUsername(ctx, username)
	if err != nil {
		return err
	}
	if taken {
		return common.Conflict("user with this username already exists")
	}
	return nil
}

func (s *UserService) upload(ctx context.Context, path string) (string, error) {
	if s.media == nil {
		return "", common.Unavailable("media storage is not configured", nil)
	}
	url, err := s.media.Upload(ctx, path)
	if err != nil {
		return "", common.Unavailable("failed to upload file", err)
	}
	return url, nil
}

// Register creates an identity and returns its sanitized profile.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (p *models.Profile, err error) {
	defer func() { s.metrics.AuthEvent("register", err) }()

	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = normalize(in.Email)
	in.UserName = normalize(in.UserName)

	if err := firstInvalid(
		field(in.FullName, required("fullName")),
		field(in.Email, required("email"), emailFormat),
		field(in.UserName, required("username")),
		field(strings.TrimSpace(in.Password), required("password")),
		field(in.Password, passwordLength),
	); err != nil {
		return nil, err
	}

	if err := s.checkConflicts(ctx, s.users, in.Email, in.UserName); err != nil {
		return nil, s.internal(ctx, "register", err)
	}

	if in.AvatarPath == "" {
		return nil, common.Validation("avatar file is required")
	}
	avatar, err := s.upload(ctx, in.AvatarPath)
	if err != nil {
		return nil, s.internal(ctx, "register", err)
	}

	var cover string
	if in.CoverImagePath != "" {
		if cover, err = s.upload(ctx, in.CoverImagePath); err != nil {
			s.logger.Warn(ctx, "cover image upload failed, continuing without it", "error", err)
			cover = ""
		}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, s.internal(ctx, "register", common.Internal("internal error", err))
	}

	var created *models.User
	err = s.tx.InTx(ctx, func(ctx context.Context, repo users.Repository) error {
		// Uploads take time; someone may have taken the name meanwhile.
		if err := s.checkConflicts(ctx, repo, in.Email, in.UserName); err != nil {
			return err
		}
		var err error
		created, err = repo.Create(ctx, &models.User{
			UserName:     in.UserName,
			Email:        in.Email,
			FullName:     in.FullName,
			Avatar:       avatar,
			CoverImage:   cover,
			PasswordHash: hash,
		})
		return err
	})
	if err != nil {
		return nil, s.internal(ctx, "register", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", created.ID)
	return created.Profile(), nil
}

// unknownUser answers a login for an identity that does not exist.
func (s *UserService) unknownUser(password string) error {
	if !s.concealUnknownUser {
		return common.NotFound("user does not exist")
	}
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("dummy-password")
	})
	_, _ = s.hasher.Verify(password, s.dummyHash)
	return errInvalidCredentials
}

func (s *UserService) issuePair(u *models.User) (*TokenPair, error) {
	access, accessExp, err := s.tokens.IssueAccessToken(u)
	if err != nil {
		return nil, common.Internal("internal error", err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefreshToken(u)
	if err != nil {
		return nil, common.Internal("internal error", err)
	}
	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: refreshExp,
	}, nil
}

// Login verifies credentials by username or email and starts a session.
// The new refresh token replaces whatever was stored, so the previous
// session can no longer refresh.
func (s *UserService) Login(ctx context.Context, username, email, password string) (sess *Session, err error) {
	defer func() { s.metrics.AuthEvent("login", err) }()

	username, email = normalize(username), normalize(email)
	if username == "" && email == "" {
		return nil, common.Validation("username or email is required")
	}

	user, err := s.users.GetByLogin(ctx, username, email)
	if err != nil {
		if common.KindOf(err) == common.KindNotFound {
			return nil, s.unknownUser(password)
		}
		return nil, s.internal(ctx, "login", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		return nil, s.internal(ctx, "login", common.Internal("internal error", err))
	}
	if !ok {
		return nil, errInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, s.internal(ctx, "login", err)
	}
	if err := s.users.SetRefreshToken(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, s.internal(ctx, "login", err)
	}

	s.logger.Info(ctx, "user logged in", "user_id", user.ID)
	return &Session{User: user.Profile(), TokenPair: *pair}, nil
}

// Logout clears the stored refresh token. Repeating it is not an error.
func (s *UserService) Logout(ctx context.Context, userID string) (err error) {
	defer func() { s.metrics.AuthEvent("logout", err) }()

	err = s.users.SetRefreshToken(ctx, userID, "")
	if err != nil && common.KindOf(err) != common.KindNotFound {
		return s.internal(ctx, "logout", err)
	}
	return nil
}

// RefreshToken exchanges the current refresh token for a new pair. The
// presented token must be the stored one; it stops working once rotated.
func (s *UserService) RefreshToken(ctx context.Context, presented string) (pair *TokenPair, err error) {
	defer func() { s.metrics.AuthEvent("refresh", err) }()

	if presented == "" {
		return nil, common.Unauthorized("unauthorized request")
	}

	claims, err := s.tokens.VerifyRefreshToken(presented)
	if err != nil {
		return nil, errInvalidRefresh
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if common.KindOf(err) == common.KindNotFound {
			return nil, errInvalidRefresh
		}
		return nil, s.internal(ctx, "refresh", err)
	}

	if subtle.ConstantTimeCompare([]byte(user.RefreshToken), []byte(presented)) != 1 {
		return nil, errRefreshRejected
	}

	pair, err = s.issuePair(user)
	if err != nil {
		return nil, s.internal(ctx, "refresh", err)
	}

	if err := s.users.SwapRefreshToken(ctx, user.ID, presented, pair.RefreshToken); err != nil {
		if errors.Is(err, users.ErrRefreshTokenMismatch) {
			return nil, errRefreshRejected
		}
		return nil, s.internal(ctx, "refresh", err)
	}

	return pair, nil
}

// ChangePassword replaces the password after checking the old one.
func (s *UserService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) (err error) {
	defer func() { s.metrics.AuthEvent("change_password", err) }()

	if err := firstInvalid(
		field(strings.TrimSpace(oldPassword), required("oldPassword")),
		field(strings.TrimSpace(newPassword), required("newPassword")),
		field(newPassword, passwordLength),
	); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return s.internal(ctx, "change password", err)
	}

	ok, err := s.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return s.internal(ctx, "change password", common.Internal("internal error", err))
	}
	if !ok {
		return common.Unauthorized("invalid old password")
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return s.internal(ctx, "change password", common.Internal("internal error", err))
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.revokeOnPasswordChange); err != nil {
		return s.internal(ctx, "change password", err)
	}
	return nil
}

func (s *UserService) CurrentUser(ctx context.Context, userID string) (*models.Profile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.internal(ctx, "current user", err)
	}
	return u.Profile(), nil
}

func (s *UserService) UpdateAccount(ctx context.Context, userID, fullName, email string) (*models.Profile, error) {
	fullName, email = strings.TrimSpace(fullName), normalize(email)

	if fullName == "" || email == "" {
		return nil, common.Validation("all fields are required")
	}
	if err := firstInvalid(field(email, emailFormat)); err != nil {
		return nil, err
	}

	u, err := s.users.UpdateAccount(ctx, userID, fullName, email)
	if err != nil {
		return nil, s.internal(ctx, "update account", err)
	}
	return u.Profile(), nil
}

func (s *UserService) UpdateAvatar(ctx context.Context, userID, path string) (*models.Profile, error) {
	if path == "" {
		return nil, common.Validation("avatar file is required")
	}
	url, err := s.upload(ctx, path)
	if err != nil {
		return nil, s.internal(ctx, "update avatar", err)
	}
	u, err := s.users.UpdateAvatar(ctx, userID, url)
	if err != nil {
		return nil, s.internal(ctx, "update avatar", err)
	}
	return u.Profile(), nil
}

func (s *UserService) UpdateCoverImage(ctx context.Context, userID, path string) (*models.Profile, error) {
	if path == "" {
		return nil, common.Validation("cover image file is required")
	}
	url, err := s.upload(ctx, path)
	if err != nil {
		return nil, s.internal(ctx, "update cover image", err)
	}
	u, err := s.users.UpdateCoverImage(ctx, userID, url)
	if err != nil {
		return nil, s.internal(ctx, "update cover image", err)
	}
	return u.Profile(), nil
}
