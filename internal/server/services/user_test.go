package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/accounts/internal/common"
	"github.com/dmitrijs2005/accounts/internal/logging"
	"github.com/dmitrijs2005/accounts/internal/server/auth"
	"github.com/dmitrijs2005/accounts/internal/server/config"
	"github.com/dmitrijs2005/accounts/internal/server/metrics"
	"github.com/dmitrijs2005/accounts/internal/server/models"
	"github.com/dmitrijs2005/accounts/internal/server/repositories/users"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

type fakeMedia struct {
	mu      sync.Mutex
	fail    map[string]error
	uploads []string
}

func (f *fakeMedia) Upload(ctx context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[path]; err != nil {
		return "", err
	}
	f.uploads = append(f.uploads, path)
	return "http://cdn.test/media/" + path, nil
}

type fixture struct {
	clock   time.Time
	svc     *UserService
	repo    *users.MemoryRepository
	media   *fakeMedia
	metrics *metrics.Metrics
	cfg     *config.Config
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()
	cfg := &config.Config{
		AccessTokenSecret:            "access-secret",
		AccessTokenValidityDuration:  15 * time.Minute,
		RefreshTokenSecret:           "refresh-secret",
		RefreshTokenValidityDuration: 240 * time.Hour,
		BcryptCost:                   bcrypt.MinCost,
	}
	for _, m := range mutate {
		m(cfg)
	}

	repo := users.NewMemoryRepository()
	fm := &fakeMedia{fail: map[string]error{}}
	m := metrics.New()
	f := &fixture{clock: time.Now(), repo: repo, media: fm, metrics: m, cfg: cfg}

	f.svc = NewUserService(Deps{
		Users:   users.WithTimeout(repo, time.Second),
		Tx:      repo,
		Tokens:  auth.NewTokenService(cfg, auth.WithClock(func() time.Time { return f.clock })),
		Hasher:  auth.NewBcryptHasher(cfg.BcryptCost),
		Media:   fm,
		Metrics: m,
		Logger:  logging.Nop{},
	}, cfg)

	return f
}

func neoInput() RegisterInput {
	return RegisterInput{
		UserName:   "neo",
		Email:      "neo@x.com",
		Password:   "trinity1",
		FullName:   "Neo",
		AvatarPath: "avatar.png",
	}
}

func (f *fixture) register(t *testing.T) *models.Profile {
	t.Helper()
	p, err := f.svc.Register(context.Background(), neoInput())
	require.NoError(t, err)
	return p
}

// --- register ---

func TestRegister_Success(t *testing.T) {
	f := newFixture(t)

	in := neoInput()
	in.UserName = "  NEO "
	in.Email = "Neo@X.com"
	in.CoverImagePath = "cover.jpg"

	p, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "neo", p.UserName)
	assert.Equal(t, "neo@x.com", p.Email)
	assert.Equal(t, "http://cdn.test/media/avatar.png", p.Avatar)
	assert.Equal(t, "http://cdn.test/media/cover.jpg", p.CoverImage)

	stored, err := f.repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "trinity1", stored.PasswordHash)
	assert.Empty(t, stored.RefreshToken)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AuthEventsTotal.WithLabelValues("register", metrics.OutcomeSuccess)))
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RegisterInput)
		message string
	}{
		{"all blank", func(in *RegisterInput) { *in = RegisterInput{} }, "fullName is required"},
		{"blank full name", func(in *RegisterInput) { in.FullName = "   " }, "fullName is required"},
		{"blank email", func(in *RegisterInput) { in.Email = "" }, "email is required"},
		{"bad email", func(in *RegisterInput) { in.Email = "neo-at-x" }, "email must be a valid email address"},
		{"blank username", func(in *RegisterInput) { in.UserName = " " }, "username is required"},
		{"blank password", func(in *RegisterInput) { in.Password = "" }, "password is required"},
		{"whitespace password", func(in *RegisterInput) { in.Password = "   " }, "password is required"},
		{"long password", func(in *RegisterInput) { in.Password = strings.Repeat("p", 73) }, "password must be at most 72 bytes"},
		{"missing avatar", func(in *RegisterInput) { in.AvatarPath = "" }, "avatar file is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := neoInput()
			tt.mutate(&in)

			_, err := f.svc.Register(context.Background(), in)
			require.ErrorIs(t, err, common.ErrorValidation)
			assert.Equal(t, tt.message, common.MessageOf(err))
		})
	}
}

func TestRegister_EmailIsCheckedBySyntaxOnly(t *testing.T) {
	f := newFixture(t)
	in := neoInput()
	in.Email = "neo@zion.invalid"

	p, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "neo@zion.invalid", p.Email)
}

func TestRegister_Conflicts(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	in := neoInput()
	in.UserName = "thomas"
	in.Email = "NEO@X.COM"
	_, err := f.svc.Register(context.Background(), in)
	require.ErrorIs(t, err, common.ErrorConflict)
	assert.Equal(t, "user with this email already exists", common.MessageOf(err))

	in = neoInput()
	in.Email = "thomas@x.com"
	in.UserName = "Neo"
	_, err = f.svc.Register(context.Background(), in)
	require.ErrorIs(t, err, common.ErrorConflict)
	assert.Equal(t, "user with this username already exists", common.MessageOf(err))
}

func TestRegister_ConflictBeatsMissingAvatar(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	in := neoInput()
	in.AvatarPath = ""
	_, err := f.svc.Register(context.Background(), in)
	assert.ErrorIs(t, err, common.ErrorConflict)
}

func TestRegister_MediaFailures(t *testing.T) {
	f := newFixture(t)
	f.media.fail["avatar.png"] = errors.New("s3 down")

	_, err := f.svc.Register(context.Background(), neoInput())
	assert.ErrorIs(t, err, common.ErrorUnavailable)

	f = newFixture(t)
	f.media.fail["cover.jpg"] = errors.New("s3 down")
	in := neoInput()
	in.CoverImagePath = "cover.jpg"

	p, err := f.svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, p.CoverImage)
}

// --- login ---

func TestLogin_ByUsernameOrEmail(t *testing.T) {
	f := newFixture(t)
	p := f.register(t)

	s, err := f.svc.Login(context.Background(), "neo", "", "trinity1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, s.User.ID)
	assert.NotEmpty(t, s.AccessToken)
	assert.NotEmpty(t, s.RefreshToken)
	assert.True(t, s.RefreshTokenExpiresAt.After(s.AccessTokenExpiresAt))

	stored, _ := f.repo.GetByID(context.Background(), p.ID)
	assert.Equal(t, s.RefreshToken, stored.RefreshToken)

	_, err = f.svc.Login(context.Background(), "", "NEO@x.com", "trinity1")
	require.NoError(t, err)
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, err := f.svc.Login(context.Background(), " ", "", "trinity1")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.svc.Login(context.Background(), "smith", "", "trinity1")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.svc.Login(context.Background(), "neo", "", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.AuthEventsTotal.WithLabelValues("login", metrics.OutcomeFailure)))
}

func TestLogin_ConcealUnknownUser(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.ConcealUnknownUser = true })
	f.register(t)

	_, unknown := f.svc.Login(context.Background(), "smith", "", "trinity1")
	_, wrong := f.svc.Login(context.Background(), "neo", "", "wrong")

	assert.ErrorIs(t, unknown, common.ErrorUnauthorized)
	assert.Equal(t, common.MessageOf(wrong), common.MessageOf(unknown))
}

func TestLogin_SecondLoginInvalidatesFirst(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	ctx := context.Background()

	first, err := f.svc.Login(ctx, "neo", "", "trinity1")
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, "neo", "", "trinity1")
	require.NoError(t, err)

	_, err = f.svc.RefreshToken(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.svc.RefreshToken(ctx, second.RefreshToken)
	assert.NoError(t, err)
}

// --- refresh / logout ---

func TestRefreshToken_RotatesOnce(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	ctx := context.Background()

	s, err := f.svc.Login(ctx, "neo", "", "trinity1")
	require.NoError(t, err)

	pair, err := f.svc.RefreshToken(ctx, s.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.RefreshToken, pair.RefreshToken)
	assert.NotEmpty(t, pair.AccessToken)

	_, err = f.svc.RefreshToken(ctx, s.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Equal(t, "refresh token is expired or used", common.MessageOf(err))

	_, err = f.svc.RefreshToken(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshToken_ConcurrentReplayWinsOnce(t *testing.T) {
	f := newFixture(t)
	f.register(t)
	ctx := context.Background()

	s, err := f.svc.Login(ctx, "neo", "", "trinity1")
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.RefreshToken(ctx, s.RefreshToken); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestRefreshToken_Rejections(t *testing.T) {
	f := newFixture(t)
	p := f.register(t)
	ctx := context.Background()

	s, err := f.svc.Login(ctx, "neo", "", "trinity1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"malformed", "x.y.z"},
		{"access token", s.AccessToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RefreshToken(ctx, tt.token)
			assert.ErrorIs(t, err, common.ErrorUnauthorized)
		})
	}

	f.repo.Delete(p.ID)
	_, err = f.svc.RefreshToken(ctx, s.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestRefreshToken_ExpiredButStored(t *testing.T) {
	f := newFixture(t)
	p := f.register(t)
	ctx := context.Background()

	s, err := f.svc.Login(ctx, "neo", "", "trinity1")
	require.NoError(t, err)

	f.clock = f.clock.Add(f.cfg.RefreshTokenValidityDuration + time.Minute)

	stored, err := f.repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, s.RefreshToken, stored.RefreshToken)

	_, err = f.svc.RefreshToken(ctx, s.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)
	assert.Equal(t, "invalid refresh token", common.MessageOf(err))
}

func TestLogin_PasswordSuffixPastLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := neoInput()
	in.Password = strings.Repeat("p", auth.MaxPasswordBytes)
	_, err := f.svc.Register(ctx, in)
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "neo", "", in.Password+"x")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = f.svc.Login(ctx, "neo", "", in.Password)
	assert.NoError(t, err)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	p := f.register(t)
	ctx := context.Background()

	s, err := f.svc.Login(ctx, "neo", "", "trinity1")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, p.ID))
	require.NoError(t, f.svc.Logout(ctx, p.ID))

	_, err = f.svc.RefreshToken(ctx, s.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

// --- password / profile ---

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	p := f.register(t)
	ctx := context.Background()

	s, err := f.svc.Login(ctx, "neo", "", "trinity1")
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, p.ID, "wrong", "morpheus2")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	err = f.svc.ChangePassword(ctx, p.ID, "trinity1", "")
	assert.ErrorIs(t, err, common.ErrorValidation)

	err = f.svc.ChangePassword(ctx, p.ID, "trinity1", " \t ")
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Equal(t, "newPassword is required", common.MessageOf(err))

	require.NoError(t, f.svc.ChangePassword(ctx, p.ID, "trinity1", "morpheus2"))

	_, err = f.svc.Login(ctx, "neo", "", "trinity1")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = f.svc.Login(ctx, "neo", "", "morpheus2")
	require.NoError(t, err)

	// the session from before the change was replaced by the new login,
	// not by the password change
	_, err = f.svc.RefreshToken(ctx, s.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestChangePassword_KeepsOrRevokesSession(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	p := f.register(t)
	s, err := f.svc.Login(ctx, "neo", "", "trinity1")
	require.NoError(t, err)
	require.NoError(t, f.svc.ChangePassword(ctx, p.ID, "trinity1", "morpheus2"))
	_, err = f.svc.RefreshToken(ctx, s.RefreshToken)
	assert.NoError(t, err)

	f = newFixture(t, func(c *config.Config) { c.RevokeSessionsOnPasswordChange = true })
	p = f.register(t)
	s, err = f.svc.Login(ctx, "neo", "", "trinity1")
	require.NoError(t, err)
	require.NoError(t, f.svc.ChangePassword(ctx, p.ID, "trinity1", "morpheus2"))
	_, err = f.svc.RefreshToken(ctx, s.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestCurrentUserAndUpdateAccount(t *testing.T) {
	f := newFixture(t)
	p := f.register(t)
	ctx := context.Background()

	got, err := f.svc.CurrentUser(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "neo", got.UserName)

	_, err = f.svc.UpdateAccount(ctx, p.ID, "", "neo@x.com")
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Equal(t, "all fields are required", common.MessageOf(err))

	_, err = f.svc.UpdateAccount(ctx, p.ID, "Thomas", "nope")
	assert.ErrorIs(t, err, common.ErrorValidation)

	updated, err := f.svc.UpdateAccount(ctx, p.ID, " Thomas Anderson ", "Thomas@X.com")
	require.NoError(t, err)
	assert.Equal(t, "Thomas Anderson", updated.FullName)
	assert.Equal(t, "thomas@x.com", updated.Email)

	_, err = f.svc.CurrentUser(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdateAvatarAndCover(t *testing.T) {
	f := newFixture(t)
	p := f.register(t)
	ctx := context.Background()

	_, err := f.svc.UpdateAvatar(ctx, p.ID, "")
	assert.ErrorIs(t, err, common.ErrorValidation)

	updated, err := f.svc.UpdateAvatar(ctx, p.ID, "new.png")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/media/new.png", updated.Avatar)

	f.media.fail["cover.png"] = errors.New("s3 down")
	_, err = f.svc.UpdateCoverImage(ctx, p.ID, "cover.png")
	assert.ErrorIs(t, err, common.ErrorUnavailable)

	updated, err = f.svc.UpdateCoverImage(ctx, p.ID, "cover2.png")
	require.NoError(t, err)
	assert.Equal(t, "http://cdn.test/media/cover2.png", updated.CoverImage)
}

// --- end to end ---

func TestNeoScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Register(ctx, neoInput())
	require.NoError(t, err)
	assert.Equal(t, "neo", p.UserName)

	s, err := f.svc.Login(ctx, "neo", "", "trinity1")
	require.NoError(t, err)

	pair, err := f.svc.RefreshToken(ctx, s.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.RefreshToken, pair.RefreshToken)

	_, err = f.svc.RefreshToken(ctx, s.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}
