package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	ab "github.com/aarondl/authboss/v3"
	"github.com/pquerna/otp/totp"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "goal-tracker/internal/domain/errors"
	"goal-tracker/internal/infrastructure/repository/sqlite"
	"goal-tracker/internal/testutil"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []ab.Email
	err  error
}

func (m *captureMailer) Send(_ context.Context, e ab.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, e)
	return nil
}

func (m *captureMailer) last(t *testing.T) ab.Email {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent)
	return m.sent[len(m.sent)-1]
}

// linkParams pulls the callback query out of a mailed text body.
func linkParams(t *testing.T, body string) url.Values {
	t.Helper()
	for _, field := range strings.Fields(body) {
		if strings.Contains(field, CallbackPath) {
			u, err := url.Parse(field)
			require.NoError(t, err)
			return u.Query()
		}
	}
	t.Fatalf("no callback link in %q", body)
	return nil
}

func newMagicLinks(t *testing.T, mailer ab.Mailer) (*MagicLinks, *sqlite.UserRepo) {
	db := testutil.NewDB(t)
	users := sqlite.NewUserRepo(db)
	ml := NewMagicLinks(sqlite.NewVerificationTokenRepo(db), users, mailer, MagicLinkConfig{
		BaseURL: "https://goals.example.com/",
		TTL:     time.Hour,
		From:    "no-reply@example.com",
	})
	return ml, users
}

func TestMagicLinks_SendAndRedeemOnce(t *testing.T) {
	mailer := &captureMailer{}
	ml, users := newMagicLinks(t, mailer)
	ctx := context.Background()

	require.NoError(t, ml.Send(ctx, "ada@example.com", "/goals/42"))
	mail := mailer.last(t)
	assert.Equal(t, []string{"ada@example.com"}, mail.To)
	assert.Contains(t, mail.TextBody, "https://goals.example.com/auth/callback/email?")

	q := linkParams(t, mail.TextBody)
	assert.Equal(t, "ada@example.com", q.Get("email"))
	assert.Equal(t, "/goals/42", q.Get("callbackUrl"))
	assert.Len(t, q.Get("token"), 64)

	u, err := ml.Redeem(ctx, "ada@example.com", q.Get("token"))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.NotNil(t, u.EmailVerifiedAt)

	stored, err := users.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, stored.ID)

	_, err = ml.Redeem(ctx, "ada@example.com", q.Get("token"))
	assert.ErrorIs(t, err, domainerrors.ErrTokenInvalid)
}

func TestMagicLinks_ExistingUserKeepsID(t *testing.T) {
	mailer := &captureMailer{}
	ml, _ := newMagicLinks(t, mailer)
	ctx := context.Background()

	require.NoError(t, ml.Send(ctx, "ada@example.com", ""))
	first, err := ml.Redeem(ctx, "ada@example.com", linkParams(t, mailer.last(t).TextBody).Get("token"))
	require.NoError(t, err)

	require.NoError(t, ml.Send(ctx, "ada@example.com", ""))
	second, err := ml.Redeem(ctx, "ada@example.com", linkParams(t, mailer.last(t).TextBody).Get("token"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.NotNil(t, second.LastLoginAt)
}

func TestMagicLinks_RejectsExpiredAndForeignTokens(t *testing.T) {
	mailer := &captureMailer{}
	ml, _ := newMagicLinks(t, mailer)
	ctx := context.Background()

	require.NoError(t, ml.Send(ctx, "ada@example.com", ""))
	token := linkParams(t, mailer.last(t).TextBody).Get("token")

	_, err := ml.Redeem(ctx, "eve@example.com", token)
	assert.ErrorIs(t, err, domainerrors.ErrTokenInvalid)

	ml.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = ml.Redeem(ctx, "ada@example.com", token)
	assert.ErrorIs(t, err, domainerrors.ErrTokenInvalid)

	_, err = ml.Redeem(ctx, "", "")
	assert.ErrorIs(t, err, domainerrors.ErrTokenInvalid)
}

func TestMagicLinks_MailFailure(t *testing.T) {
	ml, _ := newMagicLinks(t, &captureMailer{err: errors.New("smtp down")})
	require.Error(t, ml.Send(context.Background(), "ada@example.com", ""))
}

func TestBreakerMailer_OpensAfterFailures(t *testing.T) {
	next := &captureMailer{err: errors.New("smtp down")}
	var transitions []gobreaker.State
	m := NewBreakerMailer(next, BreakerSettings{
		MaxFailures:   2,
		Cooldown:      time.Minute,
		OnStateChange: func(_, to gobreaker.State) { transitions = append(transitions, to) },
	})

	ctx := context.Background()
	assert.Error(t, m.Send(ctx, ab.Email{}))
	assert.Error(t, m.Send(ctx, ab.Email{}))
	assert.Equal(t, gobreaker.StateOpen, m.State())

	next.err = nil
	assert.ErrorIs(t, m.Send(ctx, ab.Email{}), gobreaker.ErrOpenState)
	assert.Empty(t, next.sent)
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

func TestTOTP(t *testing.T) {
	secret, url, err := NewTOTPKey("Goal Tracker", "ada@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "otpauth://totp/"))

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	assert.True(t, ValidateTOTP(code, secret))
	assert.False(t, ValidateTOTP("000000x", secret))
	assert.False(t, ValidateTOTP(code, ""))
}

func TestRecoveryCodes(t *testing.T) {
	plain, hashed, err := NewRecoveryCodes()
	require.NoError(t, err)
	require.Len(t, plain, 10)
	require.Len(t, hashed, 10)
	assert.Regexp(t, `^[a-z2-7]{5}-[a-z2-7]{5}$`, plain[0])

	rest, ok := UseRecoveryCode(hashed, " "+strings.ToUpper(plain[3])+" ")
	require.True(t, ok)
	assert.Len(t, rest, 9)

	_, ok = UseRecoveryCode(rest, plain[3])
	assert.False(t, ok)
}

func newTestAuthboss(t *testing.T) *ab.Authboss {
	t.Helper()
	key := []byte("0123456789abcdef0123456789abcdef")
	db := testutil.NewDB(t)
	a, err := NewAuthboss(Options{
		RootURL:      "https://goals.example.com",
		SessionState: NewCookieStateRW("goal_session", key, key, false, false),
		CookieState:  NewCookieStateRW("goal_cookie", key, key, true, false),
		Storer:       NewUserStorer(sqlite.NewUserRepo(db)),
		Mailer:       &captureMailer{},
	})
	require.NoError(t, err)
	return a
}

func TestSession_RoundTripThroughCookie(t *testing.T) {
	a := newTestAuthboss(t)

	signIn := a.LoadClientStateMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := ReadSession(r)
		assert.False(t, ok)
		SignIn(w, "user-1", true)
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	signIn.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	var got Session
	read := a.LoadClientStateMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		got, ok = ReadSession(r)
		assert.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	read.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, Session{UserID: "user-1", Pending: true}, got)
}

func TestSession_TamperedCookieReadsEmpty(t *testing.T) {
	a := newTestAuthboss(t)
	h := a.LoadClientStateMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := ReadSession(r)
		assert.False(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "goal_session", Value: "forged"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUserIDFromContext(t *testing.T) {
	_, ok := UserID(context.Background())
	assert.False(t, ok)

	_, ok = UserID(WithSession(context.Background(), Session{UserID: "u1", Pending: true}))
	assert.False(t, ok)

	id, ok := UserID(WithSession(context.Background(), Session{UserID: "u1"}))
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}

func TestUserStorer(t *testing.T) {
	db := testutil.NewDB(t)
	s := NewUserStorer(sqlite.NewUserRepo(db))
	ctx := context.Background()

	_, err := s.Load(ctx, "missing")
	assert.ErrorIs(t, err, ab.ErrUserNotFound)

	u := s.New(ctx).(*ABUser)
	u.PutEmail("ada@example.com")
	require.NoError(t, s.Create(ctx, u))
	assert.NotEmpty(t, u.GetPID())

	dup := &ABUser{Email: "ada@example.com"}
	assert.ErrorIs(t, s.Create(ctx, dup), ab.ErrUserFound)

	loaded, err := s.Load(ctx, u.GetPID())
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", loaded.(*ABUser).GetEmail())
}
