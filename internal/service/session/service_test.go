package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psicare/manager-api/internal/email"
	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository/repotest"
	"github.com/psicare/manager-api/pkg/auth"
	apperrors "github.com/psicare/manager-api/pkg/errors"
	"github.com/psicare/manager-api/pkg/logger"
	"github.com/psicare/manager-api/pkg/messaging"
	"github.com/psicare/manager-api/pkg/metrics"
	"github.com/psicare/manager-api/pkg/security"
)

type fixture struct {
	svc        *Service
	identities *repotest.Identities
	profiles   *repotest.Profiles
	broker     *messaging.MemoryBroker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	jwtSvc, err := auth.NewJWTService("test-secret", time.Hour)
	require.NoError(t, err)

	f := &fixture{
		identities: repotest.NewIdentities(),
		profiles:   repotest.NewProfiles(),
		broker:     messaging.NewMemoryBroker(),
	}
	f.svc = NewService(
		f.identities,
		f.profiles,
		security.NewBcryptHasher(4),
		jwtSvc,
		NewMemoryRevoker(),
		f.broker,
		email.Noop{},
		logger.Nop(),
		metrics.NewNop(),
	)
	return f
}

func TestSignUp_CreatesProfileFromMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.svc.SignUp(ctx, &model.SignUpRequest{
		Email:    "Ana@Clinic.com",
		Password: "secret123",
		FullName: "Ana Souza",
		Role:     "Psiquiatra",
		CRM:      "12345",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, model.RolePractitioner, resp.Principal.Role)
	assert.Equal(t, "Psiquiatra", resp.Principal.RoleLabel)

	profile, err := f.profiles.Get(ctx, resp.Principal.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", profile.Name)
	assert.Equal(t, "ana@clinic.com", profile.Email)
	assert.Equal(t, "12345", profile.CRM)
	assert.Equal(t, "https://ui-avatars.com/api/?name=Ana+Souza&background=random", profile.PhotoURL)
}

func TestSignUp_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := &model.SignUpRequest{Email: "a@b.com", Password: "secret123", FullName: "A"}

	_, err := f.svc.SignUp(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.SignUp(ctx, req)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestSignIn_WrongPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SignUp(ctx, &model.SignUpRequest{Email: "a@b.com", Password: "secret123", FullName: "A"})
	require.NoError(t, err)

	_, err = f.svc.SignIn(ctx, "a@b.com", "wrong-pass")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	_, err = f.svc.SignIn(ctx, "nobody@b.com", "secret123")
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestResolveProfile_DefaultsWhenMetadataEmpty(t *testing.T) {
	f := newFixture(t)
	identity := &model.Identity{ID: uuid.New(), Email: "x@y.com"}

	profile := f.svc.ResolveProfile(context.Background(), identity)
	assert.Equal(t, "Usuário", profile.Name)
	assert.Equal(t, model.DefaultRoleLabel, profile.Role)
	assert.Equal(t, 1, f.profiles.Len())

	// second resolution reuses the stored row
	again := f.svc.ResolveProfile(context.Background(), identity)
	assert.Equal(t, profile.ID, again.ID)
	assert.Equal(t, 1, f.profiles.Len())
}

func TestResolveProfile_StorageFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	f.profiles.Fail = repotest.ErrInjected
	identity := &model.Identity{ID: uuid.New(), Email: "x@y.com", Metadata: model.JSONMap{"name": "Carlos", "role": "admin"}}

	profile := f.svc.ResolveProfile(context.Background(), identity)
	require.NotNil(t, profile)
	assert.Equal(t, "Carlos", profile.Name)
	assert.Equal(t, model.RoleAdministrator, profile.Principal().Role)
}

func TestSignOut_RevokesToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.svc.SignUp(ctx, &model.SignUpRequest{Email: "a@b.com", Password: "secret123", FullName: "A"})
	require.NoError(t, err)

	principal, err := f.svc.CurrentSession(ctx, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.Principal.ID, principal.ID)

	require.NoError(t, f.svc.SignOut(ctx, resp.AccessToken))

	_, err = f.svc.CurrentSession(ctx, resp.AccessToken)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resp, err := f.svc.SignUp(ctx, &model.SignUpRequest{Email: "a@b.com", Password: "secret123", FullName: "A"})
	require.NoError(t, err)

	t.Run("document id skips authentication", func(t *testing.T) {
		res := f.svc.Bootstrap(ctx, "abc", "garbage-token")
		assert.Equal(t, ModeDocumentValidation, res.Mode)
		assert.Equal(t, "abc", res.DocumentID)
		assert.Nil(t, res.State)
	})

	t.Run("valid session", func(t *testing.T) {
		res := f.svc.Bootstrap(ctx, "", resp.AccessToken)
		assert.Equal(t, ModeAuthenticated, res.Mode)
		require.NotNil(t, res.State)
		assert.Equal(t, ViewDashboard, res.State.View)
		assert.Equal(t, resp.Principal.ID, res.State.User.ID)
	})

	t.Run("no session", func(t *testing.T) {
		assert.Equal(t, ModeAnonymous, f.svc.Bootstrap(ctx, "", "").Mode)
		assert.Equal(t, ModeAnonymous, f.svc.Bootstrap(ctx, "  ", "not-a-jwt").Mode)
	})
}

func TestSubscribe_FiltersByIdentity(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resp, err := f.svc.SignUp(ctx, &model.SignUpRequest{Email: "a@b.com", Password: "secret123", FullName: "A"})
	require.NoError(t, err)

	events, err := f.svc.Subscribe(ctx, resp.Principal.ID)
	require.NoError(t, err)

	other := uuid.New()
	require.NoError(t, f.broker.Publish(ctx, messaging.ChannelSessionChanges, model.SessionEvent{Type: model.SessionSignedIn, IdentityID: other}))
	require.NoError(t, f.svc.SignOut(ctx, resp.AccessToken))

	select {
	case ev := <-events:
		assert.Equal(t, model.SessionSignedOut, ev.Type)
		assert.Equal(t, resp.Principal.ID, ev.IdentityID)
	case <-time.After(time.Second):
		t.Fatal("expected a session event")
	}
}
