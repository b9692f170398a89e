package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/psicare/manager-api/internal/email"
	"github.com/psicare/manager-api/internal/model"
	"github.com/psicare/manager-api/internal/repository"
	"github.com/psicare/manager-api/pkg/auth"
	apperrors "github.com/psicare/manager-api/pkg/errors"
	"github.com/psicare/manager-api/pkg/logger"
	"github.com/psicare/manager-api/pkg/messaging"
	"github.com/psicare/manager-api/pkg/metrics"
	"github.com/psicare/manager-api/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

const defaultProfileName = "Usuário"

// Bootstrap modes.
const (
	ModeDocumentValidation = "document_validation"
	ModeAuthenticated      = "authenticated"
	ModeAnonymous          = "anonymous"
)

// BootstrapResult tells the client which shell to show on first load.
type BootstrapResult struct {
	Mode       string    `json:"mode"`
	DocumentID string    `json:"document_id,omitempty"`
	State      *AppState `json:"state,omitempty"`
}

type Service struct {
	identityRepo repository.IdentityRepository
	profileRepo  repository.ProfileRepository
	hasher       security.PasswordHasher
	jwtSvc       auth.JWTService
	revoker      Revoker
	broker       messaging.Broker
	emailSvc     email.Service
	logger       *logger.Logger
	metrics      *metrics.Metrics
}

func NewService(
	identityRepo repository.IdentityRepository,
	profileRepo repository.ProfileRepository,
	hasher security.PasswordHasher,
	jwtSvc auth.JWTService,
	revoker Revoker,
	broker messaging.Broker,
	emailSvc email.Service,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		identityRepo: identityRepo,
		profileRepo:  profileRepo,
		hasher:       hasher,
		jwtSvc:       jwtSvc,
		revoker:      revoker,
		broker:       broker,
		emailSvc:     emailSvc,
		logger:       logger,
		metrics:      metrics,
	}
}

func (s *Service) SignUp(ctx context.Context, req *model.SignUpRequest) (*model.TokenResponse, error) {
	emailAddr := strings.ToLower(strings.TrimSpace(req.Email))
	if existing, err := s.identityRepo.GetByEmail(ctx, emailAddr); err == nil && existing != nil {
		return nil, apperrors.Conflict("email already registered", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) {
			return nil, apperrors.BadRequest(fmt.Sprintf("password must have at least %d characters", security.MinPasswordLen), err)
		}
		return nil, apperrors.Internal(err)
	}

	identity := &model.Identity{
		ID:           uuid.New(),
		Email:        emailAddr,
		PasswordHash: hash,
		Metadata: model.JSONMap{
			"full_name": strings.TrimSpace(req.FullName),
			"role":      strings.TrimSpace(req.Role),
			"cpf":       req.CPF,
			"crm":       req.CRM,
			"phone":     req.Phone,
		},
	}
	if err := s.identityRepo.Create(ctx, identity); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, apperrors.Conflict("email already registered", err)
		}
		return nil, apperrors.Internal(err)
	}

	profile := s.ResolveProfile(ctx, identity)
	resp, err := s.issue(profile.Principal())
	if err != nil {
		return nil, err
	}

	if err := s.emailSvc.SendWelcome(ctx, identity.Email, profile.Name); err != nil {
		s.logger.Warn(err, "Failed to send welcome email", "identity_id", identity.ID.String())
	}
	s.publish(ctx, model.SessionSignedIn, identity.ID)

	return resp, nil
}

func (s *Service) SignIn(ctx context.Context, emailAddr, password string) (*model.TokenResponse, error) {
	identity, err := s.identityRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(emailAddr)))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error(err, "Failed to look up identity")
		}
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	if err := s.hasher.Compare(identity.PasswordHash, password); err != nil {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials)
	}

	profile := s.ResolveProfile(ctx, identity)
	resp, err := s.issue(profile.Principal())
	if err != nil {
		return nil, err
	}

	s.publish(ctx, model.SessionSignedIn, identity.ID)
	return resp, nil
}

// SignOut revokes the token for the rest of its lifetime.
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return apperrors.Unauthorized(err)
	}

	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		return apperrors.Internal(err)
	}

	if id, err := uuid.Parse(claims.Subject); err == nil {
		s.publish(ctx, model.SessionSignedOut, id)
	}
	return nil
}

// CurrentSession validates the token and returns the principal it carries.
func (s *Service) CurrentSession(ctx context.Context, token string) (*model.Principal, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if revoked {
		return nil, apperrors.Unauthorized(errors.New("session has been signed out"))
	}

	principal, err := claims.Principal()
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return principal, nil
}

// ResolveProfile returns the profile of identity, creating it from the
// sign-up metadata on first use. Storage failures are logged and a profile
// built from the metadata is returned instead.
func (s *Service) ResolveProfile(ctx context.Context, identity *model.Identity) *model.Profile {
	profile, err := s.profileRepo.Get(ctx, identity.ID)
	if err == nil {
		return profile
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn(err, "Failed to load profile", "identity_id", identity.ID.String())
		return seedProfile(identity)
	}

	profile = seedProfile(identity)
	if err := s.profileRepo.Create(ctx, profile); err != nil {
		s.logger.Warn(err, "Failed to create profile", "identity_id", identity.ID.String())
		return profile
	}
	s.metrics.ProfilesCreated.Inc()
	return profile
}

func seedProfile(identity *model.Identity) *model.Profile {
	meta := identity.Metadata
	name := meta.String("fullName", "full_name", "name")
	if name == "" {
		name = defaultProfileName
	}
	role := meta.String("role")
	if role == "" {
		role = model.DefaultRoleLabel
	}
	photo := meta.String("avatar_url", "photo_url")
	if photo == "" {
		photo = model.AvatarURL(name)
	}

	return &model.Profile{
		Base:     model.Base{ID: identity.ID},
		Name:     name,
		Role:     role,
		Email:    identity.Email,
		Phone:    meta.String("phone"),
		CRM:      meta.String("crm"),
		CPF:      meta.String("cpf"),
		PhotoURL: photo,
	}
}

// Bootstrap decides the initial mode. A document id always wins and skips
// authentication.
func (s *Service) Bootstrap(ctx context.Context, docID, token string) *BootstrapResult {
	if docID = strings.TrimSpace(docID); docID != "" {
		return &BootstrapResult{Mode: ModeDocumentValidation, DocumentID: docID}
	}
	if token == "" {
		return &BootstrapResult{Mode: ModeAnonymous}
	}

	principal, err := s.CurrentSession(ctx, token)
	if err != nil {
		return &BootstrapResult{Mode: ModeAnonymous}
	}
	return &BootstrapResult{Mode: ModeAuthenticated, State: NewAppState(principal)}
}

// Subscribe streams session changes of one identity until ctx is done.
func (s *Service) Subscribe(ctx context.Context, identityID uuid.UUID) (<-chan model.SessionEvent, error) {
	raw, err := s.broker.Subscribe(ctx, messaging.ChannelSessionChanges)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to session changes: %w", err)
	}

	out := make(chan model.SessionEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-raw:
				if !ok {
					return
				}
				var event model.SessionEvent
				if err := json.Unmarshal(payload, &event); err != nil {
					s.logger.Warn(err, "Dropping malformed session event")
					continue
				}
				if event.IdentityID != identityID {
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *Service) issue(p *model.Principal) (*model.TokenResponse, error) {
	token, claims, err := s.jwtSvc.GenerateAccessToken(p)
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	return &model.TokenResponse{
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt.Time,
		Principal:   p,
	}, nil
}

func (s *Service) publish(ctx context.Context, eventType string, identityID uuid.UUID) {
	event := model.SessionEvent{Type: eventType, IdentityID: identityID, At: time.Now()}
	if err := s.broker.Publish(ctx, messaging.ChannelSessionChanges, event); err != nil {
		s.logger.Warn(err, "Failed to publish session event", "type", eventType)
		return
	}
	s.metrics.SessionEvents.WithLabelValues(eventType).Inc()
}
