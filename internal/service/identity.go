package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-attendance/internal/auth"
	"github.com/Shivanand-hulikatti/event-attendance/internal/errdef"
	"github.com/Shivanand-hulikatti/event-attendance/internal/model"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type ActorRepository interface {
	Create(ctx context.Context, actor model.Actor, passwordHash string) error
	GetByID(ctx context.Context, id string) (model.Actor, error)
	// GetByEmail matches case-insensitively and returns the stored hash.
	GetByEmail(ctx context.Context, email string) (model.Actor, string, error)
}

// IdentityService is the actor registry: registration, login and token
// resolution. An actor's role is fixed when it registers.
type IdentityService struct {
	actors     ActorRepository
	tokens     *auth.JWTManager
	bcryptCost int
	logger     zerolog.Logger
	validator  *validator.Validate
	now        func() time.Time

	// dummyHash is compared on the unknown-email path so both login
	// failures cost one bcrypt comparison.
	dummyHash []byte
	compare   func(hash, password []byte) error
}

func NewIdentityService(actors ActorRepository, tokens *auth.JWTManager, bcryptCost int, logger zerolog.Logger) *IdentityService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcryptCost)
	if err != nil {
		logger.Error().Err(err).Msg("failed to prepare login dummy hash")
	}
	return &IdentityService{
		actors:     actors,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		logger:     logger.With().Str("component", "identity").Logger(),
		validator:  newValidator(),
		now:        func() time.Time { return time.Now().UTC() },
		dummyHash:  dummy,
		compare:    bcrypt.CompareHashAndPassword,
	}
}

// Register creates an actor with a hashed password.
func (s *IdentityService) Register(ctx context.Context, req model.RegisterRequest) (model.Actor, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validationError(s.validator.Struct(req)); err != nil {
		return model.Actor{}, err
	}
	role, ok := model.ParseRole(req.Role)
	if !ok {
		return model.Actor{}, errdef.NewValidation("role must be one of [organizer attendee]")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return model.Actor{}, errdef.NewValidation("password must be at most 72 bytes")
		}
		return model.Actor{}, fmt.Errorf("hash password: %w", err)
	}

	actor := model.Actor{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Role:      role,
		CreatedAt: s.now(),
	}
	if err := s.actors.Create(ctx, actor, string(hash)); err != nil {
		if errdef.IsDuplicateIdentity(err) {
			return model.Actor{}, err
		}
		return model.Actor{}, fmt.Errorf("create actor: %w", err)
	}

	s.logger.Info().
		Str("actor_id", actor.ID).
		Str("role", string(actor.Role)).
		Msg("actor registered")
	return actor, nil
}

// Authenticate checks credentials and issues a session. An unknown email and
// a wrong password fail with the same error after the same bcrypt work.
func (s *IdentityService) Authenticate(ctx context.Context, creds model.Credentials) (model.Session, error) {
	email := strings.ToLower(strings.TrimSpace(creds.Email))
	if email == "" || creds.Password == "" {
		return model.Session{}, errdef.NewAuth("invalid email or password")
	}

	actor, hash, err := s.actors.GetByEmail(ctx, email)
	if err != nil {
		if errdef.IsNotFound(err) {
			_ = s.compare(s.dummyHash, []byte(creds.Password))
			return model.Session{}, errdef.NewAuth("invalid email or password")
		}
		return model.Session{}, fmt.Errorf("lookup actor: %w", err)
	}
	if err := s.compare([]byte(hash), []byte(creds.Password)); err != nil {
		s.logger.Debug().Str("actor_id", actor.ID).Msg("password mismatch")
		return model.Session{}, errdef.NewAuth("invalid email or password")
	}

	session, err := s.tokens.Generate(actor)
	if err != nil {
		return model.Session{}, fmt.Errorf("issue session: %w", err)
	}
	return session, nil
}

// Resolve validates a session token and returns the session with the role
// read back from the registry.
func (s *IdentityService) Resolve(ctx context.Context, token string) (model.Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return model.Session{}, errdef.NewAuth("%v", err)
	}

	actor, err := s.actors.GetByID(ctx, claims.Subject)
	if err != nil {
		if errdef.IsNotFound(err) {
			return model.Session{}, errdef.NewAuth("unknown actor")
		}
		return model.Session{}, fmt.Errorf("resolve actor: %w", err)
	}

	session := model.Session{
		Token:   token,
		ActorID: actor.ID,
		Role:    actor.Role,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.UTC()
	}
	return session, nil
}
