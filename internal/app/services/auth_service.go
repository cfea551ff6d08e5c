package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	authz "github.com/yigit/scms/internal/app/auth"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/pkg/apperrors"
	"github.com/yigit/scms/internal/pkg/auth"
	"github.com/yigit/scms/internal/pkg/tokenstore"
)

// Session is an authenticated user with a freshly issued token pair
type Session struct {
	User    *models.User
	Student *models.Student
	Tokens  *auth.TokenPair
}

// AuthService handles authentication operations
type AuthService struct {
	store      repositories.Store
	users      UserService
	students   StudentService
	jwtService *auth.JWTService
	denylist   tokenstore.Denylist
	now        func() time.Time
	logger     zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	store repositories.Store,
	users UserService,
	students StudentService,
	jwtService *auth.JWTService,
	denylist tokenstore.Denylist,
	logger zerolog.Logger,
) *AuthService {
	return &AuthService{
		store:      store,
		users:      users,
		students:   students,
		jwtService: jwtService,
		denylist:   denylist,
		now:        time.Now,
		logger:     logger,
	}
}

// issueTokens creates a token pair and persists its refresh half
func (s *AuthService) issueTokens(ctx context.Context, repos *repositories.Repositories, user *models.User) (*auth.TokenPair, error) {
	pair, err := s.jwtService.GenerateTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("token generation error: %w", err)
	}
	if err := repos.TokenRepository.CreateToken(ctx, pair.RefreshToken, user.ID, pair.RefreshExpiry); err != nil {
		return nil, fmt.Errorf("token saving error: %w", err)
	}
	return pair, nil
}

// Register creates a user, the student profile for student-role users, and a token pair
func (s *AuthService) Register(ctx context.Context, req *dto.RegisterRequest) (*Session, error) {
	errs := apperrors.FieldErrors{}
	switch confirm := req.Confirmation(); {
	case confirm == "":
		errs.Add("password_confirm", "Password confirmation is required")
	case confirm != req.Password:
		errs.Add("password_confirm", "Passwords don't match")
	}
	dob, err := dto.ParseDate(req.DateOfBirth)
	if err != nil {
		errs.Add("date_of_birth", "Date has wrong format. Use YYYY-MM-DD.")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	session := &Session{}
	err = withNumberRetry(ctx, s.store, func(ctx context.Context, repos *repositories.Repositories) error {
		user, err := s.users.CreateUserTx(ctx, repos, NewUserInput{
			Username:    req.Username,
			Email:       req.Email,
			Password:    req.Password,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Role:        req.Role,
			Phone:       req.Phone,
			DateOfBirth: dob,
			Address:     req.Address,
		})
		if err != nil {
			return err
		}

		session.Student = nil
		if user.IsStudent() {
			student, err := s.students.CreateStudentProfileTx(ctx, repos, user)
			if err != nil {
				return err
			}
			session.Student = student
		}

		pair, err := s.issueTokens(ctx, repos, user)
		if err != nil {
			return err
		}
		session.User, session.Tokens = user, pair
		return nil
	})
	if err != nil {
		return nil, nameExistingAdmin(ctx, s.store, err)
	}

	s.logger.Info().Int64("userID", session.User.ID).Str("username", session.User.Username).Str("role", string(session.User.RoleType)).Msg("User registered")
	return session, nil
}

// Login authenticates a user by username and password
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest) (*Session, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	repos := s.store.Repos()
	user, err := repos.UserRepository.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	pair, err := s.issueTokens(ctx, repos, user)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := repos.UserRepository.UpdateLastLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn().Err(err).Int64("userID", user.ID).Msg("Could not record last login")
	} else {
		user.LastLoginAt = &now
	}

	s.logger.Info().Int64("userID", user.ID).Str("username", user.Username).Msg("User logged in")
	return &Session{User: user, Tokens: pair}, nil
}

// RefreshToken rotates a refresh token into a new pair. The old token cannot be reused.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apperrors.ErrTokenInvalid
	}

	session := &Session{}
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		userID, _, err := repos.TokenRepository.GetTokenByValue(ctx, refreshToken)
		if err != nil {
			return err
		}
		user, err := repos.UserRepository.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return apperrors.ErrAccountDisabled
		}
		if err := repos.TokenRepository.RevokeToken(ctx, refreshToken); err != nil {
			return fmt.Errorf("failed to revoke old token: %w", err)
		}
		pair, err := s.issueTokens(ctx, repos, user)
		if err != nil {
			return err
		}
		session.User, session.Tokens = user, pair
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Logout revokes the given refresh token of the caller and denylists the access token in claims
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims, refreshToken string) error {
	if refreshToken != "" {
		repos := s.store.Repos()
		userID, _, err := repos.TokenRepository.GetTokenByValue(ctx, refreshToken)
		if err != nil || userID != claims.UserID {
			return apperrors.NewBadRequestError("Invalid token")
		}
		if err := repos.TokenRepository.RevokeToken(ctx, refreshToken); err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
	}

	if claims.ID != "" {
		if err := s.denylist.Revoke(ctx, claims.ID, s.jwtService.RemainingTTL(claims)); err != nil {
			return fmt.Errorf("failed to revoke access token: %w", err)
		}
	}

	s.logger.Info().Int64("userID", claims.UserID).Msg("User logged out")
	return nil
}

// IsAccessRevoked reports whether the access token id was denylisted by a logout
func (s *AuthService) IsAccessRevoked(ctx context.Context, jti string) (bool, error) {
	return s.denylist.IsRevoked(ctx, jti)
}

// Profile returns the caller's user record
func (s *AuthService) Profile(ctx context.Context, actor authz.Actor) (*models.User, error) {
	return s.users.GetUserByID(ctx, actor.UserID)
}

// CleanupExpiredTokens drops expired and revoked refresh tokens
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.store.Repos().TokenRepository.CleanupExpiredTokens(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up tokens: %w", err)
	}
	return n, nil
}
