package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	authz "github.com/yigit/scms/internal/app/auth"
	"github.com/yigit/scms/internal/app/models"
	"github.com/yigit/scms/internal/app/models/dto"
	"github.com/yigit/scms/internal/app/repositories"
	"github.com/yigit/scms/internal/pkg/apperrors"
	"github.com/yigit/scms/internal/pkg/auth"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// NewUserInput holds the fields of a user to be created
type NewUserInput struct {
	Username    string
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Role        models.RoleType
	IsSuperuser bool
	IsStaff     bool
	Phone       string
	DateOfBirth *time.Time
	Address     string
}

// UserService defines the interface for user operations
type UserService interface {
	CreateUser(ctx context.Context, in NewUserInput) (*models.User, error)
	CreateUserTx(ctx context.Context, repos *repositories.Repositories, in NewUserInput) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, actor authz.Actor) ([]*models.User, error)
	UpdateProfile(ctx context.Context, actor authz.Actor, req *dto.UpdateProfileRequest) (*models.User, error)
	ChangePassword(ctx context.Context, actor authz.Actor, req *dto.ChangePasswordRequest) error
	ListAdmins(ctx context.Context) ([]*models.User, error)
	ReplaceAdmin(ctx context.Context, in NewUserInput, force bool) (created *models.User, replaced []*models.User, err error)
	CleanupAdmins(ctx context.Context, keep string, confirm bool) (kept *models.User, removed []*models.User, err error)
}

// userServiceImpl implements UserService
type userServiceImpl struct {
	store      repositories.Store
	policy     *authz.Policy
	validate   *validator.Validate
	bcryptCost int
	logger     zerolog.Logger
}

// NewUserService creates a new UserService
func NewUserService(store repositories.Store, policy *authz.Policy, bcryptCost int, logger zerolog.Logger) UserService {
	if bcryptCost == 0 {
		bcryptCost = auth.DefaultBcryptCost
	}
	return &userServiceImpl{
		store:      store,
		policy:     policy,
		validate:   validator.New(),
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

// validatePassword checks if password meets requirements
func validatePassword(errs apperrors.FieldErrors, field, password string) {
	if len(password) < 8 {
		errs.Add(field, "This password is too short. It must contain at least 8 characters.")
		return
	}

	hasLetter, hasDigit := false, false
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		errs.Add(field, "This password must contain at least one letter.")
	}
	if !hasDigit {
		errs.Add(field, "This password must contain at least one digit.")
	}
}

func (s *userServiceImpl) validateEmail(errs apperrors.FieldErrors, email string) {
	if strings.TrimSpace(email) == "" {
		errs.Add("email", "This field is required.")
		return
	}
	if err := s.validate.Var(email, "email"); err != nil {
		errs.Add("email", "Enter a valid email address.")
	}
}

// checkUnique adds field errors for a username or email already held by another user
func checkUnique(ctx context.Context, repos *repositories.Repositories, errs apperrors.FieldErrors, username, email string, excludeID int64) error {
	if username != "" {
		exists, err := repos.UserRepository.UsernameExists(ctx, username, excludeID)
		if err != nil {
			return fmt.Errorf("error checking if username exists: %w", err)
		}
		if exists {
			errs.Add("username", "A user with that username already exists.")
		}
	}
	if email != "" {
		exists, err := repos.UserRepository.EmailExists(ctx, email, excludeID)
		if err != nil {
			return fmt.Errorf("error checking if email exists: %w", err)
		}
		if exists {
			errs.Add("email", "A user with this email already exists.")
		}
	}
	return nil
}

// ensureNoAdmin serializes admin creation and fails when an admin already exists
func ensureNoAdmin(ctx context.Context, repos *repositories.Repositories) error {
	if err := repos.LockRepository.AcquireXactLock(ctx, repositories.LockAdminRole); err != nil {
		return fmt.Errorf("failed to acquire admin lock: %w", err)
	}

	role := models.RoleAdmin
	admins, err := repos.UserRepository.List(ctx, repositories.UserFilter{Role: &role})
	if err != nil {
		return fmt.Errorf("failed to list admins: %w", err)
	}
	if len(admins) > 0 {
		return adminExistsError(admins[0])
	}
	return nil
}

func adminExistsError(admin *models.User) error {
	return apperrors.NewFieldError("role", "An admin user already exists: "+admin.Username)
}

// nameExistingAdmin turns a storage-level single admin violation into the field error
// naming the admin. It reads outside the failed transaction, so call it after the
// transaction has ended.
func nameExistingAdmin(ctx context.Context, store repositories.Store, err error) error {
	if !errors.Is(err, apperrors.ErrAdminAlreadyExists) {
		return err
	}
	role := models.RoleAdmin
	admins, lerr := store.Repos().UserRepository.List(ctx, repositories.UserFilter{Role: &role})
	if lerr != nil || len(admins) == 0 {
		return err
	}
	return adminExistsError(admins[0])
}

// CreateUser creates a user in its own transaction
func (s *userServiceImpl) CreateUser(ctx context.Context, in NewUserInput) (*models.User, error) {
	var user *models.User
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		var err error
		user, err = s.CreateUserTx(ctx, repos, in)
		return err
	})
	if err != nil {
		return nil, nameExistingAdmin(ctx, s.store, err)
	}
	return user, nil
}

// CreateUserTx is the single write path for new users. It validates the input, enforces
// username and email uniqueness and the single admin rule, then stores the user.
func (s *userServiceImpl) CreateUserTx(ctx context.Context, repos *repositories.Repositories, in NewUserInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Role == "" {
		in.Role = models.RoleStudent
	}

	errs := apperrors.FieldErrors{}
	switch {
	case in.Username == "":
		errs.Add("username", "This field is required.")
	case len(in.Username) > 150:
		errs.Add("username", "Ensure this field has no more than 150 characters.")
	case !usernamePattern.MatchString(in.Username):
		errs.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}
	s.validateEmail(errs, in.Email)
	validatePassword(errs, "password", in.Password)
	if !in.Role.Valid() {
		errs.Add("role", "\""+string(in.Role)+"\" is not a valid choice.")
	}
	if err := checkUnique(ctx, repos, errs, in.Username, in.Email, 0); err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if in.Role == models.RoleAdmin {
		if err := ensureNoAdmin(ctx, repos); err != nil {
			return nil, err
		}
	}

	hash, err := auth.HashPasswordWithCost(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Username:    in.Username,
		Email:       in.Email,
		Password:    hash,
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		RoleType:    in.Role,
		IsSuperuser: in.IsSuperuser,
		IsStaff:     in.IsStaff || in.Role == models.RoleAdmin,
		IsActive:    true,
		Phone:       in.Phone,
		DateOfBirth: in.DateOfBirth,
		Address:     in.Address,
	}
	if err := repos.UserRepository.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("user creation error: %w", err)
	}

	s.logger.Info().Int64("userID", user.ID).Str("username", user.Username).Str("role", string(user.RoleType)).Msg("User created")
	return user, nil
}

// GetUserByID retrieves a user by ID
func (s *userServiceImpl) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.store.Repos().UserRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ListUsers returns every user for admins and only the caller otherwise
func (s *userServiceImpl) ListUsers(ctx context.Context, actor authz.Actor) ([]*models.User, error) {
	filter := repositories.UserFilter{}
	if err := s.policy.Authorize(actor, authz.UserTarget(0), authz.OpManageUsers); err != nil {
		filter.ID = &actor.UserID
	}
	return s.store.Repos().UserRepository.List(ctx, filter)
}

// UpdateProfile applies the non-nil fields of req to the caller's own user
func (s *userServiceImpl) UpdateProfile(ctx context.Context, actor authz.Actor, req *dto.UpdateProfileRequest) (*models.User, error) {
	if err := s.policy.Authorize(actor, authz.UserTarget(actor.UserID), authz.OpWrite); err != nil {
		return nil, err
	}

	var user *models.User
	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		var err error
		user, err = repos.UserRepository.GetByID(ctx, actor.UserID)
		if err != nil {
			return err
		}
		return s.applyProfile(ctx, repos, user, req)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *userServiceImpl) applyProfile(ctx context.Context, repos *repositories.Repositories, user *models.User, req *dto.UpdateProfileRequest) error {
	errs := apperrors.FieldErrors{}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		s.validateEmail(errs, email)
		if !errs.HasErrors() {
			if err := checkUnique(ctx, repos, errs, "", email, user.ID); err != nil {
				return err
			}
		}
		user.Email = email
	}
	if req.DateOfBirth != nil {
		dob, err := dto.ParseDate(req.DateOfBirth)
		if err != nil {
			errs.Add("date_of_birth", "Date has wrong format. Use YYYY-MM-DD.")
		}
		user.DateOfBirth = dob
	}
	if err := errs.Err(); err != nil {
		return err
	}

	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Address != nil {
		user.Address = *req.Address
	}

	if err := repos.UserRepository.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// ChangePassword verifies the old password and stores the new one.
// Outstanding refresh tokens of the user are revoked.
func (s *userServiceImpl) ChangePassword(ctx context.Context, actor authz.Actor, req *dto.ChangePasswordRequest) error {
	return s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		user, err := repos.UserRepository.GetByID(ctx, actor.UserID)
		if err != nil {
			return err
		}

		errs := apperrors.FieldErrors{}
		if !auth.CheckPassword(user.Password, req.OldPassword) {
			errs.Add("old_password", "Old password is incorrect")
		}
		if req.NewPassword != req.ConfirmPassword {
			errs.Add("confirm_password", "New passwords don't match")
		}
		validatePassword(errs, "new_password", req.NewPassword)
		if err := errs.Err(); err != nil {
			return err
		}

		hash, err := auth.HashPasswordWithCost(req.NewPassword, s.bcryptCost)
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}
		if err := repos.UserRepository.UpdatePassword(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("failed to update password: %w", err)
		}
		if err := repos.TokenRepository.RevokeAllUserTokens(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to revoke refresh tokens: %w", err)
		}

		s.logger.Info().Int64("userID", user.ID).Msg("Password changed")
		return nil
	})
}

// ListAdmins returns users holding the admin role, oldest first
func (s *userServiceImpl) ListAdmins(ctx context.Context) ([]*models.User, error) {
	role := models.RoleAdmin
	return s.store.Repos().UserRepository.List(ctx, repositories.UserFilter{Role: &role})
}

// ReplaceAdmin creates the admin account. When an admin exists the call fails unless
// force is set, in which case the existing admins are deleted first.
func (s *userServiceImpl) ReplaceAdmin(ctx context.Context, in NewUserInput, force bool) (*models.User, []*models.User, error) {
	in.Role = models.RoleAdmin
	var created *models.User
	var replaced []*models.User

	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		if err := repos.LockRepository.AcquireXactLock(ctx, repositories.LockAdminRole); err != nil {
			return fmt.Errorf("failed to acquire admin lock: %w", err)
		}

		role := models.RoleAdmin
		admins, err := repos.UserRepository.List(ctx, repositories.UserFilter{Role: &role})
		if err != nil {
			return fmt.Errorf("failed to list admins: %w", err)
		}
		if len(admins) > 0 && !force {
			return apperrors.NewConflictError(fmt.Sprintf("Admin account already exists: %s (%s)", admins[0].Username, admins[0].Email))
		}
		for _, a := range admins {
			if err := repos.UserRepository.Delete(ctx, a.ID); err != nil {
				return fmt.Errorf("failed to delete admin %s: %w", a.Username, err)
			}
		}
		replaced = admins

		created, err = s.CreateUserTx(ctx, repos, in)
		return err
	})
	if err != nil {
		return nil, nil, nameExistingAdmin(ctx, s.store, err)
	}
	return created, replaced, nil
}

// CleanupAdmins keeps one admin (the named one, or the oldest) and deletes the rest.
// Without confirm nothing is deleted and the planned removals are returned.
func (s *userServiceImpl) CleanupAdmins(ctx context.Context, keep string, confirm bool) (*models.User, []*models.User, error) {
	var kept *models.User
	var removed []*models.User

	err := s.store.WithTransaction(ctx, func(ctx context.Context, repos *repositories.Repositories) error {
		role := models.RoleAdmin
		admins, err := repos.UserRepository.List(ctx, repositories.UserFilter{Role: &role})
		if err != nil {
			return fmt.Errorf("failed to list admins: %w", err)
		}
		if len(admins) == 0 {
			return nil
		}

		kept = admins[0]
		if keep != "" {
			kept = nil
			for _, a := range admins {
				if a.Username == keep {
					kept = a
					break
				}
			}
			if kept == nil {
				return apperrors.NewResourceNotFoundError(fmt.Sprintf("Admin with username %q not found", keep))
			}
		}

		for _, a := range admins {
			if a.ID == kept.ID {
				continue
			}
			removed = append(removed, a)
			if !confirm {
				continue
			}
			if err := repos.UserRepository.Delete(ctx, a.ID); err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
				return fmt.Errorf("failed to delete admin %s: %w", a.Username, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return kept, removed, nil
}
