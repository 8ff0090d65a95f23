package services

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/projectaudit/engine/internal/models"
	"github.com/projectaudit/engine/internal/repository"
	appErr "github.com/projectaudit/engine/pkg/errors"
	"github.com/projectaudit/engine/pkg/logger"
)

const tokenTTL = 24 * time.Hour

type AuthService interface {
	Register(ctx context.Context, input *RegisterInput) (*models.User, error)
	// Login checks the password and that the account holds the requested role.
	Login(ctx context.Context, email, password, role string) (string, *models.User, error)
	ListFaculty(ctx context.Context) ([]models.User, error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Claims are carried by login tokens.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	userRepo   repository.UserRepository
	hmacSecret []byte
	now        func() time.Time
}

func NewAuthService(userRepo repository.UserRepository, secret []byte) AuthService {
	return &authService{
		userRepo:   userRepo,
		hmacSecret: secret,
		now:        time.Now,
	}
}

var _ AuthService = (*authService)(nil)

func (s *authService) Register(ctx context.Context, input *RegisterInput) (*models.User, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)
	if name == "" || email == "" || input.Password == "" || input.Role == "" {
		return nil, appErr.New(appErr.CodeInvalid, "all fields are required")
	}

	var existing models.User
	err := s.userRepo.GetByEmail(ctx, email, &existing)
	switch {
	case err == nil:
		return nil, appErr.New(appErr.CodeConflict, "email already registered")
	case !appErr.IsCode(err, appErr.CodeNotFound):
		return nil, err
	}

	if input.Role != models.RoleStudent && input.Role != models.RoleFaculty {
		return nil, appErr.New(appErr.CodeInvalid, "invalid role specified")
	}

	ph, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErr.Internal(err, "hash password")
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(ph),
		Role:         input.Role,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info("user registered", zap.String("user_id", user.ID.String()), zap.String("role", user.Role))
	return user, nil
}

func (s *authService) Login(ctx context.Context, email, password, role string) (string, *models.User, error) {
	invalid := appErr.New(appErr.CodeUnauthorized, "invalid credentials or role mismatch")

	var user models.User
	if err := s.userRepo.GetByEmail(ctx, email, &user); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return "", nil, invalid
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, invalid
	}
	if user.Role != role {
		return "", nil, invalid
	}

	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})
	tokenString, err := token.SignedString(s.hmacSecret)
	if err != nil {
		return "", nil, appErr.Internal(err, "sign token")
	}

	logger.Ctx(ctx).Info("user logged in", zap.String("user_id", user.ID.String()))
	return tokenString, &user, nil
}

func (s *authService) ListFaculty(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListByRole(ctx, models.RoleFaculty)
}
