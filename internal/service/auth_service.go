package service

import (
	"context"
	"strings"

	"github.com/mbeoliero/kit/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/mbeoliero/campuschat/internal/config"
	"github.com/mbeoliero/campuschat/internal/entity"
	"github.com/mbeoliero/campuschat/internal/repository"
	"github.com/mbeoliero/campuschat/pkg/errcode"
	"github.com/mbeoliero/campuschat/pkg/jwt"
)

const (
	minPasswordLength = 6
	maxUsernameLength = 64
)

// AuthService handles authentication logic
type AuthService struct {
	userRepo   *repository.UserRepo
	cfg        *config.Config
	tokenStore *jwt.TokenStore
}

// NewAuthService creates a new AuthService. tokenStore may be nil, in which
// case tokens stay valid until they expire.
func NewAuthService(userRepo *repository.UserRepo, cfg *config.Config, tokenStore *jwt.TokenStore) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		cfg:        cfg,
		tokenStore: tokenStore,
	}
}

// RegisterRequest represents user registration request
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginRequest represents user login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents user login response
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt int64            `json:"expires_at"`
	User      *entity.UserInfo `json:"user"`
}

// Register registers a new user
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*entity.UserInfo, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || len(username) > maxUsernameLength {
		return nil, errcode.ErrInvalidParam.WithMsg("username is required")
	}
	if len(req.Password) < minPasswordLength {
		return nil, errcode.ErrPasswordShort
	}

	exists, err := s.userRepo.ExistsByUsername(ctx, username)
	if err != nil {
		log.CtxError(ctx, "check user exists failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if exists {
		return nil, errcode.ErrUserExists
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.CtxError(ctx, "hash password failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	user := &entity.User{
		Username: username,
		Password: string(hashedPassword),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		log.CtxError(ctx, "create user failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user registered: user_id=%d, username=%s", user.Id, username)
	return user.ToUserInfo(), nil
}

// Login authenticates a user and returns a token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		log.CtxError(ctx, "get user failed: username=%s, error=%v", req.Username, err)
		return nil, errcode.ErrInternalServer
	}
	// Unknown user and wrong password look the same to the caller.
	if user == nil {
		return nil, errcode.ErrLoginFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errcode.ErrLoginFailed
	}

	token, claims, err := jwt.GenerateToken(user.Id, user.Username, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		log.CtxError(ctx, "generate token failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	if err := s.tokenStore.StoreToken(ctx, user.Id, claims.ID); err != nil {
		log.CtxError(ctx, "store token failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user logged in: user_id=%d", user.Id)
	return &LoginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Unix(),
		User:      user.ToUserInfo(),
	}, nil
}

// ValidateToken parses a token and checks it has not been revoked
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := jwt.ParseToken(token, s.cfg.JWT.Secret)
	if err != nil {
		return nil, err
	}

	valid, err := s.tokenStore.IsTokenValid(ctx, claims.UserId, claims.ID)
	if err != nil {
		log.CtxWarn(ctx, "check token status failed: %v", err)
		// Fall back to JWT validation only if Redis check fails
		return claims, nil
	}
	if !valid {
		return nil, errcode.ErrTokenInvalid
	}
	return claims, nil
}

// Logout revokes one token
func (s *AuthService) Logout(ctx context.Context, userId int64, tokenId string) error {
	if err := s.tokenStore.InvalidateToken(ctx, userId, tokenId); err != nil {
		log.CtxError(ctx, "invalidate token failed: %v", err)
		return errcode.ErrInternalServer
	}
	log.CtxInfo(ctx, "user logged out: user_id=%d", userId)
	return nil
}
