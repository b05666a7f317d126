package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/baharkarakas/tokenledger/internal/apperr"
	"github.com/baharkarakas/tokenledger/internal/auth"
	"github.com/baharkarakas/tokenledger/internal/chain"
	"github.com/baharkarakas/tokenledger/internal/models"
	repo "github.com/baharkarakas/tokenledger/internal/repository"
)

type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	ExpiresIn    time.Duration `json:"expires_in"`
}

type UserService struct {
	r  repo.Users
	tm *auth.TokenManager
}

func NewUserService(r repo.Users, tm *auth.TokenManager) *UserService {
	return &UserService{r: r, tm: tm}
}

func (s *UserService) Register(ctx context.Context, username, email, password string) (models.User, error) {
	u := models.User{Username: strings.TrimSpace(username), Email: strings.ToLower(strings.TrimSpace(email)), Role: "user"}
	if err := u.Validate(); err != nil {
		return models.User{}, apperr.Wrap(apperr.KindInvalidInput, err.Error(), err)
	}
	if len(password) < 8 {
		return models.User{}, apperr.New(apperr.KindInvalidInput, "password must be at least 8 characters")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	created, err := s.r.Create(ctx, u.Username, u.Email, hash, u.Role)
	if errors.Is(err, repo.ErrDuplicate) {
		return models.User{}, apperr.New(apperr.KindInvalidInput, "email already registered")
	}
	return created, err
}

func (s *UserService) Login(ctx context.Context, email, password string) (TokenPair, error) {
	u, err := s.r.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repo.ErrNotFound) {
		return TokenPair{}, apperr.New(apperr.KindUnauthorized, "invalid credentials")
	}
	if err != nil {
		return TokenPair{}, err
	}
	if err := auth.VerifyPassword(password, u.PasswordHash); err != nil {
		return TokenPair{}, apperr.New(apperr.KindUnauthorized, "invalid credentials")
	}
	return s.issue(u.ID, u.Role)
}

func (s *UserService) Refresh(refreshToken string) (TokenPair, error) {
	claims, isRefresh, err := s.tm.ParseAny(refreshToken)
	if err != nil || !isRefresh {
		return TokenPair{}, apperr.New(apperr.KindUnauthorized, "invalid refresh token")
	}
	return s.issue(claims.UserID, claims.Role)
}

func (s *UserService) issue(userID, role string) (TokenPair, error) {
	access, refresh, exp, err := s.tm.GeneratePair(userID, role)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    time.Until(exp).Truncate(time.Second),
	}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	u, err := s.r.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return models.User{}, apperr.New(apperr.KindNotFound, "user not found")
	}
	return u, err
}

// LinkWallet stores the EIP-55 checksummed form of address.
func (s *UserService) LinkWallet(ctx context.Context, userID, address string) (models.User, error) {
	if err := chain.ValidateAddress(address); err != nil {
		return models.User{}, err
	}
	u, err := s.r.SetWallet(ctx, userID, common.HexToAddress(address).Hex())
	if errors.Is(err, repo.ErrNotFound) {
		return models.User{}, apperr.New(apperr.KindNotFound, "user not found")
	}
	return u, err
}

// LinkedWallet satisfies settlement.WalletLookup.
func (s *UserService) LinkedWallet(ctx context.Context, userID string) (string, bool, error) {
	u, err := s.r.GetByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if u.WalletAddress == nil || *u.WalletAddress == "" {
		return "", false, nil
	}
	return *u.WalletAddress, true, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) { return s.r.List(ctx) }
