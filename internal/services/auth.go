package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/sha3"

	"github.com/loekTheDreamer/neoplay-backend/internal/middleware"
	"github.com/loekTheDreamer/neoplay-backend/internal/models"
	"github.com/loekTheDreamer/neoplay-backend/internal/repository"
)

// refreshTTL is how long a refresh token stays redeemable. Access tokens
// expire after 15 minutes (see middleware.JWTAuth).
const refreshTTL = 7 * 24 * time.Hour

type AuthService struct {
	userRepo *repository.UserRepo
	redis    *redis.Client
	jwt      *middleware.JWTAuth
}

func NewAuthService(userRepo *repository.UserRepo, redisClient *redis.Client, jwt *middleware.JWTAuth) *AuthService {
	return &AuthService{userRepo: userRepo, redis: redisClient, jwt: jwt}
}

var addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Login authenticates a wallet. The address must be a valid EVM address; a
// mixed-case address must additionally carry a correct EIP-55 checksum. The
// user row is created on first login.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthTokens, *models.User, error) {
	address, err := NormalizeAddress(req.Address)
	if err != nil {
		return nil, nil, &ValidationError{Fields: map[string]string{"address": err.Error()}}
	}

	user, err := s.userRepo.UpsertByWallet(ctx, address)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return tokens, user, nil
}

// RefreshToken rotates the refresh token and issues a new access token.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*models.AuthTokens, error) {
	userIDStr, err := s.redis.Get(ctx, "refresh:"+refreshToken).Result()
	if err != nil {
		return nil, &UnauthorizedError{Message: "Invalid or expired refresh token. Please log in again."}
	}

	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid user ID: %w", err)
	}

	// Delete old token (rotation)
	s.redis.Del(ctx, "refresh:"+refreshToken)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.issueTokens(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.redis.Del(ctx, "refresh:"+refreshToken).Err()
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*models.AuthTokens, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.WalletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := generateToken(64)
	if err != nil {
		return nil, err
	}

	err = s.redis.Set(ctx, "refresh:"+refreshToken, user.ID.String(), refreshTTL).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &models.AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    900,
	}, nil
}

// NormalizeAddress validates an EVM address and returns it in EIP-55
// checksummed form. All-lowercase and all-uppercase inputs are accepted and
// checksummed; mixed-case inputs must already match the checksum.
func NormalizeAddress(address string) (string, error) {
	if !addressRegex.MatchString(address) {
		return "", fmt.Errorf("invalid wallet address")
	}

	hexPart := address[2:]
	checksummed := checksumAddress(hexPart)

	lower := strings.ToLower(hexPart)
	upper := strings.ToUpper(hexPart)
	if hexPart != lower && hexPart != upper && hexPart != checksummed {
		return "", fmt.Errorf("address checksum mismatch")
	}
	return "0x" + checksummed, nil
}

// checksumAddress applies the EIP-55 rule: hash the lowercase hex address
// with Keccak-256 and uppercase each hex letter whose hash nibble is >= 8.
func checksumAddress(hexPart string) string {
	lower := strings.ToLower(hexPart)

	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(lower))
	digest := hash.Sum(nil)

	out := []byte(lower)
	for i, c := range out {
		if c < 'a' || c > 'f' {
			continue
		}
		nibble := digest[i/2]
		if i%2 == 0 {
			nibble >>= 4
		} else {
			nibble &= 0x0f
		}
		if nibble >= 8 {
			out[i] = c - ('a' - 'A')
		}
	}
	return string(out)
}

func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
