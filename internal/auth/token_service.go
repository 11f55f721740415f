package auth

import (
	"context"
	"errors"
	"time"

	"github.com/Jiwaru/pss-uas-lms-backend/internal/users"

	"github.com/golang-jwt/jwt"
	log "github.com/sirupsen/logrus"
)

// TokenExpiry is the absolute token lifetime. There is no revocation,
// an issued token stays valid until this runs out.
const TokenExpiry = 60 * time.Minute

// ErrInvalidToken covers every verification failure: bad signature,
// malformed token, expired token, principal gone. Callers treat them
// all uniformly as unauthenticated.
var ErrInvalidToken = errors.New("invalid token")

type tokenClaims struct {
	UserID int `json:"user_id"`
	jwt.StandardClaims
}

// TokenService issues and verifies signed bearer tokens for users
type TokenService struct {
	secret   []byte
	userRepo users.Repo

	// ability to inject the clock for unit tests
	NowFunc func() time.Time
}

func NewTokenService(secret []byte, userRepo users.Repo) *TokenService {
	return &TokenService{
		secret:   secret,
		userRepo: userRepo,
		NowFunc:  time.Now,
	}
}

func (ts *TokenService) Issue(userID int) (string, error) {
	now := ts.NowFunc()
	claims := &tokenClaims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(TokenExpiry).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ts.secret)
}

// Verify checks the token signature and expiry, then resolves the user
// behind it. A token for a user deleted after issuance fails too.
func (ts *TokenService) Verify(ctx context.Context, tokenString string) (*users.User, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&tokenClaims{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return ts.secret, nil
		},
	)
	if err != nil {
		log.Tracef("verify token: %s", err)
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	user, err := ts.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if !errors.Is(err, users.ErrUserNotFound) {
			log.Errorf("verify token, get user %d: %s", claims.UserID, err)
		}
		return nil, ErrInvalidToken
	}

	return user, nil
}
