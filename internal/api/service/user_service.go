package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tictactoe-rooms/internal/api/models"
	"tictactoe-rooms/internal/api/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Claims carried by an issued token.
type Claims struct {
	UserID   int64
	Username string
}

// UserService defines the interface for user-related business logic.
type UserService interface {
	Register(ctx context.Context, req *models.RegisterRequest) error
	Login(ctx context.Context, req *models.LoginRequest) (string, error)
	GuestLogin(ctx context.Context) (string, error)
	ParseToken(tokenString string) (*Claims, error)
}

type userService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte
}

// NewUserService creates a new UserService signing tokens with jwtSecret.
func NewUserService(userRepo repository.UserRepository, jwtSecret []byte) UserService {
	return &userService{userRepo: userRepo, jwtSecret: jwtSecret}
}

// Register handles user registration.
func (s *userService) Register(ctx context.Context, req *models.RegisterRequest) error {
	existingUser, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return err
	}
	if existingUser != nil {
		return errors.New("username already taken")
	}

	user := &models.User{
		Username: req.Username,
	}

	return s.userRepo.CreateUser(ctx, user, req.Password)
}

// Login handles user login and returns a JWT on success.
func (s *userService) Login(ctx context.Context, req *models.LoginRequest) (string, error) {
	user, err := s.userRepo.GetUserByUsername(ctx, req.Username)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", errors.New("invalid username or password")
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	if err != nil {
		return "", errors.New("invalid username or password")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"un":  user.Username,
		"exp": time.Now().Add(time.Hour * 72).Unix(),
	})

	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GuestLogin generates a UUID for a guest player.
func (s *userService) GuestLogin(ctx context.Context) (string, error) {
	playerID := uuid.New().String()
	return playerID, nil
}

// ParseToken validates a signed token and extracts its claims.
func (s *userService) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	sub, _ := claims["sub"].(float64)
	username, _ := claims["un"].(string)
	return &Claims{UserID: int64(sub), Username: username}, nil
}
