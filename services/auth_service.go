//go:generate go run go.uber.org/mock/mockgen -source=auth_service.go -destination=../mocks/mock_auth_service.go -package=mocks
package services

import (
	"fmt"

	"courier/auth"
	"courier/errors"
	"courier/repositories"
)

type IAuthService interface {
	Register(username, email, password string) (Token, error)
	Login(email, password string) (Token, error)
}

type Token string

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         *auth.TokenService
}

func NewAuthService(repo repositories.IUserRepository, tokens *auth.TokenService) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens}
}

func (s *AuthService) Register(username, email, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	}

	// 1. Validate business rules (email format, password complexity)
	// before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	// 2. Hash the password using Argon2id. Done in the service layer to
	// keep the repository unaware of plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	// 3. Persist the user with the generated hash
	userID, err := s.userRepository.CreateUser(username, email, hashedPassword)
	if err != nil {
		return "", err // Propagates ErrUserAlreadyExists if the email is taken
	}

	// 4. Issue the initial session token
	token, err := s.tokens.GenerateToken(userID)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	if err := auth.ValidateLogin(auth.LoginRequest{Email: email, Password: password}); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}

	// 1. Retrieve user by email from storage
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	// 2. Compare the provided password with the stored hash
	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	// 3. Issue the JWT token
	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}

	return Token(token), nil
}
