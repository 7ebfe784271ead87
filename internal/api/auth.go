package api

import (
	"net/http" // HTTP status codes
	"regexp"   // Regular expressions
	"strings"  // String manipulation
	"time"     // Token TTL

	"cointrader/internal/auth"   // Token issuance
	"cointrader/internal/config" // Configuration
	"cointrader/internal/domain" // Error taxonomy
	"cointrader/internal/store"  // Account store

	"github.com/gin-gonic/gin" // Gin web framework
	"github.com/pkg/errors"
)

// Request and Response structs
type RegisterRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Request struct for login
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Response struct for authentication
type AuthResponse struct {
	Token string `json:"token"` // JWT token
}

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

// isValidPassword checks if the password length is between 8 and 72
// characters (bcrypt's input ceiling)
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 72
}

// RegisterHandler creates a new user account with a hashed credential
func RegisterHandler(s *store.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, domain.ErrValidation, "Invalid request")
			return
		}
		// Validate username and password shape before touching the store
		if !usernamePattern.MatchString(req.Username) {
			respondError(c, domain.ErrValidation, "Username must be 3-32 alphanumeric characters")
			return
		}
		if !isValidPassword(req.Password) {
			respondError(c, domain.ErrValidation, "Password must be 8-72 characters")
			return
		}
		// Create user with lowercase username to ensure uniqueness
		user, err := s.CreateUser(strings.ToLower(req.Username), req.Password, cfg.InitialBalance)
		if err != nil {
			if errors.Is(err, domain.ErrDuplicateUser) {
				respondError(c, err, "Username already exists")
				return
			}
			respondError(c, err, "")
			return
		}
		// Return success response
		c.JSON(http.StatusOK, gin.H{
			"message":  "User registered successfully",
			"user_id":  user.ID,
			"balance":  user.Balance,
			"username": user.Username,
		})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(s *store.Store, jwtSecret string, tokenTTL time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, domain.ErrValidation, "Invalid request")
			return
		}
		// One-way credential check; unknown user and bad password look identical
		user, err := s.VerifyCredential(strings.ToLower(req.Username), req.Password)
		if err != nil {
			if errors.Is(err, domain.ErrInvalidCredentials) {
				respondError(c, err, "Invalid credentials")
				return
			}
			respondError(c, err, "")
			return
		}
		// Generate JWT token
		token, err := auth.GenerateToken(user.ID, jwtSecret, tokenTTL)
		if err != nil {
			respondError(c, errors.Wrap(err, "generate token"), "")
			return
		}
		// Return the token in the response
		c.JSON(http.StatusOK, AuthResponse{Token: token})
	}
}
