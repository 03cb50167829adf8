package utils

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"hubly/helpdesk-service/internal/models"
)

const accountKey = "account"

// AccountResolver loads the account a verified token refers to.
type AccountResolver interface {
	ResolveAccount(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
}

type TokenValidator interface {
	ValidateToken(token string) (*Claims, error)
}

// AuthMiddleware requires a valid bearer token for an active account and puts
// the account into the gin context.
func AuthMiddleware(tokens TokenValidator, accounts AccountResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		authenticate(c, tokens, accounts, token)
	}
}

// OptionalAuth lets anonymous widget callers through. A token that is present
// is checked exactly like AuthMiddleware does.
func OptionalAuth(tokens TokenValidator, accounts AccountResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		token, ok := bearerToken(header)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		authenticate(c, tokens, accounts, token)
	}
}

// ResolveToken turns a raw token into an active account. The live channel uses
// it for the query-string token, where no middleware runs.
func ResolveToken(ctx context.Context, tokens TokenValidator, accounts AccountResolver, token string) (*models.Account, error) {
	claims, err := tokens.ValidateToken(token)
	if err != nil {
		return nil, models.Unauthorized("invalid token")
	}
	id, err := primitive.ObjectIDFromHex(claims.AccountID)
	if err != nil {
		return nil, models.Unauthorized("invalid token")
	}
	account, err := accounts.ResolveAccount(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.Unauthorized("user not found")
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, models.Unauthorized("account deactivated")
	}
	return account, nil
}

func authenticate(c *gin.Context, tokens TokenValidator, accounts AccountResolver, token string) {
	account, err := ResolveToken(c.Request.Context(), tokens, accounts, token)
	if err != nil {
		if errors.Is(err, models.ErrAuth) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": models.ErrorMessage(err)})
			return
		}
		log.Printf("auth: resolve account: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": models.ErrorMessage(err)})
		return
	}

	c.Set(accountKey, account)
	c.Next()
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// CurrentAccount returns the authenticated account, or nil for anonymous callers.
func CurrentAccount(c *gin.Context) *models.Account {
	v, ok := c.Get(accountKey)
	if !ok {
		return nil
	}
	account, _ := v.(*models.Account)
	return account
}

// SetCurrentAccount is used by tests and the live handler.
func SetCurrentAccount(c *gin.Context, account *models.Account) {
	c.Set(accountKey, account)
}

// RequireRoles must run after AuthMiddleware.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		account := CurrentAccount(c)
		if account == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		for _, role := range roles {
			if account.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
	}
}

// RequestTimeout bounds every store call made while serving the request.
func RequestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
