package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/edutech-platform/quiz-service/internal/models"
	"github.com/edutech-platform/quiz-service/internal/repositories"
	"github.com/edutech-platform/quiz-service/internal/repositories/casdoor"
)

// CasdoorAuthMiddleware authenticates requests against Casdoor-issued JWTs.
type CasdoorAuthMiddleware struct {
	client   *casdoorsdk.Client
	userRepo repositories.UserRepository
	config   casdoor.CasdoorConfig
}

func NewCasdoorAuthMiddleware(cfg casdoor.CasdoorConfig, userRepo repositories.UserRepository) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Certificate,
		cfg.OrganizationName,
		cfg.ApplicationName,
	)

	return &CasdoorAuthMiddleware{
		client:   client,
		userRepo: userRepo,
		config:   cfg,
	}
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": message})
}

// AuthMiddleware parses the bearer token, resolves the user, and stores
// the identity on the request context.
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWith(c, http.StatusUnauthorized, "unauthorized", "missing or malformed authorization header")
			return
		}

		claims, err := cam.client.ParseJwtToken(token)
		if err != nil {
			abortWith(c, http.StatusUnauthorized, "unauthorized", fmt.Sprintf("invalid token: %v", err))
			return
		}

		user, err := cam.resolveUser(c.Request.Context(), claims)
		if err != nil {
			abortWith(c, http.StatusUnauthorized, "unauthorized", fmt.Sprintf("failed to resolve user: %v", err))
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("user_role", user.Role)
		c.Set("user_email", user.Email)

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", false
	}
	return token, true
}

// RequireRoleMiddleware allows only the given roles through. Admins pass
// regardless.
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("user_role")
		if !exists {
			abortWith(c, http.StatusForbidden, "forbidden", "user role not found in context")
			return
		}

		role, ok := value.(models.UserRole)
		if !ok {
			abortWith(c, http.StatusForbidden, "forbidden", "invalid user role format")
			return
		}

		if role != models.RoleAdmin {
			allowed := false
			for _, r := range roles {
				if role == r {
					allowed = true
					break
				}
			}
			if !allowed {
				abortWith(c, http.StatusForbidden, "forbidden",
					fmt.Sprintf("insufficient permissions, required role: %v", roles))
				return
			}
		}

		c.Next()
	}
}

// resolveUser looks the token subject up in the repository, falling back
// to a user built from the claims when the lookup fails.
func (cam *CasdoorAuthMiddleware) resolveUser(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	if claims.Id == "" {
		return nil, fmt.Errorf("token has no subject")
	}

	if user, err := cam.userRepo.GetByID(ctx, claims.Id); err == nil {
		return user, nil
	}

	// The tier is unknown at this point; quota checks re-resolve it
	// through the repository.
	return &models.User{
		ID:        claims.Id,
		Email:     claims.User.Email,
		FullName:  claims.User.DisplayName,
		Role:      mapCasdoorRole(claims.User.Type),
		Tier:      models.TierFree,
		Avatar:    claims.User.Avatar,
		CreatedAt: time.Now(),
	}, nil
}

func mapCasdoorRole(casdoorType string) models.UserRole {
	switch strings.ToLower(casdoorType) {
	case "admin", "administrator":
		return models.RoleAdmin
	case "teacher", "instructor", "educator":
		return models.RoleTeacher
	default:
		return models.RoleStudent
	}
}

// GetUserFromContext returns the authenticated user stored by AuthMiddleware.
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	value, exists := c.Get("user")
	if !exists {
		return nil, fmt.Errorf("user not found in context")
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil, fmt.Errorf("invalid user type in context")
	}
	return user, nil
}

// GetUserIDFromContext returns the authenticated user ID stored by
// AuthMiddleware.
func GetUserIDFromContext(c *gin.Context) (string, error) {
	value, exists := c.Get("user_id")
	if !exists {
		return "", fmt.Errorf("user ID not found in context")
	}
	id, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("invalid user ID type in context")
	}
	return id, nil
}
