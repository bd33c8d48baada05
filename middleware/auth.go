package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"grocery-delivery-api/cache"
	"grocery-delivery-api/logging"
	"grocery-delivery-api/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

type Claims struct {
	UserID uint            `json:"user_id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a given user
func GenerateToken(user *models.User, secret []byte, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// AuthRequired validates the JWT, loads the caller (through the session
// cache when available) and injects it into the gin context. Deactivated
// accounts are rejected even with a valid token.
func AuthRequired(db *gorm.DB, c cache.Service, secret []byte) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required (Bearer <token>)"})
			ctx.Abort()
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			ctx.Abort()
			return
		}

		user, err := loadUser(ctx, db, c, claims.UserID)
		if err != nil {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			ctx.Abort()
			return
		}
		if !user.IsActive {
			ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Account is deactivated"})
			ctx.Abort()
			return
		}

		ctx.Set("user", user)
		ctx.Set("userID", user.ID)
		ctx.Set("role", string(user.Role))
		ctx.Next()
	}
}

// loadUser reads the caller through the session cache; misses and cache
// errors fall back to the database with a fire-and-forget repopulate.
func loadUser(ctx *gin.Context, db *gorm.DB, c cache.Service, id uint) (*models.User, error) {
	key := strconv.FormatUint(uint64(id), 10)
	rctx := ctx.Request.Context()

	if c != nil {
		var cached models.User
		ok, err := c.Get(rctx, cache.KindSession, key, &cached)
		if err != nil {
			logging.FromContext(rctx).Warn("session cache read failed", "error", err)
		} else if ok {
			return &cached, nil
		}
	}

	var user models.User
	if err := db.First(&user, id).Error; err != nil {
		return nil, err
	}
	if c != nil {
		if err := c.Put(rctx, cache.KindSession, key, &user); err != nil {
			logging.FromContext(rctx).Warn("session cache write failed", "error", err)
		}
	}
	return &user, nil
}

// RoleRequired enforces that caller has one of the allowed roles
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleVal, exists := c.Get("role")
		if !exists {
			c.JSON(http.StatusForbidden, gin.H{"error": "Role not found in context"})
			c.Abort()
			return
		}
		callerRole := models.UserRole(roleVal.(string))
		for _, r := range roles {
			if callerRole == r {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Access denied. Required role(s): " + rolesString(roles),
		})
		c.Abort()
	}
}

func rolesString(roles []models.UserRole) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

// CurrentUser extracts the authenticated user loaded by AuthRequired.
func CurrentUser(c *gin.Context) *models.User {
	val, _ := c.Get("user")
	return val.(*models.User)
}

// GetUserID extracts caller user ID from context
func GetUserID(c *gin.Context) uint {
	val, _ := c.Get("userID")
	return val.(uint)
}

// GetRole extracts caller role from context
func GetRole(c *gin.Context) models.UserRole {
	val, _ := c.Get("role")
	return models.UserRole(val.(string))
}
