package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mroshb/couple_journal/internal/security"
	"github.com/mroshb/couple_journal/internal/services"
	"github.com/mroshb/couple_journal/pkg/errors"
	"github.com/mroshb/couple_journal/pkg/logger"
)

const userIDKey = "userID"

// JWTAuth verifies the bearer token and makes sure a user record exists for
// its subject. Browsers cannot set headers on a websocket handshake, so the
// token may also come in the token query parameter.
func JWTAuth(secret, issuer string, users *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			AbortWithError(c, http.StatusUnauthorized, errors.New(errors.ErrCodeNotAuthorized, "missing token"))
			return
		}

		claims, err := security.ValidateJWT(tokenString, secret, issuer)
		if err != nil {
			logger.Debug("Rejected token", "error", err)
			AbortWithError(c, http.StatusUnauthorized, errors.New(errors.ErrCodeNotAuthorized, "invalid token"))
			return
		}

		user, err := users.EnsureProfile(c.Request.Context(), services.Profile{
			UserID:      claims.UserID(),
			Email:       claims.Email,
			DisplayName: claims.Name,
			AvatarURL:   claims.Picture,
		})
		if err != nil {
			AbortWithError(c, StatusFor(err), err)
			return
		}

		c.Set(userIDKey, user.ID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// UserID returns the authenticated user id, or "" before JWTAuth ran.
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	if errors.CodeOf(err) == errors.ErrCodeRateLimitExceeded {
		return http.StatusTooManyRequests
	}
	switch errors.KindOf(err) {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindAuthorization:
		return http.StatusForbidden
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindConflict:
		return http.StatusConflict
	case errors.KindTransport:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError writes the {"code","message"} body every error response uses.
func AbortWithError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"code":    errors.CodeOf(err),
		"message": errors.UserMessage(err),
	})
}
