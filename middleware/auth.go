package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	apperrors "settleup-backend/errors"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	EmailKey  contextKey = "email"
)

// AuthMiddleware verifies HS256 bearer tokens issued by the identity
// provider. Only the subject claim is trusted as the user id.
type AuthMiddleware struct {
	jwtSecret []byte
}

func NewAuthMiddleware(jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: []byte(jwtSecret)}
}

func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondAuthError(w, apperrors.Unauthorized("Missing authorization header."))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			respondAuthError(w, apperrors.Unauthorized("Invalid authorization header format."))
			return
		}

		userID, email, err := m.parse(parts[1])
		if err != nil {
			zap.L().Debug("Token rejected",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err))
			if errors.Is(err, jwt.ErrTokenExpired) {
				respondAuthError(w, apperrors.TokenExpired())
				return
			}
			respondAuthError(w, apperrors.TokenInvalid())
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, userID)
		if email != "" {
			ctx = context.WithValue(ctx, EmailKey, email)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) parse(tokenString string) (string, string, error) {
	if len(m.jwtSecret) == 0 {
		return "", "", errors.New("jwt secret not configured")
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return m.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", "", err
	}
	if !token.Valid {
		return "", "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid token claims")
	}
	userID, err := claims.GetSubject()
	if err != nil || userID == "" {
		return "", "", errors.New("user id not found in token")
	}
	email, _ := claims["email"].(string)
	return userID, email, nil
}

func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

func GetUserEmail(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(EmailKey).(string)
	return email, ok
}

// WithUserID is used by tests and internal callers that authenticate
// requests by other means.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func respondAuthError(w http.ResponseWriter, appErr *apperrors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apperrors.GetHTTPStatus(appErr.Type))
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error": appErr.Message,
		"code":  string(appErr.Code),
	}); err != nil {
		zap.L().Error("Failed to encode auth error", zap.Error(err))
	}
}
