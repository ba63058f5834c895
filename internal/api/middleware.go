package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"task-automator-api/internal/api/common"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// requestLogger logs each request with its status and duration.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.Logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// authMiddleware validates an HMAC-signed bearer token and stores its
// user_id claim in the request context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	secret := []byte(s.opts.JWTSecret)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			common.WriteJSONError(w, http.StatusUnauthorized, "missing authorization header", s.Logger)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			common.WriteJSONError(w, http.StatusUnauthorized, "invalid token", s.Logger)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			common.WriteJSONError(w, http.StatusUnauthorized, "invalid claims", s.Logger)
			return
		}

		userIDStr, ok := claims["user_id"].(string)
		if !ok {
			common.WriteJSONError(w, http.StatusUnauthorized, "token has no user ID", s.Logger)
			return
		}

		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			common.WriteJSONError(w, http.StatusUnauthorized, "invalid user ID", s.Logger)
			return
		}

		ctx := context.WithValue(r.Context(), common.UserContextKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
