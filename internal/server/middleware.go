package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	obscontext "github.com/smallbiznis/subscriber/internal/observability/context"
	"github.com/smallbiznis/subscriber/pkg/account"
)

const contextCallerKey = "caller"

// AuthRequired resolves the caller from an HS256 bearer token whose subject is
// the account address.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := s.authenticate(c.GetHeader("Authorization"))
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextCallerKey, caller)
		c.Request = c.Request.WithContext(obscontext.WithActor(c.Request.Context(), caller.String()))
		c.Next()
	}
}

func (s *Server) authenticate(header string) (account.Address, error) {
	if len(s.jwtSecret) == 0 {
		return account.ZeroAddress, ErrUnauthorized
	}
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return account.ZeroAddress, jwt.ErrTokenMalformed
	}

	token, err := jwt.Parse(strings.TrimSpace(parts[1]), func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return account.ZeroAddress, jwt.ErrTokenSignatureInvalid
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return account.ZeroAddress, jwt.ErrTokenMalformed
	}
	return account.Parse(subject)
}

func callerFromContext(c *gin.Context) account.Address {
	caller, _ := c.Get(contextCallerKey)
	addr, _ := caller.(account.Address)
	return addr
}
