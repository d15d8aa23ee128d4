package middleware

import (
	"net/http"
	"strings"

	"backend/internal/authz"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Context keys set by RequireAuth for downstream guards and handlers.
const (
	CtxUser   = "currentUser"
	CtxUserID = "userID"
	CtxRole   = "userRole"
)

// Guard holds the dependencies for request-time access decisions. It is
// injected explicitly rather than kept in package globals so tests and the
// wiring in main control exactly which directory it reads. Guards never
// mutate state; every deny is fail-closed.
type Guard struct {
	userRepo repository.UserRepository
	secret   []byte
}

func NewGuard(userRepo repository.UserRepository, secret []byte) *Guard {
	return &Guard{userRepo: userRepo, secret: secret}
}

// extractToken reads the access token from the cookie first, falling back to
// the Authorization header.
func extractToken(c *gin.Context) (string, bool) {
	if tokenString, err := c.Cookie("access_token"); err == nil && tokenString != "" {
		return tokenString, true
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// RequireAuth is the authentication guard. Unauthenticated requests get 401
// with the attempted path echoed so the client can resume after login;
// authenticated but unprovisioned or deactivated accounts get 403 with a
// distinct message.
func (g *Guard) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := extractToken(c)
		if !ok {
			c.Header("X-Return-To", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
			return
		}

		claims, err := g.parseClaims(tokenString)
		if err != nil {
			c.Header("X-Return-To", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid or expired token"))
			return
		}

		sub, _ := claims["sub"].(string)
		user, err := g.loadUser(c, sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Account is not provisioned for this system"))
			return
		}
		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Account is deactivated"))
			return
		}

		c.Set(CtxUser, user)
		c.Set(CtxUserID, user.ID.String())
		c.Set(CtxRole, user.Role)
		c.Next()
	}
}

// RequireRole allows only sessions whose role is in the allowed set. A request
// that reaches this guard without a resolved session is denied, never allowed
// by default.
func (g *Guard) RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied"))
			return
		}
		if !authz.HasRole(user, allowedRoles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient role"))
			return
		}
		c.Next()
	}
}

// RequirePermission checks a capability through the evaluator, which grants
// admins an unconditional override.
func (g *Guard) RequirePermission(requiredPerms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied"))
			return
		}
		for _, p := range requiredPerms {
			if !authz.HasPermission(user, p) {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: missing permission '"+p+"'"))
				return
			}
		}
		c.Next()
	}
}

// RequireModule gates a feature area. Admins short-circuit on the session role
// without touching the directory; everyone else gets a fresh directory read so
// a concurrent assignment change is honored. A failed read denies.
func (g *Guard) RequireModule(moduleValue string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied"))
			return
		}
		if user.Role == model.RoleAdmin {
			c.Next()
			return
		}

		fresh, err := g.userRepo.FindByDocID(c.Request.Context(), user.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied"))
			return
		}
		if !authz.HasModuleAccess(fresh, moduleValue) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: module '"+moduleValue+"' is not assigned"))
			return
		}
		c.Next()
	}
}

// CurrentUser returns the session's directory record, or nil outside an
// authenticated request.
func CurrentUser(c *gin.Context) *model.AuthorizedUser {
	v, ok := c.Get(CtxUser)
	if !ok {
		return nil
	}
	user, ok := v.(*model.AuthorizedUser)
	if !ok {
		return nil
	}
	return user
}

func (g *Guard) parseClaims(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return g.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func (g *Guard) loadUser(c *gin.Context, sub string) (*model.AuthorizedUser, error) {
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, err
	}
	return g.userRepo.FindByDocID(c.Request.Context(), id)
}
