package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"partsmarket/config"
	"partsmarket/internal/api/reqctx"
	"partsmarket/internal/domain/access"
)

var (
	errNoSubject    = errors.New("token has no valid subject")
	errReservedRole = errors.New("token claims a reserved role")
)

// claims is the subset of the auth backend's token we use. The app role lives
// in app_metadata; the top-level role is the fallback.
type claims struct {
	Subject     string `json:"sub"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AppMetadata struct {
		Role string `json:"role"`
	} `json:"app_metadata"`
}

func (c claims) actor() (access.Actor, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return access.Actor{}, errNoSubject
	}
	role := c.AppMetadata.Role
	if role == "" {
		role = c.Role
	}
	// system is only ever assigned in-process to background jobs
	if role == access.RoleSystem || c.Role == access.RoleSystem {
		return access.Actor{}, errReservedRole
	}
	return access.Actor{UserID: id, Email: c.Email, Role: role}, nil
}

// Authenticator verifies bearer tokens either with a shared HS256 secret or
// against the issuer's JWKS.
type Authenticator struct {
	secret   []byte
	verifier *oidc.IDTokenVerifier
}

func NewAuthenticator(ctx context.Context, cfg *config.Config) *Authenticator {
	if cfg.AuthJWKSURL == "" {
		return &Authenticator{secret: []byte(cfg.JWTSecret)}
	}
	keys := oidc.NewRemoteKeySet(ctx, cfg.AuthJWKSURL)
	return &Authenticator{
		verifier: oidc.NewVerifier(cfg.AuthIssuer, keys, &oidc.Config{
			SkipClientIDCheck:    true,
			SkipIssuerCheck:      cfg.AuthIssuer == "",
			SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
		}),
	}
}

func NewHS256Authenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

func (a *Authenticator) verify(ctx context.Context, raw string) (access.Actor, error) {
	if a.verifier != nil {
		tok, err := a.verifier.Verify(ctx, raw)
		if err != nil {
			return access.Actor{}, err
		}
		var cl claims
		if err := tok.Claims(&cl); err != nil {
			return access.Actor{}, err
		}
		return cl.actor()
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithExpirationRequired())
	if err != nil {
		return access.Actor{}, err
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return access.Actor{}, errNoSubject
	}
	var cl claims
	cl.Subject, _ = mc["sub"].(string)
	cl.Email, _ = mc["email"].(string)
	cl.Role, _ = mc["role"].(string)
	if meta, ok := mc["app_metadata"].(map[string]interface{}); ok {
		cl.AppMetadata.Role, _ = meta["role"].(string)
	}
	return cl.actor()
}

func AuthMiddleware(a *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.verifier == nil && len(a.secret) == 0 {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "JWT secret not configured"})
			c.Abort()
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Bearer token malformed"})
			c.Abort()
			return
		}

		actor, err := a.verify(c.Request.Context(), strings.TrimSpace(tokenString))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		reqctx.SetActor(c, actor)
		c.Next()
	}
}

// RequireRole admits callers holding any of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(reqctx.KeyRole)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Role not found in token"})
			c.Abort()
			return
		}

		for _, role := range roles {
			if value == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		c.Abort()
	}
}
