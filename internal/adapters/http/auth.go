package http

import (
	"net/http"
	"strings"

	"github.com/dkeye/Colla/internal/adapters/signal"
	"github.com/dkeye/Colla/internal/identity"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	userIDKey   = "user_id"
	usernameKey = "username"
)

type AuthAPI struct {
	Identity *identity.Service
	Tokens   *identity.Tokens
}

type credentials struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *AuthAPI) signup(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	sess, err := a.Identity.Signup(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rememberUser(c, sess.Username)
	log.Info().Str("module", "adapters.http").Str("username", sess.Username).Msg("signed up")
	c.JSON(http.StatusCreated, sess)
}

func (a *AuthAPI) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	sess, err := a.Identity.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	rememberUser(c, sess.Username)
	c.JSON(http.StatusOK, sess)
}

func (a *AuthAPI) me(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"userId": c.GetString(userIDKey), "username": c.GetString(usernameKey)})
}

// rememberUser lets the next websocket of this browser start out registered.
func rememberUser(c *gin.Context, username string) {
	s := sessions.Default(c)
	s.Set(signal.SessionUserKey, username)
	if err := s.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("save session")
	}
}

// RequireAuth checks the bearer token and exposes its claims to handlers.
func (a *AuthAPI) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		tok, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || tok == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no token"})
			return
		}
		claims, err := a.Tokens.Verify(tok)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(userIDKey, claims.Subject)
		c.Set(usernameKey, claims.Username)
		c.Next()
	}
}
