package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sk3-portal/internal/model"
	"sk3-portal/internal/service"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer"
	actorContextKey     = "actor"
)

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (service.Actor, error)
}

// LoginPath is where a browser without a session of role is sent.
func LoginPath(role model.Role) string {
	return "/login/" + string(role)
}

// SessionToken reads the session cookie, falling back to a bearer header for
// non-browser clients.
func SessionToken(c *gin.Context, cookieName string) string {
	if token, err := c.Cookie(cookieName); err == nil && token != "" {
		return token
	}
	raw := c.GetHeader(authorizationHeader)
	parts := strings.SplitN(raw, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], bearerPrefix) {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// Session lets the request through only when it carries a live session of
// role. Page requests are redirected to the login page of the role, API
// requests get 401 with the same location.
func Session(auth Authenticator, cookieName string, role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c, cookieName)
		if token == "" {
			deny(c, role, "session missing")
			return
		}
		actor, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil || actor.Identity.Role != role {
			deny(c, role, "session invalid")
			return
		}
		c.Set(actorContextKey, actor)
		c.Next()
	}
}

func wantsHTML(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/html")
}

func deny(c *gin.Context, role model.Role, msg string) {
	location := LoginPath(role)
	if wantsHTML(c) {
		c.Redirect(http.StatusFound, location)
		c.Abort()
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg, "redirect": location})
}

func MustActor(c *gin.Context) (service.Actor, bool) {
	value, exists := c.Get(actorContextKey)
	if !exists {
		return service.Actor{}, false
	}
	actor, ok := value.(service.Actor)
	if !ok {
		return service.Actor{}, false
	}
	return actor, true
}
