package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bitbucket.org/mmdatafocus/finrisk_backend/utils"
)

type authString string

// AuthMiddleware attaches the bearer token's claims when present; requests without
// a token pass through untouched.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		if auth == "" {
			c.Next()
			return
		}

		claim, ok := validateBearer(auth)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(withClaim(c.Request.Context(), claim, auth))
		c.Next()
	}
}

// AdminAuthMiddleware requires a valid bearer token carrying the ADMIN role.
func AdminAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claim, ok := validateBearer(c.Request.Header.Get("Authorization"))
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		if claim.Role != utils.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			c.Abort()
			return
		}

		c.Request = c.Request.WithContext(withClaim(c.Request.Context(), claim, c.Request.Header.Get("Authorization")))
		c.Next()
	}
}

func validateBearer(header string) (*utils.JwtCustomClaim, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(header, bearer) {
		return nil, false
	}
	validate, err := utils.JwtValidate(strings.TrimSpace(header[len(bearer):]))
	if err != nil || !validate.Valid {
		return nil, false
	}
	claim, ok := validate.Claims.(*utils.JwtCustomClaim)
	return claim, ok && claim != nil
}

func withClaim(ctx context.Context, claim *utils.JwtCustomClaim, header string) context.Context {
	ctx = context.WithValue(ctx, authString("auth"), claim)
	ctx = utils.SetTokenInContext(ctx, strings.TrimPrefix(header, "Bearer "))
	ctx = utils.SetUserIdInContext(ctx, claim.ID)
	return utils.SetUserRoleInContext(ctx, claim.Role)
}

func CtxValue(ctx context.Context) *utils.JwtCustomClaim {
	raw, _ := ctx.Value(authString("auth")).(*utils.JwtCustomClaim)
	return raw
}
