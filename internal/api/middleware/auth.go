package middleware

import "github.com/gin-gonic/gin"

// AuthRealm is the Basic-auth realm shown by browsers.
const AuthRealm = "Katsuo Dashboard"

// BasicAuth gates requests behind a single user. With no user configured
// every request passes.
func BasicAuth(user, pass string) gin.HandlerFunc {
	if user == "" {
		return func(c *gin.Context) { c.Next() }
	}
	return gin.BasicAuthForRealm(gin.Accounts{user: pass}, AuthRealm)
}
