package middleware

import "github.com/gin-gonic/gin"

// NoCache disables browser and proxy caching so the dashboard always shows
// the latest written dataset.
func NoCache() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		c.Next()
	}
}
