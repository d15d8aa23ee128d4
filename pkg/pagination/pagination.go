// Package pagination reads page/limit query parameters for list endpoints.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
)

// Params is a clamped page window ready to pass to a repository.
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse reads "page" and "limit" from the request. Missing or malformed
// values fall back to the defaults; limit is capped at MaxLimit.
func Parse(c *gin.Context) Params {
	page := queryInt(c, "page", DefaultPage)
	limit := queryInt(c, "limit", DefaultLimit)

	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return n
}
