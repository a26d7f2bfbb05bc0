// internal/app/store/storeutil/storeutil.go
package storeutil

import (
	"regexp"

	"go.mongodb.org/mongo-driver/mongo/options"
)

// Paginate returns *options.FindOptions with skip/limit given a 1-based page.
func Paginate(limit, page int64) *options.FindOptions {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	sk := (page - 1) * limit
	return options.Find().SetLimit(limit).SetSkip(sk)
}

// ClampPage normalizes client-supplied pagination, bounding limit to max.
func ClampPage(page, limit, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if max > 0 && limit > max {
		limit = max
	}
	return page, limit
}

// EscapeRegex quotes user input for safe use inside a $regex filter.
func EscapeRegex(s string) string {
	return regexp.QuoteMeta(s)
}
