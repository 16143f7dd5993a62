package model

import "github.com/uptrace/bun"

// One row per logged-in admin browser. The row existing is what makes the
// client authenticated; lifetime is enforced where the row is checked.
type Session struct {
	bun.BaseModel `bun:"table:sessions"`

	Secret           string `bun:"secret,pk,notnull"`  // required
	CreatedAtUnixUTC int64  `bun:"created_at,notnull"` // required
	IpAddress        string `bun:"ip_address,notnull"` // required
	UserAgent        string `bun:"user_agent"`
}
