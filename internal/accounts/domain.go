package accounts

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a registered account. Balance is an exact decimal; it is
// never handled as a float anywhere between the store and the wire.
type User struct {
	Email        string
	PasswordHash string
	Balance      decimal.Decimal
	IsLoggedIn   bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
