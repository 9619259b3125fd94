package utils

import "golang.org/x/crypto/bcrypt"

// MinPasswordLen is the shortest password accepted on registration and
// user management.
const MinPasswordLen = 6

// HashPassword returns a bcrypt digest of plain.  Costs outside bcrypt's
// accepted range fall back to bcrypt.DefaultCost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
