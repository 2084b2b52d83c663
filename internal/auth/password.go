package auth

import "golang.org/x/crypto/bcrypt"

// PasswordCost is the bcrypt cost used for operator password hashes.
const PasswordCost = 12

// HashPassword hashes a plaintext password. A cost below bcrypt's minimum
// falls back to PasswordCost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = PasswordCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}
