package auth

import "golang.org/x/crypto/bcrypt"

// HashAdminKey hashes an admin key for storage in configuration.
func HashAdminKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyAdminKey reports whether the presented key matches the
// configured bcrypt hash.
func VerifyAdminKey(hash, key string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil
}
