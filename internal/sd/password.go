package sd

import (
	"crypto/sha1"
	"encoding/hex"
)

// HashPassword converts an account password to the hashed form the
// provider's token endpoint expects. Only the hash is ever stored in
// configuration.
func HashPassword(password string) string {
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}
