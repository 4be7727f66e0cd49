package utils

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func secretKey() []byte {
	if key := os.Getenv("JWT_SECRET_KEY"); key != "" {
		return []byte(key)
	}
	// Dev fallback only; production must set JWT_SECRET_KEY
	return []byte("COMMUNICATION_SERVICE_DEV_SECRET")
}

func tokenLifetime() time.Duration {
	if raw := os.Getenv("JWT_TOKEN_LIFETIME"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
	}
	return 24 * time.Hour
}

// GenerateToken issues a signed token for the user. The role payload goes
// into the custom claim, which the token codec compresses before signing.
func GenerateToken(userID, role string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     jwt.NewNumericDate(time.Now().Add(tokenLifetime())),
		CustomClaimKey: map[string]interface{}{
			"role": role,
		},
	}

	encoded, err := EncodeClaims(claims)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(encoded))
	return token.SignedString(secretKey())
}

// ValidateToken parses and verifies a token and returns its claims with
// the custom claim decompressed back into a map.
func ValidateToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return secretKey(), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	decoded, err := DecodeClaims(claims)
	if err != nil {
		return nil, err
	}
	return jwt.MapClaims(decoded), nil
}
