package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeClaimsRoundTrip(t *testing.T) {
	claims := map[string]interface{}{
		"user_id": "abc-123",
		CustomClaimKey: map[string]interface{}{
			"role":        "ADMIN",
			"permissions": []interface{}{"templates:read", "templates:write"},
		},
	}

	encoded, err := EncodeClaims(claims)
	require.NoError(t, err)

	// After encoding the custom claim is an opaque string
	_, isString := encoded[CustomClaimKey].(string)
	assert.True(t, isString)
	assert.Equal(t, "abc-123", encoded["user_id"])

	decoded, err := DecodeClaims(encoded)
	require.NoError(t, err)

	custom, ok := decoded[CustomClaimKey].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ADMIN", custom["role"])
	assert.Equal(t, []interface{}{"templates:read", "templates:write"}, custom["permissions"])
}

func TestEncodeClaimsWithoutCustomClaim(t *testing.T) {
	claims := map[string]interface{}{"user_id": "abc-123"}

	encoded, err := EncodeClaims(claims)
	require.NoError(t, err)
	assert.Equal(t, claims, encoded)

	decoded, err := DecodeClaims(encoded)
	require.NoError(t, err)
	assert.Equal(t, claims, decoded)
}

func TestDecodeClaimsMalformed(t *testing.T) {
	cases := map[string]string{
		"not base64":         "%%%not-base64%%%",
		"base64 but no gzip": "aGVsbG8gd29ybGQ=",
	}

	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeClaims(map[string]interface{}{CustomClaimKey: value})
			assert.Error(t, err)
		})
	}
}
