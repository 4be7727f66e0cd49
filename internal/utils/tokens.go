package utils

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
)

// CustomClaimKey is the claim holding the application-specific payload
// (role, permissions) embedded inside a signed token.
const CustomClaimKey = "custom_claim"

// EncodeClaims compresses the custom claim in place: the nested map is
// JSON-serialized, gzipped and base64-encoded, so the signed token stays
// small. Claims without a custom claim pass through untouched.
func EncodeClaims(claims map[string]interface{}) (map[string]interface{}, error) {
	customClaim, ok := claims[CustomClaimKey]
	if !ok || customClaim == nil {
		return claims, nil
	}

	payload, err := json.Marshal(customClaim)
	if err != nil {
		return nil, fmt.Errorf("marshal custom claim: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress custom claim: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress custom claim: %w", err)
	}

	claims[CustomClaimKey] = base64.StdEncoding.EncodeToString(buf.Bytes())
	return claims, nil
}

// DecodeClaims is the inverse of EncodeClaims. When the custom claim is a
// string it is base64-decoded, decompressed and parsed back into a map.
// Malformed input surfaces as an error; the auth layer turns that into an
// authentication failure.
func DecodeClaims(claims map[string]interface{}) (map[string]interface{}, error) {
	encoded, ok := claims[CustomClaimKey].(string)
	if !ok {
		return claims, nil
	}

	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode custom claim: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress custom claim: %w", err)
	}
	payload, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress custom claim: %w", err)
	}
	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("decompress custom claim: %w", err)
	}

	var customClaim interface{}
	if err := json.Unmarshal(payload, &customClaim); err != nil {
		return nil, fmt.Errorf("parse custom claim: %w", err)
	}

	claims[CustomClaimKey] = customClaim
	return claims, nil
}
