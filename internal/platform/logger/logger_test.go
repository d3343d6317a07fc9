package logger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVsRedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"engine_api_key", "abc",
		"x-engine-api-key", "abc",
		"job_id", "j1",
		"user_id", "u-1",
		"nested", map[string]interface{}{"password": "pw", "ok": 1},
	})
	assert.Equal(t, "[REDACTED]", out[1])
	assert.Equal(t, "[REDACTED]", out[3])
	assert.Equal(t, "j1", out[5])
	hashed, _ := out[7].(string)
	assert.True(t, strings.HasPrefix(hashed, "hash:"))
	assert.Len(t, hashed, len("hash:")+12)
	nested := out[9].(map[string]interface{})
	assert.Equal(t, "[REDACTED]", nested["password"])
	assert.Equal(t, 1, nested["ok"])
}

func TestSanitizeKVsOddLength(t *testing.T) {
	out := sanitizeKVs([]interface{}{"a", 1, "dangling"})
	assert.Equal(t, []interface{}{"a", 1, "dangling"}, out)
}

func TestLooksLikeJWT(t *testing.T) {
	assert.True(t, looksLikeJWT("eyJhbGciOiJIUzI1.eyJzdWIiOiIxMjM0.sig"))
	assert.False(t, looksLikeJWT("not.a.jwt"))
}
