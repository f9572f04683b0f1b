package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"local", "alpha-1", "prod.eu", "a"} {
		assert.NoError(t, ValidateName("name", ok), ok)
	}
	for _, bad := range []string{"", "-lead", "has space", "sl/ash"} {
		err := ValidateName("name", bad)
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr, bad)
	}
}

func TestValidateServerURL(t *testing.T) {
	assert.NoError(t, ValidateServerURL("url", "http://127.0.0.1:8080"))
	assert.NoError(t, ValidateServerURL("url", "https://files.example.org/base"))

	for _, bad := range []string{"ftp://bad.example.com", "://bad", "http://", "localhost:8080"} {
		err := ValidateServerURL("url", bad)
		assert.Error(t, err, bad)
	}
}
