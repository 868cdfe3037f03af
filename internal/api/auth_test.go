package api

import (
	"os"
	"testing"
)

func TestUnsafeDefaultCredential_FlagsKnownPlaceholders(t *testing.T) {
	orig, hadOrig := os.LookupEnv("API_AUTH_TOKEN")
	defer func() {
		if hadOrig {
			os.Setenv("API_AUTH_TOKEN", orig)
		} else {
			os.Unsetenv("API_AUTH_TOKEN")
		}
	}()

	cases := map[string]bool{
		"":                   true,
		"changeme":           true,
		"password":           true,
		"a-real-random-token": false,
	}
	for token, want := range cases {
		os.Setenv("API_AUTH_TOKEN", token)
		if got := UnsafeDefaultCredential(); got != want {
			t.Errorf("UnsafeDefaultCredential() with token %q = %v, want %v", token, got, want)
		}
	}
}
