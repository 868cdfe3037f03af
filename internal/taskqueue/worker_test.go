package taskqueue

import (
	"errors"
	"testing"

	"github.com/rawblock/solrank/internal/apperr"
)

func TestIsFatal_ClassifiesSentinelsCorrectly(t *testing.T) {
	cases := []struct {
		err   error
		fatal bool
	}{
		{apperr.Wrap(apperr.ErrFatal, "boom"), true},
		{apperr.Wrap(apperr.ErrInvalidRequest, "bad args"), true},
		{apperr.Wrap(apperr.ErrTransient, "timeout"), false},
		{apperr.Wrap(apperr.ErrProviderUnavailable, "rate limited"), false},
		{errors.New("generic"), false},
	}
	for _, c := range cases {
		if got := isFatal(c.err); got != c.fatal {
			t.Errorf("isFatal(%v) = %v, want %v", c.err, got, c.fatal)
		}
	}
}
