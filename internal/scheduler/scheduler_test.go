package scheduler

import (
	"testing"

	"github.com/robfig/cron/v3"
)

func TestCronExpressions_ParseCleanly(t *testing.T) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	exprs := []string{"0 * * * *", "0 3 * * *", "0 4 * * 0"}
	for _, expr := range exprs {
		if _, err := parser.Parse(expr); err != nil {
			t.Errorf("cron expression %q failed to parse: %v", expr, err)
		}
	}
}

func TestNew_BuildsSchedulerWithGivenTokens(t *testing.T) {
	s := New(nil, nil, nil)
	if s.cron == nil {
		t.Fatal("expected cron runner to be initialized")
	}
	if len(s.tokens) != 0 {
		t.Errorf("expected no watched tokens by default, got %d", len(s.tokens))
	}
}
