package bridge

import (
	"regexp"
	"testing"
	"time"
)

func TestIDGenerator_Format(t *testing.T) {
	g := &IDGenerator{
		prefix: CallbackPrefix,
		now:    func() time.Time { return time.UnixMilli(1712345678901) },
		random: func() string { return "0123456789ab" },
	}
	if got := g.Next(); got != "meet_callback_1712345678901_0123456789ab" {
		t.Errorf("bridge:callback_id_test - Next = %q", got)
	}
}

func TestIDGenerator_Unique(t *testing.T) {
	g := NewIDGenerator()
	pattern := regexp.MustCompile(`^meet_callback_\d+_[0-9a-f]{12}$`)

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := g.Next()
		if !pattern.MatchString(id) {
			t.Fatalf("bridge:callback_id_test - id %q does not match %s", id, pattern)
		}
		if seen[id] {
			t.Fatalf("bridge:callback_id_test - duplicate id %q", id)
		}
		seen[id] = true
	}
}
