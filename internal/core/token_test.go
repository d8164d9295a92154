package core

import (
	"testing"
	"time"
)

func TestAuthToken_Fresh(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		remaining time.Duration
		want      bool
	}{
		{name: "Just Inside Margin", remaining: 4*time.Minute + 59*time.Second, want: false},
		{name: "Exactly At Margin", remaining: TokenRefreshMargin, want: false},
		{name: "Just Outside Margin", remaining: 5*time.Minute + time.Second, want: true},
		{name: "Already Expired", remaining: -time.Second, want: false},
		{name: "Long Lived", remaining: time.Hour, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := AuthToken{AccessToken: "tok", ExpiresAt: now.Add(tt.remaining)}
			if got := tok.Fresh(now); got != tt.want {
				t.Fatalf("Fresh() with %v remaining = %v, want %v", tt.remaining, got, tt.want)
			}
		})
	}
}

func TestAuthToken_Expired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if (AuthToken{ExpiresAt: now}).Expired(now) != true {
		t.Fatal("a token is expired at its expiry instant")
	}
	if (AuthToken{ExpiresAt: now.Add(time.Second)}).Expired(now) {
		t.Fatal("a token with time left is not expired")
	}
}
