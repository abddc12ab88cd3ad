package storage

import "testing"

func TestKeys(t *testing.T) {
	tests := []struct {
		scope string
		c     Collection
		key   string
	}{
		{scope: GuestScope, c: Clients, key: "guest-clients"},
		{scope: ScopeFor("9b2e-41aa"), c: Payments, key: "user-9b2e-41aa-payments"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := Key(tt.scope, tt.c); got != tt.key {
				t.Errorf("Key = %q, want %q", got, tt.key)
			}
			scope, c, ok := SplitKey(tt.key)
			if !ok || scope != tt.scope || c != tt.c {
				t.Errorf("SplitKey = %q, %q, %v", scope, c, ok)
			}
		})
	}

	for _, bad := range []string{"", "guest", "-clients", "guest-"} {
		if _, _, ok := SplitKey(bad); ok {
			t.Errorf("SplitKey(%q) succeeded", bad)
		}
	}

	if got := ScopeFor(""); got != GuestScope {
		t.Errorf("ScopeFor(\"\") = %q, want guest", got)
	}
}
