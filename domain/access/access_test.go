package access_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/arvend/tokengate/domain/access"
)

func TestCheckResultJSONShape(t *testing.T) {
	sub := &access.Subscription{
		ID:               "sub_1",
		Status:           "active",
		CurrentPeriodEnd: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC),
	}

	tests := []struct {
		name    string
		res     access.CheckResult
		want    map[string]interface{}
		absent  []string
	}{
		{
			name: "granted",
			res:  access.Granted(sub),
			want: map[string]interface{}{
				"hasSubscription": true,
				"whitelisted":     false,
				"fallback":        false,
			},
			absent: []string{"reason", "checkoutUrl", "error", "errorMessage"},
		},
		{
			name: "whitelisted",
			res:  access.GrantedWhitelisted(),
			want: map[string]interface{}{
				"hasSubscription": true,
				"whitelisted":     true,
				"subscription":    nil,
			},
		},
		{
			name: "denied with checkout",
			res:  access.Denied(access.ReasonNoPaymentMethod, "https://pay.example/x"),
			want: map[string]interface{}{
				"hasSubscription": false,
				"reason":          "no_payment_method",
				"checkoutUrl":     "https://pay.example/x",
				"subscription":    nil,
			},
			absent: []string{"error", "errorMessage"},
		},
		{
			name: "fail closed",
			res:  access.FailClosed("provider timeout"),
			want: map[string]interface{}{
				"hasSubscription": false,
				"fallback":        false,
				"error":           true,
				"errorMessage":    "provider timeout",
			},
			absent: []string{"reason", "checkoutUrl"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.res)
			if err != nil {
				t.Fatal(err)
			}
			var m map[string]interface{}
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatal(err)
			}
			for key, want := range tt.want {
				got, ok := m[key]
				if !ok {
					t.Errorf("key %q missing", key)
					continue
				}
				if key == "subscription" && want == nil {
					if got != nil {
						t.Errorf("subscription = %v, want null", got)
					}
					continue
				}
				if got != want {
					t.Errorf("%s = %v, want %v", key, got, want)
				}
			}
			for _, key := range tt.absent {
				if _, ok := m[key]; ok {
					t.Errorf("key %q present, want omitted", key)
				}
			}
		})
	}
}

func TestGrantedCarriesSubscription(t *testing.T) {
	sub := &access.Subscription{ID: "sub_1", Status: "trialing"}
	res := access.Granted(sub)

	data, err := json.Marshal(res)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	inner, ok := m["subscription"].(map[string]interface{})
	if !ok {
		t.Fatalf("subscription = %v, want object", m["subscription"])
	}
	if inner["id"] != "sub_1" || inner["status"] != "trialing" {
		t.Errorf("subscription = %v, want id/status fields", inner)
	}
}

func TestWhitelist(t *testing.T) {
	wl := access.NewWhitelist("Admin@Example.com, ops@example.com , ", "u1,u2")

	tests := []struct {
		name string
		id   access.Identity
		want bool
	}{
		{"email exact", access.Identity{Email: "ops@example.com"}, true},
		{"email case insensitive", access.Identity{Email: "ADMIN@example.COM"}, true},
		{"user id", access.Identity{UserID: "u2"}, true},
		{"user id case sensitive", access.Identity{UserID: "U2"}, false},
		{"absent", access.Identity{UserID: "u9", Email: "x@example.com"}, false},
		{"empty identity", access.Identity{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wl.Contains(tt.id); got != tt.want {
				t.Errorf("Contains(%+v) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}

	if wl.Len() != 4 {
		t.Errorf("Len = %d, want 4", wl.Len())
	}
}

func TestEmptyWhitelist(t *testing.T) {
	wl := access.NewWhitelist("", "")
	if wl.Contains(access.Identity{UserID: "u1", Email: "a@example.com"}) {
		t.Error("empty whitelist matched an identity")
	}
}

func TestIsPublicPath(t *testing.T) {
	public := []string{"/login", "/register", "/forgot-password", "/reset-password", "/verify"}
	for _, p := range public {
		if !access.IsPublicPath(p) {
			t.Errorf("IsPublicPath(%q) = false, want true", p)
		}
	}
	for _, p := range []string{"/", "/chat", "/api/messages", "/loginx", "/login/extra"} {
		if access.IsPublicPath(p) {
			t.Errorf("IsPublicPath(%q) = true, want false", p)
		}
	}
}
