package security

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Stronger#Pass123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	ok, err := VerifyPassword(hash, "Stronger#Pass123")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification success")
	}
	ok, err = VerifyPassword(hash, "wrong-pass")
	if err != nil {
		t.Fatalf("verify wrong password errored: %v", err)
	}
	if ok {
		t.Fatal("expected password verification failure")
	}
}

func TestVerifyPasswordDummyDoesNotPanic(t *testing.T) {
	VerifyPasswordDummy("anything")
	VerifyPasswordDummy("")
}

func TestPasswordPolicyViolations(t *testing.T) {
	tests := []struct {
		name     string
		password string
		want     int
	}{
		{name: "valid", password: "Valid#Pass1", want: 0},
		{name: "too short", password: "Ab#1", want: 1},
		{name: "no upper", password: "lower#pass1", want: 1},
		{name: "no lower", password: "UPPER#PASS1", want: 1},
		{name: "no special", password: "NoSpecial12", want: 1},
		{name: "empty", password: "", want: 4},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := PasswordPolicyViolations(tc.password)
			if len(got) != tc.want {
				t.Fatalf("violations=%v want %d", got, tc.want)
			}
		})
	}
}
