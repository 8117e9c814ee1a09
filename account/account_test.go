package account

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseRoleRejectsUnknown(t *testing.T) {
	for _, in := range []string{"", "ADMIN", "root", "User "} {
		if _, err := ParseRole(in); !errors.Is(err, ErrUnknownRole) {
			t.Fatalf("ParseRole(%q) err=%v, want ErrUnknownRole", in, err)
		}
	}
}

func TestRoleLevelsOrdered(t *testing.T) {
	if RoleAdmin.Level() <= RoleUser.Level() {
		t.Fatalf("admin level %d must exceed user level %d", RoleAdmin.Level(), RoleUser.Level())
	}
	if Role(0).Level() != 0 || Role(9).Level() != 0 {
		t.Fatal("invalid roles must have level 0")
	}
}

func TestRoleJSONUsesPersistedCode(t *testing.T) {
	b, err := json.Marshal(struct {
		R Role `json:"r"`
	}{R: RoleAdmin})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"r":"admin"}` {
		t.Fatalf("unexpected json %s", b)
	}

	var out struct {
		R Role `json:"r"`
	}
	if err := json.Unmarshal([]byte(`{"r":"superuser"}`), &out); err == nil {
		t.Fatal("expected unknown role to fail decoding")
	}
	if _, err := json.Marshal(struct{ R Role }{R: 0}); err == nil {
		t.Fatal("expected zero role to fail encoding")
	}
}

func TestRecordSummaryDropsHashAndCopies(t *testing.T) {
	speaker := "user1"
	rec := &Record{UserID: "u1", Username: "user1", PasswordHash: "secret", Role: RoleUser, SpeakerID: &speaker}
	sum := rec.Summary()
	speaker = "changed"
	if sum.SpeakerID == nil || *sum.SpeakerID != "user1" {
		t.Fatalf("summary must own its speaker copy, got %v", sum.SpeakerID)
	}
	b, err := json.Marshal(sum)
	if err != nil {
		t.Fatalf("marshal summary: %v", err)
	}
	if strings.Contains(string(b), "secret") {
		t.Fatalf("summary leaked hash: %s", b)
	}
}
