package service

import (
	"testing"

	"taska/internal/model"
)

func roster(ids ...string) []model.TeamMember {
	members := make([]model.TeamMember, 0, len(ids))
	for _, id := range ids {
		members = append(members, model.TeamMember{ID: id, Name: "Member " + id, TeamID: "team", Role: model.RoleMember})
	}
	return members
}

func TestAdvanceRotationOnce(t *testing.T) {
	p := model.RotationPattern{Enabled: true, MemberIDs: []string{"A", "B", "C"}, CurrentIndex: 0}
	next := AdvanceRotation(p)
	if next.CurrentIndex != 1 {
		t.Fatalf("expected index 1, got %d", next.CurrentIndex)
	}
	m, ok := ResolveAssignee(next, roster("A", "B", "C"))
	if !ok || m.ID != "B" {
		t.Fatalf("expected B, got %+v (ok=%v)", m, ok)
	}
	if p.CurrentIndex != 0 {
		t.Fatalf("expected input pattern to be left alone, got %d", p.CurrentIndex)
	}
}

func TestAdvanceRotationCycles(t *testing.T) {
	for n := 1; n <= 6; n++ {
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('A' + i))
		}
		for start := 0; start < n; start++ {
			p := model.RotationPattern{Enabled: true, MemberIDs: ids, CurrentIndex: start}
			for i := 0; i < n; i++ {
				p = AdvanceRotation(p)
			}
			if p.CurrentIndex != start {
				t.Fatalf("n=%d: expected to return to %d after %d advances, got %d", n, start, n, p.CurrentIndex)
			}
		}
	}
}

func TestAdvanceRotationNoOp(t *testing.T) {
	disabled := model.RotationPattern{Enabled: false, MemberIDs: []string{"A", "B"}, CurrentIndex: 0}
	if got := AdvanceRotation(disabled); got.CurrentIndex != 0 {
		t.Fatalf("expected disabled rotation to stay at 0, got %d", got.CurrentIndex)
	}
	single := model.RotationPattern{Enabled: true, MemberIDs: []string{"A"}}
	if got := AdvanceRotation(single); got.CurrentIndex != 0 {
		t.Fatalf("expected single-member rotation to stay at 0, got %d", got.CurrentIndex)
	}
}

func TestAdvanceRotationKeepsOrder(t *testing.T) {
	p := model.RotationPattern{Enabled: true, MemberIDs: []string{"C", "A", "B"}, CurrentIndex: 2}
	next := AdvanceRotation(p)
	if next.CurrentIndex != 0 {
		t.Fatalf("expected wrap to 0, got %d", next.CurrentIndex)
	}
	for i, id := range []string{"C", "A", "B"} {
		if next.MemberIDs[i] != id {
			t.Fatalf("expected member order to be preserved, got %v", next.MemberIDs)
		}
	}
	next.MemberIDs[0] = "Z"
	if p.MemberIDs[0] != "C" {
		t.Fatalf("expected advanced pattern not to alias the input")
	}
}

func TestResolveAssigneeRemovedMember(t *testing.T) {
	p := model.RotationPattern{Enabled: true, MemberIDs: []string{"A", "B"}, CurrentIndex: 1}
	if _, ok := ResolveAssignee(p, roster("A")); ok {
		t.Fatalf("expected resolution to fail for a member no longer on the team")
	}
	bad := model.RotationPattern{Enabled: true, MemberIDs: []string{"A"}, CurrentIndex: 5}
	if _, ok := ResolveAssignee(bad, roster("A")); ok {
		t.Fatalf("expected resolution to fail for an out of range pointer")
	}
}
