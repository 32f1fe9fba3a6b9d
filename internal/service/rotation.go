package service

import "taska/internal/model"

// AdvanceRotation moves the rotation pointer to the next member.
// Disabled rotations and rotations with at most one member come back unchanged.
// The member order is never touched.
func AdvanceRotation(p model.RotationPattern) model.RotationPattern {
	n := len(p.MemberIDs)
	if !p.Enabled || n <= 1 {
		return p
	}
	next := p.Clone()
	next.CurrentIndex = ((p.CurrentIndex+1)%n + n) % n
	return next
}

// ResolveAssignee looks up the member whose turn it is in the live roster.
// ok is false when that member has left the team or the pointer is out of range;
// callers keep the previous assignees in that case.
func ResolveAssignee(p model.RotationPattern, members []model.TeamMember) (model.TeamMember, bool) {
	if p.CurrentIndex < 0 || p.CurrentIndex >= len(p.MemberIDs) {
		return model.TeamMember{}, false
	}
	id := p.MemberIDs[p.CurrentIndex]
	for _, m := range members {
		if m.ID == id {
			return m, true
		}
	}
	return model.TeamMember{}, false
}
