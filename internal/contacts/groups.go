package contacts

import "github.com/NKRTECH/unified-inbox/internal/store"

// GroupMember is one contact inside a duplicate group with its similarity to
// the group's anchor contact.
type GroupMember struct {
	Contact       store.Contact `json:"contact"`
	Score         int           `json:"score"`
	MatchedFields []string      `json:"matched_fields,omitempty"`
	Reasons       []string      `json:"reasons,omitempty"`
}

// DuplicateGroup is a transient grouping produced by FindDuplicateGroups.
// Never persisted; consumed immediately by the merge workflow.
type DuplicateGroup struct {
	Anchor  store.Contact `json:"anchor"`
	Members []GroupMember `json:"members"`
}

// FindDuplicateGroups forms duplicate groups in a single pass: for each
// not-yet-grouped contact, every later not-yet-grouped contact that is
// pairwise similar to it joins its group. Membership is anchored to the
// first contact only, not transitive: when B matches both A and C but A and
// C do not match, the A-group takes B and C stays ungrouped against A. This
// under-merging is a known, accepted property of the grouping.
func FindDuplicateGroups(all []store.Contact, threshold int) []DuplicateGroup {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var groups []DuplicateGroup
	grouped := make(map[int]bool, len(all))

	for i := range all {
		if grouped[i] {
			continue
		}
		var members []GroupMember
		for j := i + 1; j < len(all); j++ {
			if grouped[j] {
				continue
			}
			match := Score(&all[i], &all[j])
			if match.Score >= threshold {
				members = append(members, GroupMember{
					Contact:       all[j],
					Score:         match.Score,
					MatchedFields: match.MatchedFields,
					Reasons:       match.Reasons,
				})
				grouped[j] = true
			}
		}
		if len(members) > 0 {
			grouped[i] = true
			groups = append(groups, DuplicateGroup{Anchor: all[i], Members: members})
		}
	}

	return groups
}
