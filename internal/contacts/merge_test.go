package contacts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

func TestBuildMergedDefaults(t *testing.T) {
	primary := &store.Contact{
		ID:    store.GenNewID(),
		Name:  "Ana Silva",
		Email: "ana@example.com",
		Tags:  []string{"vip"},
	}
	secondary := &store.Contact{
		ID:    store.GenNewID(),
		Name:  "Ana S.",
		Phone: "+15551234567",
		Tags:  []string{"lead"},
	}

	merged := BuildMerged(primary, []*store.Contact{secondary}, nil)

	// Primary values survive, blanks fill from the secondary.
	assert.Equal(t, "Ana Silva", merged.Name)
	assert.Equal(t, "ana@example.com", merged.Email)
	assert.Equal(t, "+15551234567", merged.Phone)
	// Default tag strategy keeps the primary's tags unchanged.
	assert.Equal(t, []string{"vip"}, merged.Tags)
}

func TestBuildMergedStrategies(t *testing.T) {
	primary := &store.Contact{
		Name:         "Ana Silva",
		Email:        "ana@example.com",
		Tags:         []string{"vip"},
		CustomFields: map[string]string{"plan": "pro", "region": "emea"},
	}
	secondary := &store.Contact{
		Name:         "Ana S. Oliveira",
		Email:        "ana.oliveira@example.com",
		Tags:         []string{"lead", "vip"},
		CustomFields: map[string]string{"plan": "free", "source": "webchat"},
	}

	merged := BuildMerged(primary, []*store.Contact{secondary}, map[string]FieldStrategy{
		"name":          StrategySecondary,
		"tags":          StrategyMerge,
		"custom_fields": StrategyMerge,
	})

	assert.Equal(t, "Ana S. Oliveira", merged.Name)
	assert.Equal(t, "ana@example.com", merged.Email, "email keeps default primary strategy")
	assert.Equal(t, []string{"lead", "vip"}, merged.Tags, "merge unions and sorts tags")
	assert.Equal(t, map[string]string{
		"plan":   "pro", // primary wins on conflict
		"region": "emea",
		"source": "webchat",
	}, merged.CustomFields)
}

func TestFindDuplicateGroupsNonTransitive(t *testing.T) {
	a := store.Contact{ID: store.GenNewID(), Name: "Ana Silva", Email: "ana@example.com"}
	b := store.Contact{ID: store.GenNewID(), Name: "Ana Silva", Email: "ana@example.com", Phone: "+15551234567"}
	c := store.Contact{ID: store.GenNewID(), Name: "Bruno Costa", Phone: "+15559876543"}

	groups := FindDuplicateGroups([]store.Contact{a, b, c}, DefaultThreshold)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want 1", len(groups))
	}
	g := groups[0]
	assert.Equal(t, a.ID, g.Anchor.ID)
	if assert.Len(t, g.Members, 1) {
		assert.Equal(t, b.ID, g.Members[0].Contact.ID)
		assert.GreaterOrEqual(t, g.Members[0].Score, DefaultThreshold)
	}
}

func TestFindDuplicateGroupsEachContactInOneGroup(t *testing.T) {
	// B matches both A and C, but once grouped with A it must not appear
	// again under C.
	a := store.Contact{ID: store.GenNewID(), Name: "Jo Ann", Email: "jo@example.com"}
	b := store.Contact{ID: store.GenNewID(), Name: "Jo Ann", Email: "jo@example.com", Phone: "+15551230000"}
	c := store.Contact{ID: store.GenNewID(), Name: "Jo Ann", Phone: "+15551230000"}

	groups := FindDuplicateGroups([]store.Contact{a, b, c}, DefaultThreshold)

	seen := map[string]int{}
	for _, g := range groups {
		seen[g.Anchor.ID.String()]++
		for _, m := range g.Members {
			seen[m.Contact.ID.String()]++
		}
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("contact %s appears %d times across groups", id, n)
		}
	}
}
