package contacts

import (
	"testing"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

func TestArePhonesSimilar(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"identical", "+15551234567", "+15551234567", true},
		{"country code vs bare", "+1 555-123-4567", "5551234567", true},
		{"formatting only", "(555) 123-4567", "555.123.4567", true},
		{"different numbers", "+15551234567", "+15559876543", false},
		{"one empty", "+15551234567", "", false},
		{"both empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ArePhonesSimilar(tt.a, tt.b); got != tt.want {
				t.Errorf("ArePhonesSimilar(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestNameSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		min  float64
		max  float64
	}{
		{"identical", "Ana Silva", "Ana Silva", 1, 1},
		{"case folded", "ANA SILVA", "ana silva", 1, 1},
		{"one char off", "Jonathan", "Jonathon", 0.85, 0.95},
		{"unrelated", "Ana", "Katherine", 0, 0.4},
		{"empty", "", "Ana", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NameSimilarity(tt.a, tt.b)
			if got < tt.min || got > tt.max {
				t.Errorf("NameSimilarity(%q, %q) = %.3f, want in [%.2f, %.2f]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		a, b      store.Contact
		wantScore int
		wantDup   bool
	}{
		{
			name:      "email only",
			a:         store.Contact{Email: "ana@example.com"},
			b:         store.Contact{Email: "ANA@example.com"},
			wantScore: 40,
			wantDup:   false,
		},
		{
			name:      "phone only",
			a:         store.Contact{Phone: "+15551234567"},
			b:         store.Contact{Phone: "555-123-4567"},
			wantScore: 35,
			wantDup:   false,
		},
		{
			name:      "email plus exact name",
			a:         store.Contact{Name: "Ana Silva", Email: "ana@example.com"},
			b:         store.Contact{Name: "Ana Silva", Email: "ana@example.com"},
			wantScore: 65,
			wantDup:   true,
		},
		{
			name:      "phone plus near name",
			a:         store.Contact{Name: "Jonathan Price", Phone: "+15551234567"},
			b:         store.Contact{Name: "Jonathon Price", Phone: "5551234567"},
			wantScore: 55, // 35 + 20 (0.929 ratio lands in the 0.85 tier)
			wantDup:   false,
		},
		{
			name:      "all three",
			a:         store.Contact{Name: "Ana Silva", Email: "ana@example.com", Phone: "+15551234567"},
			b:         store.Contact{Name: "Ana Silva", Email: "ana@example.com", Phone: "5551234567"},
			wantScore: 100,
			wantDup:   true,
		},
		{
			name:      "name alone never qualifies",
			a:         store.Contact{Name: "Ana Silva"},
			b:         store.Contact{Name: "Ana Silva"},
			wantScore: 25,
			wantDup:   false,
		},
		{
			name:      "nothing in common",
			a:         store.Contact{Name: "Ana", Email: "ana@example.com"},
			b:         store.Contact{Name: "Bruno", Email: "bruno@example.com"},
			wantScore: 0,
			wantDup:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Score(&tt.a, &tt.b)
			if res.Score != tt.wantScore {
				t.Errorf("score = %d, want %d (reasons: %v)", res.Score, tt.wantScore, res.Reasons)
			}
			if got := AreLikelyDuplicates(&tt.a, &tt.b, 0); got != tt.wantDup {
				t.Errorf("AreLikelyDuplicates = %v, want %v", got, tt.wantDup)
			}
		})
	}
}
