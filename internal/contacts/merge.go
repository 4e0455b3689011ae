package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/NKRTECH/unified-inbox/internal/store"
)

// FieldStrategy selects whose value wins for one field during a merge.
type FieldStrategy string

const (
	// StrategyPrimary keeps the primary's value, falling back to a
	// secondary's only when the primary's is empty. Default.
	StrategyPrimary FieldStrategy = "primary"
	// StrategySecondary prefers a non-empty secondary value.
	StrategySecondary FieldStrategy = "secondary"
	// StrategyMerge unions collection fields (tags, custom fields, social
	// handles); for scalar fields it behaves like StrategyPrimary.
	StrategyMerge FieldStrategy = "merge"
)

// MergeRequest describes an operator-selected merge.
type MergeRequest struct {
	PrimaryID    uuid.UUID                `json:"primary_id"`
	SecondaryIDs []uuid.UUID              `json:"secondary_ids"`
	Strategies   map[string]FieldStrategy `json:"strategies,omitempty"`
}

// Resolver is the duplicate-resolution workflow over the contact store.
type Resolver struct {
	contacts store.ContactStore
	log      *slog.Logger
}

// NewResolver creates a duplicate-resolution workflow.
func NewResolver(contacts store.ContactStore, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{contacts: contacts, log: log}
}

// FindDuplicates scores the full contact set and returns candidate groups.
func (r *Resolver) FindDuplicates(ctx context.Context, threshold int) ([]DuplicateGroup, error) {
	all, err := r.contacts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return FindDuplicateGroups(all, threshold), nil
}

// Merge computes the merged contact in memory, then applies it atomically:
// the primary update, every conversation/message foreign-key reassignment
// and the secondary deletions happen in a single store transaction.
func (r *Resolver) Merge(ctx context.Context, req MergeRequest) (*store.Contact, error) {
	if len(req.SecondaryIDs) == 0 {
		return nil, fmt.Errorf("merge requires at least one secondary contact")
	}
	for _, id := range req.SecondaryIDs {
		if id == req.PrimaryID {
			return nil, fmt.Errorf("primary contact cannot be its own secondary")
		}
	}

	primary, err := r.contacts.Get(ctx, req.PrimaryID)
	if err != nil {
		return nil, fmt.Errorf("load primary contact: %w", err)
	}
	secondaries := make([]*store.Contact, 0, len(req.SecondaryIDs))
	for _, id := range req.SecondaryIDs {
		c, getErr := r.contacts.Get(ctx, id)
		if getErr != nil {
			return nil, fmt.Errorf("load secondary contact %s: %w", id, getErr)
		}
		secondaries = append(secondaries, c)
	}

	merged := BuildMerged(primary, secondaries, req.Strategies)
	if err := r.contacts.MergeInto(ctx, merged, req.SecondaryIDs); err != nil {
		return nil, fmt.Errorf("apply merge: %w", err)
	}

	r.log.Info("contacts merged",
		"primary", req.PrimaryID,
		"secondaries", len(req.SecondaryIDs))
	return merged, nil
}

// BuildMerged computes the post-merge primary contact field by field.
// Pure function; the result is applied by the store in one transaction.
func BuildMerged(primary *store.Contact, secondaries []*store.Contact, strategies map[string]FieldStrategy) *store.Contact {
	out := *primary

	strat := func(field string) FieldStrategy {
		if s, ok := strategies[field]; ok {
			return s
		}
		return StrategyPrimary
	}

	mergeScalar := func(field string, dst *string, pick func(*store.Contact) string) {
		switch strat(field) {
		case StrategySecondary:
			for _, s := range secondaries {
				if v := pick(s); v != "" {
					*dst = v
					break
				}
			}
		default: // primary and merge: keep primary, fill blanks
			if *dst == "" {
				for _, s := range secondaries {
					if v := pick(s); v != "" {
						*dst = v
						break
					}
				}
			}
		}
	}

	mergeScalar("name", &out.Name, func(c *store.Contact) string { return c.Name })
	mergeScalar("email", &out.Email, func(c *store.Contact) string { return c.Email })
	mergeScalar("phone", &out.Phone, func(c *store.Contact) string { return c.Phone })

	out.Tags = mergeTags(primary.Tags, secondaries, strat("tags"))
	out.CustomFields = mergeMap(primary.CustomFields, secondaries, strat("custom_fields"),
		func(c *store.Contact) map[string]string { return c.CustomFields })
	out.SocialHandles = mergeMap(primary.SocialHandles, secondaries, strat("social_handles"),
		func(c *store.Contact) map[string]string { return c.SocialHandles })

	return &out
}

func mergeTags(primary []string, secondaries []*store.Contact, s FieldStrategy) []string {
	switch s {
	case StrategySecondary:
		for _, sec := range secondaries {
			if len(sec.Tags) > 0 {
				return append([]string(nil), sec.Tags...)
			}
		}
		return primary
	case StrategyMerge:
		seen := make(map[string]bool)
		var out []string
		add := func(tags []string) {
			for _, t := range tags {
				if !seen[t] {
					seen[t] = true
					out = append(out, t)
				}
			}
		}
		add(primary)
		for _, sec := range secondaries {
			add(sec.Tags)
		}
		sort.Strings(out)
		return out
	default:
		return primary
	}
}

func mergeMap(primary map[string]string, secondaries []*store.Contact, s FieldStrategy, pick func(*store.Contact) map[string]string) map[string]string {
	switch s {
	case StrategySecondary:
		for _, sec := range secondaries {
			if m := pick(sec); len(m) > 0 {
				out := make(map[string]string, len(m))
				for k, v := range m {
					out[k] = v
				}
				return out
			}
		}
		return primary
	case StrategyMerge:
		out := make(map[string]string)
		for _, sec := range secondaries {
			for k, v := range pick(sec) {
				out[k] = v
			}
		}
		// Primary entries win on key conflicts.
		for k, v := range primary {
			out[k] = v
		}
		if len(out) == 0 {
			return nil
		}
		return out
	default:
		return primary
	}
}
