package query

import (
	"sort"
	"time"
)

// ApplyFilters composes base with the restrictions in f without executing
// anything. correlated names the column a contact restriction applies to.
//
// An empty filter returns base unchanged. Otherwise the result is the
// conjunction of base and every active restriction; the contact set is
// deduplicated and sorted so equal filters always produce equal queries.
func ApplyFilters(base Predicate, f FilterSpec, correlated string) Predicate {
	var restrictions []Predicate

	if len(f.ContactIDs) > 0 {
		ids := uniqueSorted(f.ContactIDs)
		values := make([]any, len(ids))
		for i, id := range ids {
			values[i] = id
		}
		restrictions = append(restrictions, In{Column: correlated, Values: values})
	}
	if f.Before != nil {
		restrictions = append(restrictions, Lt{Column: ColCreatedAt, Value: exclusiveUpperBound(*f.Before)})
	}
	if f.After != nil {
		restrictions = append(restrictions, Gt{Column: ColCreatedAt, Value: f.After.UTC()})
	}

	if len(restrictions) == 0 {
		return base
	}
	preds := make([]Predicate, 0, len(restrictions)+1)
	if base != nil {
		preds = append(preds, base)
	}
	return And{Predicates: append(preds, restrictions...)}
}

// exclusiveUpperBound raises a bound that falls between two stored
// microseconds to the next one. Stored timestamps are truncated to
// microseconds, so a row created in the bound's own microsecond is still
// before it.
func exclusiveUpperBound(t time.Time) time.Time {
	t = t.UTC()
	if whole := t.Truncate(time.Microsecond); !whole.Equal(t) {
		return whole.Add(time.Microsecond)
	}
	return t
}

func uniqueSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// createdAt orders by creation time with id as a stable tiebreaker.
func createdAt(desc bool) []Order {
	return []Order{{Column: ColCreatedAt, Desc: desc}, {Column: ColID, Desc: desc}}
}

// UnreadInbox selects unread letters addressed to userID, oldest first.
func UnreadInbox(userID string, f FilterSpec) Select {
	base := And{Predicates: []Predicate{
		Eq{Column: ColRecipientID, Value: userID},
		Eq{Column: ColIsRead, Value: false},
	}}
	return Select{
		Table:   TableLetters,
		Where:   ApplyFilters(base, f, Inbox.CorrelatedColumn()),
		OrderBy: createdAt(false),
	}
}

// ReadInbox selects read letters addressed to userID, newest first.
func ReadInbox(userID string, f FilterSpec) Select {
	base := And{Predicates: []Predicate{
		Eq{Column: ColRecipientID, Value: userID},
		Eq{Column: ColIsRead, Value: true},
	}}
	return Select{
		Table:   TableLetters,
		Where:   ApplyFilters(base, f, Inbox.CorrelatedColumn()),
		OrderBy: createdAt(true),
	}
}

// SentLetters selects every letter authored by userID, newest first.
func SentLetters(userID string, f FilterSpec) Select {
	return Select{
		Table:   TableLetters,
		Where:   ApplyFilters(Eq{Column: ColAuthorID, Value: userID}, f, Sent.CorrelatedColumn()),
		OrderBy: createdAt(true),
	}
}

// LetterByID matches a single letter.
func LetterByID(id string) Predicate {
	return Eq{Column: ColID, Value: id}
}

// ContactsOf selects the contacts owned by userID ordered by display name.
func ContactsOf(userID string) Select {
	return Select{
		Table: TableContacts,
		Where: Eq{Column: ColUserID, Value: userID},
		OrderBy: []Order{
			{Column: ColDisplayName},
			{Column: ColID},
		},
	}
}

// ProfilesOf selects the profiles of the given users.
func ProfilesOf(userIDs []string) Select {
	ids := uniqueSorted(userIDs)
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return Select{
		Table:   TableProfiles,
		Where:   In{Column: ColUserID, Values: values},
		OrderBy: []Order{{Column: ColUserID}},
	}
}
