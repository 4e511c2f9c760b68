package testutil

import (
	"testing"

	"github.com/itsluminous/Letters/internal/backend"
	"github.com/itsluminous/Letters/internal/query"
)

func mustLetter(t *testing.T, row backend.Row) query.Letter {
	t.Helper()
	l, err := backend.LetterFromRow(row)
	MustNoErr(t, err, "decode letter")
	return l
}

// LetterIDs returns the ids of letters in order.
func LetterIDs(letters []query.Letter) []string {
	ids := make([]string, len(letters))
	for i, l := range letters {
		ids[i] = l.ID
	}
	return ids
}
