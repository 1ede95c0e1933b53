package postgres

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Rdemo143/RenTO/internal/domain"
)

func TestSchema_PairColumnsUseByteCollation(t *testing.T) {
	for _, col := range []string{"participant_a", "participant_b", "lookup_key"} {
		re := regexp.MustCompile(`(?m)^\s*` + col + `\s+TEXT COLLATE "C" NOT NULL`)
		assert.Regexp(t, re, schema, col)
	}
	assert.Contains(t, schema, "CHECK (participant_a < participant_b)")

	// Mixed case and non-ASCII ids sort by bytes, which only "C" agrees with.
	assert.Equal(t, [2]string{"Zed", "amy"}, domain.CanonicalPair("amy", "Zed"))
	assert.Equal(t, [2]string{"zoe", "émile"}, domain.CanonicalPair("émile", "zoe"))
}

func TestSchema_ClientMessageIndexMatchesConflictTarget(t *testing.T) {
	assert.Regexp(t,
		regexp.MustCompile(`ON messages \(conversation_id, sender_id, client_message_id\)\s+WHERE client_message_id IS NOT NULL`),
		schema,
	)
}
