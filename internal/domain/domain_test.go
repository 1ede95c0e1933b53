package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKey_OrderIndependent(t *testing.T) {
	assert.Equal(t, LookupKey("b", "a", ""), LookupKey("a", "b", ""))
	assert.Equal(t, "pair:1:a:1:b:0:", LookupKey("b", "a", ""))
	assert.Equal(t, "pair:1:a:1:b:2:p1", LookupKey("a", "b", "p1"))
	assert.NotEqual(t, LookupKey("a", "b", ""), LookupKey("a", "b", "p1"))
}

func TestLookupKey_SeparatorInIDs(t *testing.T) {
	tests := []struct {
		name string
		x, y [3]string
	}{
		{"colon moves between ids", [3]string{"a:b", "c", ""}, [3]string{"a", "b:c", ""}},
		{"colon moves into property", [3]string{"a", "b:c", ""}, [3]string{"a", "b", "c"}},
		{"property named none", [3]string{"a", "b", ""}, [3]string{"a", "b", "none"}},
		{"digits and colons", [3]string{"1:a", "b", "p"}, [3]string{"1", "a:b", "p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t,
				LookupKey(tt.x[0], tt.x[1], tt.x[2]),
				LookupKey(tt.y[0], tt.y[1], tt.y[2]),
			)
		})
	}
}

func TestConversation_IsBetween(t *testing.T) {
	c := &Conversation{Participants: CanonicalPair("a:b", "c")}
	assert.True(t, c.IsBetween("c", "a:b"))
	assert.False(t, c.IsBetween("a", "b:c"))
}

func TestNewConversation(t *testing.T) {
	now := time.Now()

	_, err := NewConversation("c1", "u1", "u1", "", now)
	assert.ErrorIs(t, err, ErrSelfConversation)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewConversation("c1", "u1", "", "", now)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	c, err := NewConversation("c1", "zed", "amy", "p9", now)
	require.NoError(t, err)
	assert.Equal(t, [2]string{"amy", "zed"}, c.Participants)
	assert.Equal(t, "pair:3:amy:3:zed:2:p9", c.LookupKey())
	assert.True(t, c.HasParticipant("zed"))
	assert.False(t, c.HasParticipant("bob"))
	assert.False(t, c.HasParticipant(""))
	assert.Equal(t, []string{"zed"}, c.Recipients("amy"))
}

func TestNewMessage(t *testing.T) {
	conv := &Conversation{ID: "c1", Participants: [2]string{"a", "b"}, PropertyID: "p1"}
	now := time.Now()

	tests := []struct {
		name    string
		sender  string
		content string
		atts    []Attachment
		wantErr error
	}{
		{name: "not participant", sender: "x", content: "hi", wantErr: ErrNotParticipant},
		{name: "blank content", sender: "a", content: "   \n\t", wantErr: ErrEmptyContent},
		{name: "too large", sender: "a", content: strings.Repeat("x", MaxMessageSize+1), wantErr: ErrMessageTooLarge},
		{name: "attachment without url", sender: "a", content: "hi", atts: []Attachment{{Kind: "image"}}, wantErr: ErrInvalidAttachment},
		{name: "too many attachments", sender: "a", content: "hi", atts: make([]Attachment, MaxAttachments+1), wantErr: ErrTooManyAttachments},
		{name: "ok", sender: "a", content: "  hello  ", atts: []Attachment{{Kind: "PDF", URL: "https://x/y"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage("m1", conv, tt.sender, tt.content, tt.atts, "", now)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, msg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "hello", msg.Content)
			assert.Equal(t, "p1", msg.PropertyID)
			assert.True(t, msg.IsPropertyChat())
			assert.False(t, msg.IsRead)
			assert.Equal(t, AttachmentOther, msg.Attachments[0].Kind)
		})
	}
}

func TestValidateContent(t *testing.T) {
	content, atts, err := ValidateContent("  hi  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "hi", content)
	assert.Empty(t, atts)

	_, _, err = ValidateContent(" \t ", nil)
	assert.ErrorIs(t, err, ErrEmptyContent)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestValidateContent_DisplayNameKeepsRunesWhole(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		runes int
	}{
		{"ascii over limit", strings.Repeat("a", MaxDisplayNameLen+10), MaxDisplayNameLen},
		{"two-byte runes", strings.Repeat("é", MaxDisplayNameLen+1), MaxDisplayNameLen},
		{"multibyte under byte limit", strings.Repeat("日", 100), 100},
		{"emoji straddling the byte limit", "x" + strings.Repeat("😀", MaxDisplayNameLen), MaxDisplayNameLen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, atts, err := ValidateContent("hi", []Attachment{{URL: "https://x/y", DisplayName: tt.in}})
			require.NoError(t, err)
			got := atts[0].DisplayName
			assert.True(t, utf8.ValidString(got))
			assert.Equal(t, tt.runes, utf8.RuneCountInString(got))
			assert.True(t, strings.HasPrefix(tt.in, got))
		})
	}
}

func TestKindForContentType(t *testing.T) {
	assert.Equal(t, AttachmentImage, KindForContentType("image/png"))
	assert.Equal(t, AttachmentDocument, KindForContentType("application/pdf"))
	assert.Equal(t, AttachmentDocument, KindForContentType("application/vnd.openxmlformats-officedocument.wordprocessingml.document"))
	assert.Equal(t, AttachmentOther, KindForContentType("application/zip"))
}

func TestMessagePreview(t *testing.T) {
	m := &Message{Content: "Is this\n available   still?"}
	assert.Equal(t, "Is this available still?", m.Preview(0))
	assert.Equal(t, "Is this…", m.Preview(7))
}

func TestDeletedForUser(t *testing.T) {
	m := &Message{DeletedFor: []string{"a"}}
	assert.True(t, m.DeletedForUser("a"))
	assert.False(t, m.DeletedForUser("b"))
}
