package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"whisper/errors"
)

func TestCanonicalPair_Orders_Participants(t *testing.T) {
	req := require.New(t)

	lo, hi, err := CanonicalPair("bob", "alice")
	req.NoError(err)
	req.Equal("alice", lo)
	req.Equal("bob", hi)

	// Same pair, either order, same canonical form
	lo2, hi2, err := CanonicalPair("alice", "bob")
	req.NoError(err)
	req.Equal(lo, lo2)
	req.Equal(hi, hi2)
}

func TestCanonicalPair_Rejects_Invalid_Pairs(t *testing.T) {
	req := require.New(t)

	_, _, err := CanonicalPair("", "bob")
	req.ErrorIs(err, errors.ErrMissingParticipant)

	_, _, err = CanonicalPair("alice", "")
	req.ErrorIs(err, errors.ErrMissingParticipant)

	_, _, err = CanonicalPair("alice", "alice")
	req.ErrorIs(err, errors.ErrSelfChat)
}

func TestPairKey_Is_Order_Independent(t *testing.T) {
	req := require.New(t)

	k1, err := PairKey("bob", "alice")
	req.NoError(err)
	k2, err := PairKey("alice", "bob")
	req.NoError(err)
	req.Equal(k1, k2)
}

func TestChat_Counterpart(t *testing.T) {
	req := require.New(t)

	chat, err := NewChat("bob", "alice", time.Now().UTC())
	req.NoError(err)
	req.True(chat.HasParticipant("alice"))
	req.True(chat.HasParticipant("bob"))
	req.False(chat.HasParticipant("clara"))
	req.Equal("bob", chat.Counterpart("alice"))
	req.Equal("alice", chat.Counterpart("bob"))
}
