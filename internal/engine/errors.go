// internal/engine/errors.go
package engine

import "errors"

// Rejections returned by Apply. Every rejection leaves the state untouched.
var (
	ErrOutOfTurn         = errors.New("out of turn")
	ErrInvalidBid        = errors.New("invalid bid")
	ErrInvalidDiscard    = errors.New("invalid discard")
	ErrInvalidFriendCard = errors.New("invalid friend card")
	ErrIllegalCard       = errors.New("illegal card")
	ErrInvalidJokerCall  = errors.New("invalid joker call")
	ErrPhaseMismatch     = errors.New("command not allowed in current phase")
	ErrUnknownPlayer     = errors.New("unknown player")
)

// ErrorKind is the stable wire name of a rejection.
type ErrorKind string

const (
	KindOutOfTurn         ErrorKind = "out_of_turn"
	KindInvalidBid        ErrorKind = "invalid_bid"
	KindInvalidDiscard    ErrorKind = "invalid_discard"
	KindInvalidFriendCard ErrorKind = "invalid_friend_card"
	KindIllegalCard       ErrorKind = "illegal_card"
	KindInvalidJokerCall  ErrorKind = "invalid_joker_call"
	KindPhaseMismatch     ErrorKind = "phase_mismatch"
	KindUnknownPlayer     ErrorKind = "unknown_player"
	KindInternal          ErrorKind = "internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrOutOfTurn, KindOutOfTurn},
	{ErrInvalidBid, KindInvalidBid},
	{ErrInvalidDiscard, KindInvalidDiscard},
	{ErrInvalidFriendCard, KindInvalidFriendCard},
	{ErrIllegalCard, KindIllegalCard},
	{ErrInvalidJokerCall, KindInvalidJokerCall},
	{ErrPhaseMismatch, KindPhaseMismatch},
	{ErrUnknownPlayer, KindUnknownPlayer},
}

// KindOf maps an error (possibly wrapped) to its wire kind.
func KindOf(err error) ErrorKind {
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindInternal
}
