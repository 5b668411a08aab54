// internal/game/utils.go
package game

import (
	"encoding/json"
	"errors"

	"github.com/jason-s-yu/mighty/internal/engine"
	"github.com/sirupsen/logrus"
)

// EncodeEvent marshals a GameEvent into JSON bytes.
// Logs a warning and returns empty JSON "{}" on marshalling error.
func EncodeEvent(ev GameEvent) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		logrus.Warnf("failed to marshal GameEvent type %s: %v", ev.Type, err)
		return []byte("{}")
	}
	return data
}

// ErrorKind extends engine.KindOf with the session-level failures.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return "game_not_found"
	case errors.Is(err, ErrGameOver):
		return "game_over"
	case errors.Is(err, ErrAlreadyStarted):
		return "already_started"
	}
	return string(engine.KindOf(err))
}

// notifiedError marks a rejection that was already sent to the actor as an error event.
type notifiedError struct{ err error }

func (e notifiedError) Error() string { return e.err.Error() }
func (e notifiedError) Unwrap() error { return e.err }

// Notified reports whether err reached the actor as a private error event.
func Notified(err error) bool {
	var n notifiedError
	return errors.As(err, &n)
}

func errorEvent(err error) GameEvent {
	return GameEvent{
		Type: EventError,
		Payload: map[string]interface{}{
			"kind":    ErrorKind(err),
			"message": err.Error(),
		},
	}
}

// eventUser describes a seat. Assumes lock is held.
func (g *MightyGame) eventUser(seat int) *EventUser {
	if seat < 0 || seat >= len(g.Players) {
		return nil
	}
	p := g.Players[seat]
	return &EventUser{ID: p.ID, Username: p.Username, Seat: seat}
}

// toGameEvent renders an engine event for the wire. Assumes lock is held.
func (g *MightyGame) toGameEvent(e engine.Event) GameEvent {
	ev := GameEvent{User: g.eventUser(e.Seat), Forced: e.Forced}
	switch e.Kind {
	case engine.EventDealt:
		ev.Type = EventDealStarted
		ev.Payload = map[string]interface{}{
			"deal":   g.state.Deal,
			"reason": e.Reason,
		}
	case engine.EventBidPlaced:
		ev.Type = EventBidPlaced
		ev.Bid = e.Bid
	case engine.EventBidPassed:
		ev.Type = EventBidPassed
	case engine.EventDealMissDeclared:
		ev.Type = EventDealMissDeclared
		ev.Cards = e.Cards
	case engine.EventRedealt:
		ev.Type = EventRedealt
		ev.Payload = map[string]interface{}{"reason": e.Reason}
	case engine.EventMasterDecided:
		ev.Type = EventMasterDecided
		ev.Bid = e.Bid
	case engine.EventKittyDealt:
		ev.Type = EventKittyDealt
		ev.Cards = e.Cards
	case engine.EventTableCardsSet:
		ev.Type = EventTableCardsSet
		ev.Bid = e.Bid
		ev.Payload = map[string]interface{}{"trump": e.Trump}
	case engine.EventFriendSelected:
		ev.Type = EventFriendSelected
		ev.Payload = friendPayload(e.Friend)
	case engine.EventFriendRevealed:
		ev.Type = EventFriendRevealed
	case engine.EventCardPlayed:
		ev.Type = EventCardPlayed
		ev.Card = e.Card
		payload := map[string]interface{}{"round": g.state.Round}
		if e.JokerCall {
			payload["jokerCall"] = true
		}
		if e.JokerCallSuit != engine.SuitNone {
			payload["jokerCallSuit"] = e.JokerCallSuit
		}
		ev.Payload = payload
	case engine.EventTrickResolved:
		ev.Type = EventTrickResolved
		ev.Payload = map[string]interface{}{
			"points":       e.Trick.Points,
			"plays":        e.Trick.Plays,
			"tricks":       len(g.state.Completed),
			"clearDelayMs": g.HouseRules.TrickClearDelayMs,
		}
	case engine.EventRoundResult:
		ev.Type = EventRoundResult
		ev.Payload = map[string]interface{}{"outcome": e.Outcome}
	default:
		ev.Type = GameEventType(e.Kind)
	}
	return ev
}

// friendPayload announces the friend rule; the friend's seat stays unknown until revealed.
func friendPayload(f *engine.Friend) map[string]interface{} {
	if f == nil {
		return nil
	}
	payload := map[string]interface{}{
		"mode":   f.Mode.String(),
		"friend": "unknown",
	}
	if f.Card != nil {
		payload["card"] = *f.Card
	}
	if f.Mode == engine.FriendNone {
		payload["friend"] = "none"
	}
	return payload
}

// commandPayload is what the historian stores for each command.
func commandPayload(cmd engine.Command) map[string]interface{} {
	switch c := cmd.(type) {
	case engine.PlaceBid:
		return map[string]interface{}{"quantity": c.Quantity, "trump": c.Trump.String()}
	case engine.SetTableCards:
		discards := make([]string, len(c.Discards))
		for i, d := range c.Discards {
			discards[i] = d.String()
		}
		return map[string]interface{}{"discards": discards, "trump": c.Trump.String(), "quantity": c.Quantity}
	case engine.SelectFriend:
		p := map[string]interface{}{"mode": c.Mode.String()}
		if c.Card != nil {
			p["card"] = c.Card.String()
		}
		return p
	case engine.PlayCard:
		p := map[string]interface{}{"card": c.Card.String()}
		if c.JokerCall {
			p["jokerCall"] = true
		}
		if c.JokerCallSuit != engine.SuitNone {
			p["jokerCallSuit"] = c.JokerCallSuit.String()
		}
		return p
	}
	return nil
}
