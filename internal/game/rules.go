// internal/game/rules.go
package game

import (
	"errors"
	"fmt"

	"github.com/jason-s-yu/mighty/internal/engine"
)

// HouseRules are the per-room options a host may change before the game starts.
type HouseRules struct {
	TurnTimerSec            int  `json:"turnTimerSec"`            // seconds before a stalled seat is forced; 0 disables timers
	MinBid                  int  `json:"minBid"`                  // lowest contract accepted in the auction
	OpenBidding             bool `json:"openBidding"`             // keep bidding until a single bidder remains
	AllowDealMiss           bool `json:"allowDealMiss"`           // allow a weak hand to demand a redeal before the first bid
	DealMissThreshold       int  `json:"dealMissThreshold"`       // highest hand score that still qualifies as a deal miss
	TrumpChangeRaise        int  `json:"trumpChangeRaise"`        // raise required to change a suited trump at the exchange; 0 forbids it
	JokerPowerlessFirstLast bool `json:"jokerPowerlessFirstLast"` // the Joker cannot win trick 1 or trick 10
	StartingChips           int  `json:"startingChips"`           // chips each seat starts the session with
	TrickClearDelayMs       int  `json:"trickClearDelayMs"`       // how long clients keep a finished trick on the table
}

// DefaultHouseRules mirrors engine.DefaultRules with a 30 second turn timer.
func DefaultHouseRules() HouseRules {
	r := engine.DefaultRules()
	return HouseRules{
		TurnTimerSec:      30,
		MinBid:            r.MinBid,
		AllowDealMiss:     r.AllowDealMiss,
		DealMissThreshold: r.DealMissThreshold,
		StartingChips:     r.StartingChips,
		TrickClearDelayMs: 1500,
	}
}

// EngineRules converts the room options into the constants the engine consults.
func (rules HouseRules) EngineRules() engine.Rules {
	r := engine.DefaultRules()
	r.MinBid = rules.MinBid
	r.OpenBidding = rules.OpenBidding
	r.AllowDealMiss = rules.AllowDealMiss
	r.DealMissThreshold = rules.DealMissThreshold
	r.TrumpChangeRaise = rules.TrumpChangeRaise
	r.JokerPowerlessFirstLast = rules.JokerPowerlessFirstLast
	r.StartingChips = rules.StartingChips
	return r
}

// Update will update the house rules with the new rules provided.
// If a rule is not set or defined, it will be ignored, and the old value will persist.
func (rules *HouseRules) Update(newRules map[string]interface{}) error {
	assignBool := func(field *bool, key string) error {
		if val, exists := newRules[key]; exists && val != nil {
			b, ok := val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
			*field = b
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal, maxVal int) error {
		val, exists := newRules[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		switch v := val.(type) {
		case float64: // JSON numbers decode as float64
			if v != float64(int(v)) {
				return fmt.Errorf("%s must be a whole number", key)
			}
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal || n > maxVal {
			return fmt.Errorf("%s must be between %d and %d", key, minVal, maxVal)
		}
		*field = n
		return nil
	}

	// work on a copy so a bad key leaves the rules unchanged
	next := *rules
	err := errors.Join(
		assignInt(&next.TurnTimerSec, "turnTimerSec", 0, 600),
		assignInt(&next.MinBid, "minBid", engine.LowestMinBid, engine.MaxBid),
		assignBool(&next.OpenBidding, "openBidding"),
		assignBool(&next.AllowDealMiss, "allowDealMiss"),
		assignInt(&next.DealMissThreshold, "dealMissThreshold", -1, 10),
		assignInt(&next.TrumpChangeRaise, "trumpChangeRaise", 0, engine.MaxBid),
		assignBool(&next.JokerPowerlessFirstLast, "jokerPowerlessFirstLast"),
		assignInt(&next.StartingChips, "startingChips", 0, 1_000_000),
		assignInt(&next.TrickClearDelayMs, "trickClearDelayMs", 0, 10_000),
	)
	if err != nil {
		return err
	}
	*rules = next
	return nil
}

// ParseRules converts a map of rules to a HouseRules struct. It will ensure the types are valid.
func ParseRules(rules map[string]interface{}, current HouseRules) (HouseRules, error) {
	houseRules := current
	err := houseRules.Update(rules)
	return houseRules, err
}
