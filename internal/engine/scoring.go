// internal/engine/scoring.go
package engine

// Outcome is the settled result of one round.
type Outcome struct {
	Bid           Bid             `json:"bid"`
	Master        int             `json:"master"`
	Friend        int             `json:"friend"`
	Success       bool            `json:"success"`
	TeamPoints    int             `json:"teamPoints"`
	JokerCallUsed bool            `json:"jokerCallUsed"`
	Points        [NumPlayers]int `json:"points"`
	Deltas        [NumPlayers]int `json:"deltas"`
	Chips         [NumPlayers]int `json:"chips"`
}

// PayoutInput is everything a payout table may depend on.
type PayoutInput struct {
	Bid           Bid
	MinBid        int
	Success       bool
	JokerCallUsed bool
	Master        int
	// Friend is -1 when the master played alone.
	Friend     int
	TeamPoints int
}

// PayoutFunc turns a round outcome into per-seat chip deltas.
type PayoutFunc func(in PayoutInput) [NumPlayers]int

// DefaultPayout is zero-sum. The stake is the contract above the minimum plus one and
// doubles for no-trump, for playing alone, and for taking all twenty points. On success
// every defender pays the stake, the friend collects one stake and the master the rest.
// On failure the flows reverse.
func DefaultPayout(in PayoutInput) [NumPlayers]int {
	var deltas [NumPlayers]int
	stake := in.Bid.Quantity - (in.MinBid - 1)
	if stake < 1 {
		stake = 1
	}
	if in.Bid.Trump == NoTrump {
		stake *= 2
	}
	if in.Friend < 0 {
		stake *= 2
	}
	if in.Success && in.TeamPoints == MaxBid {
		stake *= 2
	}

	sign := 1
	if !in.Success {
		sign = -1
	}
	pool := 0
	for seat := 0; seat < NumPlayers; seat++ {
		if seat == in.Master || seat == in.Friend {
			continue
		}
		deltas[seat] = -sign * stake
		pool += stake
	}
	if in.Friend >= 0 {
		deltas[in.Friend] = sign * stake
		pool -= stake
	}
	deltas[in.Master] = sign * pool
	return deltas
}

// score tallies captured points, applies the payout, and enters Result.
func (s *State) score() []Event {
	out := Outcome{
		Bid:           *s.Bid,
		Master:        s.Master,
		Friend:        s.Friend.Seat,
		JokerCallUsed: s.JokerCallUsed,
	}
	for i, p := range s.Players {
		out.Points[i] = p.Points
	}
	out.TeamPoints = out.Points[s.Master]
	if out.Friend >= 0 {
		out.TeamPoints += out.Points[out.Friend]
	}
	out.Success = out.TeamPoints >= s.Bid.Quantity

	out.Deltas = s.Rules.payout()(PayoutInput{
		Bid:           out.Bid,
		MinBid:        s.Rules.MinBid,
		Success:       out.Success,
		JokerCallUsed: out.JokerCallUsed,
		Master:        out.Master,
		Friend:        out.Friend,
		TeamPoints:    out.TeamPoints,
	})
	for i := range s.Players {
		s.Players[i].Chips += out.Deltas[i]
		out.Chips[i] = s.Players[i].Chips
	}
	s.Phase = Result{Outcome: out}

	ev := publicEvent(EventRoundResult, s.Master)
	ev.Outcome = &out
	return []Event{ev}
}
