package rating

import (
	"github.com/google/uuid"
	"github.com/jason-s-yu/mighty/internal/models"
)

// ApplyRound rates one settled deal as a match between the master's team and the
// defenders. Each player plays the other side's average rating and scores 1 when their
// side won. Seats missing from current start at Default. Only seats present in current
// are returned, so callers can ignore guests by leaving them out.
func ApplyRound(res models.RoundResult, current map[uuid.UUID]Rating) map[uuid.UUID]Rating {
	var attack, defense []models.SeatResult
	for _, s := range res.Seats {
		if s.Seat == res.MasterSeat || (res.FriendSeat >= 0 && s.Seat == res.FriendSeat) {
			attack = append(attack, s)
		} else {
			defense = append(defense, s)
		}
	}
	if len(attack) == 0 || len(defense) == 0 {
		return map[uuid.UUID]Rating{}
	}

	ratingOf := func(id uuid.UUID) Rating {
		if r, ok := current[id]; ok {
			return r
		}
		return Default()
	}
	average := func(side []models.SeatResult) glicko2 {
		var mu, phi float64
		for _, s := range side {
			r := ratingOf(s.UserID).scaled()
			mu += r.mu
			phi += r.phi
		}
		n := float64(len(side))
		return glicko2{mu: mu / n, phi: phi / n, sigma: DefaultSigma}
	}
	attackAvg, defenseAvg := average(attack), average(defense)

	attackScore := 0.0
	if res.Success {
		attackScore = 1.0
	}

	out := make(map[uuid.UUID]Rating, len(current))
	rate := func(side []models.SeatResult, opp glicko2, score float64) {
		for _, s := range side {
			if _, known := current[s.UserID]; !known {
				continue
			}
			out[s.UserID] = update(ratingOf(s.UserID).scaled(), opp, score).unscaled()
		}
	}
	rate(attack, defenseAvg, attackScore)
	rate(defense, attackAvg, 1-attackScore)
	return out
}
