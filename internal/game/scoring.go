package game

// TeamScore is one partnership's cumulative score and bag count.
type TeamScore struct {
	Score int `json:"score"`
	Bags  int `json:"bags"`
}

// NilBid is the bid amount denoting a nil bid.
const NilBid = 0

// MaxBid is the highest legal bid, one per trick in a round.
const MaxBid = 13

// scoreRound applies a completed round to both teams. bids and seatTricks are
// indexed by seat; seats 0+2 form team 0 and seats 1+3 form team 1.
//
// For each team, nil bidders are settled per seat (+100 if that seat took no
// tricks, -100 otherwise) on top of the partnership result: with B the sum of
// the non-nil bids and T the team's tricks, making the bid scores 10*B plus
// one point per overtrick, each overtrick also counting as a bag; missing the
// bid scores -10*B. Every time the bag counter crosses 10 the team loses 100
// points and the counter keeps the remainder.
func scoreRound(bids [4]int, seatTricks [4]int, teams *[2]TeamScore) {
	for team := 0; team < 2; team++ {
		first, second := team, team+2
		scoreTeamRound(
			&teams[team],
			[2]int{bids[first], bids[second]},
			[2]int{seatTricks[first], seatTricks[second]},
		)
	}
}

func scoreTeamRound(ts *TeamScore, bids [2]int, tricks [2]int) {
	bid := 0
	for _, b := range bids {
		if b != NilBid {
			bid += b
		}
	}
	taken := tricks[0] + tricks[1]

	if taken >= bid {
		overtricks := taken - bid
		ts.Score += bid*10 + overtricks
		ts.Bags += overtricks
	} else {
		ts.Score -= bid * 10
	}

	for i, b := range bids {
		if b != NilBid {
			continue
		}
		if tricks[i] == 0 {
			ts.Score += 100
		} else {
			ts.Score -= 100
		}
	}

	// Bags carry over; only the crossed multiples of ten are shed.
	for ts.Bags >= 10 {
		ts.Bags -= 10
		ts.Score -= 100
	}
}
