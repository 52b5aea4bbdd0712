package game

import "testing"

func applyTeamRound(t *testing.T, start TeamScore, bids [2]int, tricks [2]int) TeamScore {
	t.Helper()
	ts := start
	scoreTeamRound(&ts, bids, tricks)
	return ts
}

func TestScoreTeamRound(t *testing.T) {
	tests := []struct {
		name   string
		start  TeamScore
		bids   [2]int
		tricks [2]int
		want   TeamScore
	}{
		{
			name:   "exact bid",
			bids:   [2]int{2, 1},
			tricks: [2]int{2, 1},
			want:   TeamScore{Score: 30},
		},
		{
			name:   "overtricks add points and bags",
			bids:   [2]int{2, 1},
			tricks: [2]int{3, 2},
			want:   TeamScore{Score: 32, Bags: 2},
		},
		{
			name:   "missed bid penalized",
			bids:   [2]int{2, 1},
			tricks: [2]int{1, 1},
			want:   TeamScore{Score: -30},
		},
		{
			name:   "successful nil",
			bids:   [2]int{0, 4},
			tricks: [2]int{0, 4},
			want:   TeamScore{Score: 140},
		},
		{
			name:   "failed nil still counts partner tricks",
			bids:   [2]int{0, 4},
			tricks: [2]int{2, 4},
			want:   TeamScore{Score: -58, Bags: 2},
		},
		{
			name:   "double nil both made",
			bids:   [2]int{0, 0},
			tricks: [2]int{0, 0},
			want:   TeamScore{Score: 200},
		},
		{
			name:   "bag penalty on crossing ten",
			start:  TeamScore{Score: 120, Bags: 8},
			bids:   [2]int{2, 2},
			tricks: [2]int{4, 3},
			want:   TeamScore{Score: 63, Bags: 1},
		},
		{
			name:   "bags short of ten carry over",
			start:  TeamScore{Score: 120, Bags: 8},
			bids:   [2]int{2, 2},
			tricks: [2]int{3, 2},
			want:   TeamScore{Score: 161, Bags: 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyTeamRound(t, tt.start, tt.bids, tt.tricks)
			if got != tt.want {
				t.Errorf("scoreTeamRound() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestScoreRoundSplitsTeamsBySeat(t *testing.T) {
	var teams [2]TeamScore
	// Seats 0+2 bid 3+4 and take all they bid; seats 1+3 bid 2+1 and fall short.
	bids := [4]int{3, 2, 4, 1}
	tricks := [4]int{3, 1, 4, 1}
	scoreRound(bids, tricks, &teams)

	if teams[0] != (TeamScore{Score: 70}) {
		t.Errorf("Team 0 = %+v, want {Score:70}", teams[0])
	}
	if teams[1] != (TeamScore{Score: -30}) {
		t.Errorf("Team 1 = %+v, want {Score:-30}", teams[1])
	}
}

func TestScoreRoundIsCumulative(t *testing.T) {
	teams := [2]TeamScore{{Score: 50, Bags: 3}, {Score: -20}}
	scoreRound([4]int{3, 3, 3, 3}, [4]int{4, 3, 3, 3}, &teams)

	if teams[0] != (TeamScore{Score: 111, Bags: 4}) {
		t.Errorf("Team 0 = %+v, want {Score:111 Bags:4}", teams[0])
	}
	if teams[1] != (TeamScore{Score: 40}) {
		t.Errorf("Team 1 = %+v, want {Score:40}", teams[1])
	}
}
