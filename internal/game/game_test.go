package game

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTally_SingleWinner(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	winners, max := Tally([]uuid.UUID{a, a, b})
	if len(winners) != 1 || winners[0] != a {
		t.Fatalf("want single winner %s, got %v", a, winners)
	}
	if max != 2 {
		t.Fatalf("want maxVotes=2, got %d", max)
	}
}

func TestTally_TieReturnsAllTopCandidates(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	winners, max := Tally([]uuid.UUID{a, b, a, b, c})
	if len(winners) != 2 {
		t.Fatalf("want 2 tied winners, got %v", winners)
	}
	if max != 2 {
		t.Fatalf("want maxVotes=2, got %d", max)
	}
	if !Contains(winners, a) || !Contains(winners, b) {
		t.Fatalf("tie should contain both %s and %s, got %v", a, b, winners)
	}
}

func TestTally_Deterministic(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	w1, _ := Tally([]uuid.UUID{a, b})
	w2, _ := Tally([]uuid.UUID{b, a})
	if len(w1) != 2 || len(w2) != 2 || w1[0] != w2[0] || w1[1] != w2[1] {
		t.Fatalf("tally order must not depend on ballot order: %v vs %v", w1, w2)
	}
}

func TestApplyResponse(t *testing.T) {
	cases := []struct {
		name        string
		budget      int
		baseValue   int
		cost        int
		effects     Effects
		wantBudget  int
		wantScore   int
		wantDebt    bool
	}{
		{
			name:       "cost moves budget, effects move score",
			budget:     5000,
			baseValue:  0,
			cost:       -100,
			effects:    Effects{Economic: -50},
			wantBudget: 4900,
			wantScore:  -50,
		},
		{
			name:       "base value applies to every decision",
			budget:     1000,
			baseValue:  10,
			cost:       -200,
			effects:    Effects{Political: 5, Society: 5},
			wantBudget: 800,
			wantScore:  20,
		},
		{
			name:       "budget may go negative",
			budget:     50,
			cost:       -100,
			wantBudget: -50,
			wantDebt:   true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyResponse(tc.budget, tc.baseValue, tc.cost, tc.effects)
			if got.NewBudget != tc.wantBudget {
				t.Fatalf("NewBudget: got %d, want %d", got.NewBudget, tc.wantBudget)
			}
			if got.ScoreChange != tc.wantScore {
				t.Fatalf("ScoreChange: got %d, want %d", got.ScoreChange, tc.wantScore)
			}
			if got.IsDebt != tc.wantDebt {
				t.Fatalf("IsDebt: got %v, want %v", got.IsDebt, tc.wantDebt)
			}
		})
	}
}

func TestRemainingSeconds(t *testing.T) {
	now := time.Now()
	started := now.Add(-30 * time.Second)

	if got := RemainingSeconds(1, &started, now); got != 30 {
		t.Fatalf("got %d, want 30", got)
	}

	old := now.Add(-5 * time.Minute)
	if got := RemainingSeconds(1, &old, now); got != 0 {
		t.Fatalf("expired timer must clamp to 0, got %d", got)
	}

	if got := RemainingSeconds(2, nil, now); got != 120 {
		t.Fatalf("nil start means full budget, got %d", got)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	started := now.Add(-61 * time.Second)
	if !Expired(60, &started, now) {
		t.Fatalf("61s elapsed of 60s limit should be expired")
	}
	if Expired(60, nil, now) {
		t.Fatalf("nil start never expires")
	}
}

func TestEveryNRounds(t *testing.T) {
	cases := []struct {
		name         string
		n            int
		round        int
		lastElection int
		want         bool
	}{
		{"first round always elects", 1, 1, 0, true},
		{"every round", 1, 2, 1, true},
		{"term of two, mid-term", 2, 2, 1, false},
		{"term of two, term over", 2, 3, 1, true},
		{"zero n falls back to one", 0, 2, 1, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := EveryNRounds{N: tc.n}
			if got := p.NeedsElection(tc.round, tc.lastElection); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRoundRobin_BalancedWithinOne(t *testing.T) {
	ids := make([]uuid.UUID, 7)
	for i := range ids {
		ids[i] = uuid.New()
	}
	buckets := RoundRobin(ids, 3)
	sizes := []int{len(buckets[0]), len(buckets[1]), len(buckets[2])}
	if sizes[0] != 3 || sizes[1] != 2 || sizes[2] != 2 {
		t.Fatalf("uneven deal: %v", sizes)
	}
}

func TestConditionEval(t *testing.T) {
	s := Stats{Score: 40, Budget: -10}

	ok, err := Condition{Kind: CondGTE, Field: FieldScore, Value: 40}.Eval(s)
	if err != nil || !ok {
		t.Fatalf("gte score: ok=%v err=%v", ok, err)
	}
	ok, err = Condition{Kind: CondLTE, Field: FieldBudget, Value: -1}.Eval(s)
	if err != nil || !ok {
		t.Fatalf("lte budget: ok=%v err=%v", ok, err)
	}
	if _, err := (Condition{Kind: "matches", Field: FieldScore}).Eval(s); err == nil {
		t.Fatalf("unknown kind must error, not execute")
	}
}
