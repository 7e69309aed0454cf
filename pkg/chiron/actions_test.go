package chiron

import (
	"errors"
	"testing"
)

func TestBombard(t *testing.T) {
	// One hit roll, then per-unit damage draws of 3 each.
	s := newTestSim(&scriptedRand{floats: []float64{0}, ints: []int{2, 2}})
	art := spawnAt(t, s, "Artillery Battery", testHuman, 2, 2)
	a := spawnAt(t, s, ProtoScout, testAlien, 4, 2)
	b := spawnAt(t, s, ProtoScout, testAlien, 4, 2)
	a.HP = 2

	res, err := s.Bombard(art.ID, 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Hit {
		t.Fatal("expected a hit")
	}
	if a.HP != 1 || b.HP != 7 {
		t.Errorf("hp after bombardment: %d, %d", a.HP, b.HP)
	}
	if res.Damage[a.ID] != 1 || res.Damage[b.ID] != 3 || len(res.Destroyed) != 0 {
		t.Errorf("result = %+v", res)
	}
	if art.MovesLeft != 0 || art.HP != art.MaxHP {
		t.Errorf("artillery moves=%v hp=%d", art.MovesLeft, art.HP)
	}
}

func TestBombardSinksShips(t *testing.T) {
	s := newTestSim(&scriptedRand{floats: []float64{0}, ints: []int{2}})
	setOcean(s, 3, 2)
	art := spawnAt(t, s, "Artillery Battery", testHuman, 2, 2)
	ship := spawnAt(t, s, "Gunship Foil", testAlien, 3, 2)
	ship.HP = 2

	res, err := s.Bombard(art.ID, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Destroyed) != 1 || s.State.Unit(ship.ID) != nil {
		t.Errorf("ship survived: %+v", res)
	}
	mustValid(t, s.State)
}

func TestBombardRejections(t *testing.T) {
	s := newTestSim(nil)
	art := spawnAt(t, s, "Artillery Battery", testHuman, 2, 2)
	rover := spawnAt(t, s, "Gatling Rover", testHuman, 2, 3)
	spawnAt(t, s, ProtoScout, testAlien, 5, 2)
	spawnAt(t, s, ProtoScout, testHuman, 3, 3)

	if _, err := s.Bombard(rover.ID, 5, 2); !errors.Is(err, ErrWrongRole) {
		t.Errorf("non-artillery: %v", err)
	}
	if _, err := s.Bombard(art.ID, 5, 2); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("range 3: %v", err)
	}
	if _, err := s.Bombard(art.ID, 3, 3); !errors.Is(err, ErrNoTarget) {
		t.Errorf("friendly target: %v", err)
	}
	if art.MovesLeft != 2 {
		t.Error("rejected bombardment spent movement")
	}
}

func TestProbeSeizeBase(t *testing.T) {
	s := newTestSim(&scriptedRand{floats: []float64{0.1}})
	b := s.State.addBase("Outpost", testAlien, 3, 2)
	b.Population = 2
	guard := spawnAt(t, s, ProtoScout, testAlien, 3, 2)
	probe := spawnAt(t, s, "Probe Team", testHuman, 2, 2)
	s.State.Faction(testHuman).Credits = 150

	res, err := s.Probe(probe.ID, 3, 2, ProbeSeizeBase)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Cost != 100 {
		t.Fatalf("result = %+v", res)
	}
	if b.Faction != testHuman || guard.Faction != testHuman || s.State.Faction(testHuman).Credits != 50 {
		t.Errorf("base %d guard %d credits %d", b.Faction, guard.Faction, s.State.Faction(testHuman).Credits)
	}
	if !s.State.Faction(testAlien).Eliminated {
		t.Error("faction that lost its only base should be eliminated")
	}
	mustValid(t, s.State)
}

func TestProbeSeizeReleasesOutsideSupport(t *testing.T) {
	s := newTestSim(&scriptedRand{floats: []float64{0.1}})
	b := s.State.addBase("Outpost", testAlien, 3, 2)
	s.State.addBase("Home", testAlien, 9, 5)
	field := spawnAt(t, s, ProtoScout, testAlien, 7, 5)
	field.Support = b.ID
	probe := spawnAt(t, s, "Probe Team", testHuman, 2, 2)
	s.State.Faction(testHuman).Credits = 100

	res, err := s.Probe(probe.ID, 3, 2, ProbeSeizeBase)
	if err != nil || !res.Success {
		t.Fatalf("seize: %+v %v", res, err)
	}
	if b.Faction != testHuman {
		t.Fatalf("base owner = %d", b.Faction)
	}
	if field.Faction != testAlien || field.Support != 0 {
		t.Errorf("outside unit faction %d support %d, want %d and 0", field.Faction, field.Support, testAlien)
	}
	mustValid(t, s.State)
}

func TestProbeSeizeNeedsCredits(t *testing.T) {
	s := newTestSim(nil)
	b := s.State.addBase("Outpost", testAlien, 3, 2)
	b.Population = 4
	probe := spawnAt(t, s, "Probe Team", testHuman, 2, 2)
	if _, err := s.Probe(probe.ID, 3, 2, ProbeSeizeBase); !errors.Is(err, ErrInsufficientCredits) {
		t.Errorf("err = %v", err)
	}
	if s.State.Unit(probe.ID) == nil {
		t.Error("rejected probe was lost")
	}
}

func TestProbeFailureLosesTeam(t *testing.T) {
	s := newTestSim(&scriptedRand{floats: []float64{0.99}})
	s.State.addBase("Outpost", testAlien, 3, 2)
	probe := spawnAt(t, s, "Probe Team", testHuman, 2, 2)
	res, err := s.Probe(probe.ID, 3, 2, ProbeSabotage)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success || s.State.Unit(probe.ID) != nil {
		t.Errorf("failed probe survived: %+v", res)
	}
}

func TestProbeStealTech(t *testing.T) {
	s := newTestSim(&scriptedRand{floats: []float64{0}})
	s.State.addBase("Outpost", testAlien, 3, 2)
	s.State.Faction(testAlien).Techs = []string{"Biogenetics"}
	probe := spawnAt(t, s, "Probe Team", testHuman, 2, 2)
	res, err := s.Probe(probe.ID, 3, 2, ProbeStealTech)
	if err != nil {
		t.Fatal(err)
	}
	if res.Value != "Biogenetics" || !s.State.Faction(testHuman).HasTech("Biogenetics") {
		t.Errorf("result = %+v", res)
	}
}

func TestProbeChance(t *testing.T) {
	if p := ProbeChance(7, nil); p != 0.95 {
		t.Errorf("cap = %v", p)
	}
	b := &Base{Facilities: []Facility{CovertOpsCenter}}
	if p := ProbeChance(1, b); !approx(p, 0.30) {
		t.Errorf("covert ops = %v, want 0.30", p)
	}
}

func TestAirdrop(t *testing.T) {
	s := newTestSim(nil)
	s.State.addBase("Alpha", testHuman, 2, 2)
	u := spawnAt(t, s, "Laser Squad", testHuman, 2, 2)
	u.Abilities |= Airdrop
	u.MaxMoves, u.MovesLeft = 2, 2

	if err := s.Airdrop(u.ID, 9, 4); err != nil {
		t.Fatal(err)
	}
	if u.X != 9 || u.Y != 4 || !u.Dropped || u.MovesLeft != 1 {
		t.Errorf("after drop: (%d,%d) dropped=%v moves=%v", u.X, u.Y, u.Dropped, u.MovesLeft)
	}
	if err := s.Airdrop(u.ID, 8, 4); err == nil {
		t.Error("second drop in the same turn allowed")
	}
	mustValid(t, s.State)
}

func TestFoundBase(t *testing.T) {
	s := newTestSim(nil)
	colony := spawnAt(t, s, ProtoColony, testHuman, 5, 4)
	near := spawnAt(t, s, ProtoColony, testHuman, 6, 5)

	b, err := s.FoundBase(colony.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if b.Name != "Humans 1" || s.State.Unit(colony.ID) != nil || s.State.Map.At(5, 4).Base != b.ID {
		t.Errorf("base = %+v", b)
	}
	if !s.State.Faction(testHuman).FoundedBase {
		t.Error("FoundedBase not set")
	}
	if _, err := s.FoundBase(near.ID, "Too Close"); !errors.Is(err, ErrInvalidSite) {
		t.Errorf("err = %v, want ErrInvalidSite", err)
	}
	mustValid(t, s.State)
}

func TestActionsRefusedDuringBattle(t *testing.T) {
	s := newTestSim(nil)
	colony := spawnAt(t, s, ProtoColony, testHuman, 5, 4)
	former := spawnAt(t, s, ProtoFormer, testHuman, 2, 2)
	scout := spawnAt(t, s, ProtoScout, testHuman, 8, 5)
	s.State.Battle = &Battle{}

	if _, err := s.FoundBase(colony.ID, "Early"); !errors.Is(err, ErrBattleActive) {
		t.Errorf("FoundBase err = %v", err)
	}
	if err := s.StartTerraform(former.ID, Road); !errors.Is(err, ErrBattleActive) {
		t.Errorf("StartTerraform err = %v", err)
	}
	if err := s.Hold(scout.ID); !errors.Is(err, ErrBattleActive) {
		t.Errorf("Hold err = %v", err)
	}
	if len(s.State.Bases) != 0 || former.Work != nil || scout.Held || s.State.Unit(colony.ID) == nil {
		t.Error("refused action changed state")
	}
}

func TestSpawnUnknownPrototype(t *testing.T) {
	s := newTestSim(nil)
	b := s.State.addBase("Alpha", testHuman, 2, 2)
	if _, err := s.Spawn(b.ID, "Planet Buster"); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("err = %v", err)
	}
	u, err := s.Spawn(b.ID, ProtoFormer)
	if err != nil {
		t.Fatal(err)
	}
	if u.Support != b.ID || len(b.Garrison) != 1 {
		t.Errorf("spawned %+v garrison %v", u, b.Garrison)
	}
}
