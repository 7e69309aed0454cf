package chiron

import (
	"fmt"
	"math"
)

// Side identifies a combatant in a battle.
type Side int

const (
	SideNone Side = iota
	SideAttacker
	SideDefender
)

func (s Side) String() string {
	switch s {
	case SideAttacker:
		return "attacker"
	case SideDefender:
		return "defender"
	}
	return "none"
}

// Victor is the outcome tag of a battle.
type Victor string

const (
	VictorAttacker  Victor = "attacker"
	VictorDefender  Victor = "defender"
	VictorDisengage Victor = "disengage"
)

// Round is one precomputed exchange of a battle.
type Round struct {
	Winner     Side `json:"winner"`
	Damage     int  `json:"damage"`
	AttackerHP int  `json:"attacker_hp"`
	DefenderHP int  `json:"defender_hp"`
}

// Modifier is a named multiplicative combat bonus.
type Modifier struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
}

// BattleRecord is the complete precomputed outcome of one encounter. It is
// built once by ResolveCombat and never modified.
type BattleRecord struct {
	Attacker     UnitID     `json:"attacker"`
	Defender     UnitID     `json:"defender"`
	TargetX      int        `json:"target_x"`
	TargetY      int        `json:"target_y"`
	AttackerMods []Modifier `json:"attacker_mods,omitempty"`
	DefenderMods []Modifier `json:"defender_mods,omitempty"`
	Rounds       []Round    `json:"rounds"`
	Disengaged   Side       `json:"disengaged,omitempty"`
	Victor       Victor     `json:"victor"`
}

// Playback paces the display of a BattleRecord.
type Playback struct {
	Shown   int     `json:"shown"`   // rounds displayed so far
	Elapsed float64 `json:"elapsed"` // seconds accumulated toward the next step
}

// Battle is the single active encounter: its record and playback cursor.
type Battle struct {
	Record   BattleRecord `json:"record"`
	Playback Playback     `json:"playback"`
}

// Modifiers returns the named multiplicative bonuses u fights with against
// opp. The defender's tile is read from opp when u attacks and from u when
// it defends.
func (s *Sim) Modifiers(u *Unit, isDefender bool, opp *Unit) []Modifier {
	st := s.State
	var mods []Modifier
	add := func(name string, f float64) { mods = append(mods, Modifier{name, f}) }

	if d := u.Morale - MoraleGreen; d != 0 {
		add(fmt.Sprintf("Morale %+d", d), 1+0.125*float64(d))
	}

	att, def := u, opp
	if isDefender {
		att, def = opp, u
	}
	defTile := st.Map.At(def.X, def.Y)
	defBase := st.BaseAt(def.X, def.Y)

	if isDefender {
		if defBase == nil && defTile.Terrain == Land && defTile.Rocky && def.Category == LandUnit {
			add("Rocky terrain", 1.5)
		}
		baseBonus := 1.0
		if defBase != nil {
			add("Base defense", 1.25)
			baseBonus *= 1.25
			if defBase.Has(PerimeterDefense) {
				add(string(PerimeterDefense), 2)
				baseBonus *= 2
			}
		}
		if u.Abilities.Has(Trance) && att.Weapon == Psi {
			add("Trance", 1.5)
		}
		if att.Category == AirUnit {
			if u.Abilities.Has(AAA) {
				add("AAA tracking", 2)
			}
			if defBase != nil && defBase.Has(AerospaceComplex) {
				add(string(AerospaceComplex), 2)
			}
		}
		if att.Abilities.Has(Blink) && baseBonus > 1 {
			add("Blink displacer", 1/baseBonus)
		}
		return mods
	}

	if u.Chassis == Infantry && u.Category == LandUnit && defBase != nil {
		add("Infantry assault", 1.25)
	}
	if u.Chassis.Mobile() && def.Chassis == Infantry && def.Category == LandUnit && defBase == nil {
		add("Mobile in open", 1.25)
	}
	if u.Abilities.Has(Artillery) {
		if def.Category == SeaUnit {
			add("Artillery vs naval", 1.5)
		} else if def.Category == LandUnit {
			if steps := (st.Map.At(u.X, u.Y).Altitude - defTile.Altitude) / 1000; steps > 0 {
				add("Altitude", 1+0.25*float64(steps))
			}
		}
	}
	if u.Dropped {
		add("Airdrop", 0.5)
	}
	if u.Abilities.Has(Jamming) {
		add("Jamming", 1.5)
	}
	if (u.Weapon == Projectile && def.Armor == Energy) || (u.Weapon == Energy && def.Armor == Projectile) {
		add("Mode advantage", 1.25)
	}
	return mods
}

// Strength is base value × health × the product of all modifiers.
func Strength(base, hp int, mods []Modifier) float64 {
	v := float64(base * hp)
	for _, m := range mods {
		v *= m.Factor
	}
	return v
}

// Odds is the probability that the attacker wins a round.
func Odds(attackStr, defenseStr float64) float64 {
	if attackStr+defenseStr == 0 {
		return 0.5
	}
	return attackStr / (attackStr + defenseStr)
}

// DisengageChance is the probability that a losing unit breaks off.
func DisengageChance(morale, speedAdvantage int) float64 {
	return math.Min(0.90, 0.50+0.10*float64(morale)+0.05*float64(speedAdvantage-2))
}

// ResolveCombat precomputes the whole battle between attacker and defender
// and makes it the active battle. No unit is modified.
func (s *Sim) ResolveCombat(attacker, defender *Unit, x, y int) *Battle {
	rec := BattleRecord{
		Attacker:     attacker.ID,
		Defender:     defender.ID,
		TargetX:      x,
		TargetY:      y,
		AttackerMods: s.Modifiers(attacker, false, defender),
		DefenderMods: s.Modifiers(defender, true, attacker),
	}
	aHP, dHP := attacker.HP, defender.HP
	for aHP > 0 && dHP > 0 {
		odds := Odds(
			Strength(attacker.Attack, aHP, rec.AttackerMods),
			Strength(defender.Defense, dHP, rec.DefenderMods),
		)
		winner := SideDefender
		if s.Rand.Float64() < odds {
			winner = SideAttacker
		}
		dmg := 1 + s.Rand.Intn(3)
		var loser *Unit
		var loserHP *int
		var opp *Unit
		if winner == SideAttacker {
			dHP = max(0, dHP-dmg)
			loser, loserHP, opp = defender, &dHP, attacker
		} else {
			aHP = max(0, aHP-dmg)
			loser, loserHP, opp = attacker, &aHP, defender
		}
		rec.Rounds = append(rec.Rounds, Round{Winner: winner, Damage: dmg, AttackerHP: aHP, DefenderHP: dHP})

		if *loserHP > 0 && s.canDisengage(loser, *loserHP, opp) {
			adv := loser.MaxMoves - opp.MaxMoves
			if s.chance(DisengageChance(loser.Morale, adv)) {
				rec.Disengaged = SideAttacker
				if loser == defender {
					rec.Disengaged = SideDefender
				}
				break
			}
		}
	}
	switch {
	case rec.Disengaged != SideNone:
		rec.Victor = VictorDisengage
	case aHP > 0:
		rec.Victor = VictorAttacker
	default:
		rec.Victor = VictorDefender
	}
	b := &Battle{Record: rec}
	s.State.Battle = b
	s.Log.Debug().
		Int("attacker", int(attacker.ID)).Int("defender", int(defender.ID)).
		Int("rounds", len(rec.Rounds)).Str("victor", string(rec.Victor)).
		Msg("Battle resolved")
	return b
}

// canDisengage applies the eligibility rule against the unit's real
// maximum health.
func (s *Sim) canDisengage(u *Unit, simHP int, opp *Unit) bool {
	return float64(simHP) <= 0.5*float64(u.MaxHP) && u.MaxMoves-opp.MaxMoves >= 2
}

// Update advances battle playback by dt seconds and finishes the battle
// once every round has been shown and the closing delay has passed. It
// reports whether a battle is still active.
func (s *Sim) Update(dt float64) bool {
	b := s.State.Battle
	if b == nil {
		return false
	}
	t := s.Rules.Tuning
	b.Playback.Elapsed += dt
	for b.Playback.Shown < len(b.Record.Rounds) && b.Playback.Elapsed >= t.RoundDelay {
		b.Playback.Elapsed -= t.RoundDelay
		b.Playback.Shown++
	}
	if b.Playback.Shown >= len(b.Record.Rounds) && b.Playback.Elapsed >= t.FinishDelay {
		s.FinishBattle()
		return false
	}
	return true
}

// FinishBattle applies the active battle to the world and clears it.
func (s *Sim) FinishBattle() {
	st := s.State
	b := st.Battle
	if b == nil {
		return
	}
	st.Battle = nil
	rec := b.Record
	att, def := st.Unit(rec.Attacker), st.Unit(rec.Defender)
	if n := len(rec.Rounds); n > 0 {
		last := rec.Rounds[n-1]
		if att != nil {
			att.HP = last.AttackerHP
		}
		if def != nil {
			def.HP = last.DefenderHP
		}
	}
	if att != nil {
		att.MovesLeft = max(0, att.MovesLeft-1)
	}

	switch rec.Victor {
	case VictorDisengage:
		u := att
		if rec.Disengaged == SideDefender {
			u = def
		}
		if u != nil {
			s.retreat(u)
		}
	case VictorAttacker:
		if def != nil {
			s.destroy(def, att)
		}
		if att != nil {
			att.Kills++
			s.followUp(att, rec.TargetX, rec.TargetY)
		}
	case VictorDefender:
		if att != nil {
			s.destroy(att, def)
		}
		if def != nil {
			def.Kills++
		}
	}
	s.Log.Debug().Str("victor", string(rec.Victor)).Msg("Battle finished")
}

func (s *Sim) destroy(u, by *Unit) {
	st := s.State
	name := "unknown"
	if by != nil {
		if f := st.Faction(by.Faction); f != nil {
			name = f.Name
		}
	}
	s.queue(Event{Kind: EventUnitLost, Faction: u.Faction, Text: fmt.Sprintf("%s destroyed by %s", u.Name, name), Value: u.Name})
	st.removeUnit(u.ID)
}

// followUp moves a victorious land attacker into an enemy base left without
// defenders, through the normal capture path.
func (s *Sim) followUp(att *Unit, x, y int) {
	st := s.State
	b := st.BaseAt(x, y)
	if b == nil || att.Category != LandUnit || att.MovesLeft <= 0 || st.Defender(x, y) != nil {
		return
	}
	if _, err := s.TryMove(att.ID, x, y); err != nil {
		s.Log.Debug().Err(err).Int("unit", int(att.ID)).Msg("Attacker could not advance into base")
	}
}

// retreat moves a disengaged unit to the safest adjacent tile, or leaves it
// in place when none is available.
func (s *Sim) retreat(u *Unit) {
	st := s.State
	best, found := Point{}, false
	bestScore := math.MinInt
	for _, p := range st.Map.Neighbors(u.X, u.Y) {
		if !s.canOccupy(u, p.X, p.Y) {
			continue
		}
		score := s.safety(u.Faction, p.X, p.Y)
		if !found || score > bestScore {
			best, bestScore, found = p, score, true
		}
	}
	u.MovesLeft = 0
	if !found {
		return
	}
	if st.Map.At(best.X, best.Y).Terrain == Land {
		s.unload(u)
	}
	st.relocate(u, best.X, best.Y)
}

// safety is the negated wrapped Manhattan distance to the faction's nearest
// base. Higher is safer.
func (s *Sim) safety(f FactionID, x, y int) int {
	st := s.State
	bases := st.BasesOf(f)
	if len(bases) == 0 {
		return 0
	}
	best := math.MaxInt
	for _, b := range bases {
		best = min(best, st.Map.Manhattan(x, y, b.X, b.Y))
	}
	return -best
}

// canOccupy reports whether u could stand on (x, y) without a fight.
func (s *Sim) canOccupy(u *Unit, x, y int) bool {
	st := s.State
	t := st.Map.At(x, y)
	if t == nil || t.Terrain == Void {
		return false
	}
	for _, o := range st.UnitsAt(x, y) {
		if st.Hostile(u.Faction, o.Faction) {
			return false
		}
	}
	if b := st.BaseAt(x, y); b != nil && st.Hostile(b.Faction, u.Faction) {
		return false
	}
	switch u.Category {
	case LandUnit:
		return t.Terrain == Land
	case SeaUnit:
		return t.Terrain == Ocean || st.BaseAt(x, y) != nil
	}
	return true
}
