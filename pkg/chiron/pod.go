package chiron

import "fmt"

// PodOutcome is the result of opening a supply pod.
type PodOutcome string

const (
	PodTech     PodOutcome = "tech"
	PodArtifact PodOutcome = "artifact"
	PodContact  PodOutcome = "contact"
	PodCredits  PodOutcome = "credits"
	PodRiver    PodOutcome = "river"
)

// drawPod picks one outcome with a single weighted draw.
func (s *Sim) drawPod() PodOutcome {
	w := s.Rules.Tuning.PodWeights
	table := []struct {
		o PodOutcome
		w int
	}{
		{PodTech, w.Tech},
		{PodArtifact, w.Artifact},
		{PodContact, w.Contact},
		{PodCredits, w.Credits},
		{PodRiver, w.River},
	}
	total := 0
	for _, e := range table {
		total += max(0, e.w)
	}
	if total == 0 {
		return PodCredits
	}
	r := s.Rand.Intn(total)
	for _, e := range table {
		if r < max(0, e.w) {
			return e.o
		}
		r -= max(0, e.w)
	}
	return PodCredits
}

// collectPod opens the supply pod on t for u. An outcome that cannot apply
// falls back to credits.
func (s *Sim) collectPod(u *Unit, t *Tile) {
	st := s.State
	t.SupplyPod = false
	fac := st.Faction(u.Faction)
	if fac == nil {
		return
	}
	outcome := s.drawPod()
	text := ""
	switch outcome {
	case PodTech:
		if tech := s.Research.GrantTech(st, u.Faction); tech != "" {
			text = "Supply pod contains data: " + tech
			s.queue(Event{Kind: EventTechDiscovered, Faction: u.Faction, Text: "Discovered " + tech, Value: tech})
		} else {
			outcome = PodCredits
		}
	case PodArtifact:
		p, err := s.Rules.Prototype(ProtoArtifact)
		if err != nil {
			outcome = PodCredits
			break
		}
		a := st.spawn(p, u.Faction, u.X, u.Y)
		text = "Supply pod contains an alien artifact"
		s.queue(Event{Kind: EventArtifact, Faction: u.Faction, Text: text, Value: a.Name})
	case PodContact:
		other := s.uncontacted(u.Faction)
		if other == nil {
			outcome = PodCredits
			break
		}
		s.makeContact(u.Faction, other.ID)
		text = "Supply pod contains a radio beacon from " + other.Name
	case PodRiver:
		if !s.spawnRiver(u.X, u.Y) {
			outcome = PodCredits
			break
		}
		text = "A spring erupts and a new river flows"
	}
	if outcome == PodCredits {
		fac.Credits += s.Rules.Tuning.PodCredits
		text = fmt.Sprintf("Supply pod contains %d credits", s.Rules.Tuning.PodCredits)
	}
	s.queue(Event{Kind: EventSupplyPod, Faction: u.Faction, Text: text, Value: string(outcome)})
	s.Log.Debug().Int("unit", int(u.ID)).Str("outcome", string(outcome)).Msg("Supply pod opened")
}

// uncontacted returns the first living faction f has not met yet.
func (s *Sim) uncontacted(f FactionID) *Faction {
	st := s.State
	me := st.Faction(f)
	for i := range st.Factions {
		o := &st.Factions[i]
		if o.ID == f || o.ID == Natives || o.Eliminated || me.HasContact(o.ID) {
			continue
		}
		return o
	}
	return nil
}

// makeContact records mutual contact. A contact involving the human raises
// the new-contact decision.
func (s *Sim) makeContact(a, b FactionID) {
	st := s.State
	fa, fb := st.Faction(a), st.Faction(b)
	if fa == nil || fb == nil || fa.HasContact(b) {
		return
	}
	fa.Contacts = append(fa.Contacts, b)
	fb.Contacts = append(fb.Contacts, a)
	if st.RelationOf(a, b) == NoContact {
		st.SetRelation(a, b, Treaty)
	}
	switch st.HumanFaction {
	case a:
		st.Decisions.NewContacts = append(st.Decisions.NewContacts, b)
	case b:
		st.Decisions.NewContacts = append(st.Decisions.NewContacts, a)
	}
	s.queue(Event{Kind: EventContact, Faction: a, Text: fmt.Sprintf("%s contacted %s", fa.Name, fb.Name), Value: fb.Name})
}

// spawnRiver adds a river edge from (x, y) to its first land neighbour
// without one.
func (s *Sim) spawnRiver(x, y int) bool {
	g := s.State.Map
	t := g.At(x, y)
	if t == nil || t.Terrain != Land {
		return false
	}
	for _, p := range g.Neighbors(x, y) {
		d := g.DirectionTo(x, y, p.X, p.Y)
		if g.At(p.X, p.Y).Terrain == Land && !t.HasRiver(d) {
			g.SetRiver(x, y, d)
			return true
		}
	}
	return false
}
