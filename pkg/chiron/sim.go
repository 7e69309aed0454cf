package chiron

import (
	"slices"

	"github.com/rs/zerolog"
)

// Rand is the random source the engine draws from. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// Decider is the faction-decision layer. It is called once per unit during
// computer-controlled processing and issues TryMove, Bombard, Hold and
// similar calls on the Sim.
type Decider interface {
	Decide(s *Sim, u *Unit)
}

// Production processes one base per faction turn and returns the name of a
// completed item, or "".
type Production interface {
	ProcessBase(st *State, b *Base) string
}

// Research accumulates research for a faction and hands out technologies.
// Each method returns a technology id, or "" when nothing was gained.
type Research interface {
	Accumulate(st *State, f FactionID) string
	GrantTech(st *State, f FactionID) string
	StealTech(st *State, from, to FactionID) string
}

// Commerce computes inter-faction resource exchange once per turn.
type Commerce interface {
	Exchange(st *State) []Event
}

// Sim is the simulation context passed to every engine operation: the
// state, the rules, the random source and the external collaborators.
// It is not safe for concurrent use.
type Sim struct {
	State      *State
	Rules      *Ruleset
	Rand       Rand
	Log        zerolog.Logger
	Decider    Decider
	Production Production
	Research   Research
	Commerce   Commerce
}

// Option configures a Sim.
type Option func(*Sim)

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Sim) { s.Log = l } }

// WithDecider sets the faction-decision layer used for computer factions.
func WithDecider(d Decider) Option { return func(s *Sim) { s.Decider = d } }

// WithRules replaces the default ruleset.
func WithRules(r *Ruleset) Option { return func(s *Sim) { s.Rules = r } }

// WithProduction sets the production collaborator.
func WithProduction(p Production) Option { return func(s *Sim) { s.Production = p } }

// WithResearch sets the research collaborator.
func WithResearch(r Research) Option { return func(s *Sim) { s.Research = r } }

// WithCommerce sets the commerce collaborator.
func WithCommerce(c Commerce) Option { return func(s *Sim) { s.Commerce = c } }

// NewSim wraps a state with a random source and collaborators. Missing
// collaborators fall back to the built-in defaults.
func NewSim(st *State, rng Rand, opts ...Option) *Sim {
	s := &Sim{
		State:      st,
		Rules:      DefaultRuleset(),
		Rand:       rng,
		Log:        zerolog.Nop(),
		Decider:    holdDecider{},
		Production: defaultProduction{},
		Research:   defaultResearch{},
		Commerce:   defaultCommerce{},
	}
	for _, o := range opts {
		o(s)
	}
	if r, ok := s.Research.(defaultResearch); ok && r.techs == nil {
		s.Research = defaultResearch{techs: s.Rules.Techs}
	}
	return s
}

type holdDecider struct{}

func (holdDecider) Decide(*Sim, *Unit) {}

// --- Decisions ---

// DecisionKind names a pending-decision flag.
type DecisionKind string

const (
	DecisionTreatyBreak    DecisionKind = "treaty_break"
	DecisionSurpriseAttack DecisionKind = "surprise_attack"
	DecisionMoveOverflow   DecisionKind = "move_overflow"
	DecisionNewContact     DecisionKind = "new_contact"
)

// PendingAttack is an attack waiting for the player to confirm breaking a
// treaty.
type PendingAttack struct {
	Unit   UnitID    `json:"unit"`
	X      int       `json:"x"`
	Y      int       `json:"y"`
	Victim FactionID `json:"victim"`
}

// SurpriseAttack tells the player that a computer faction broke a treaty.
type SurpriseAttack struct {
	Aggressor FactionID `json:"aggressor"`
	X         int       `json:"x"`
	Y         int       `json:"y"`
}

// Decisions are flags the presentation layer must clear before auto-end-turn
// and auto-cycling proceed.
type Decisions struct {
	TreatyBreak    *PendingAttack  `json:"treaty_break,omitempty"`
	SurpriseAttack *SurpriseAttack `json:"surprise_attack,omitempty"`
	MoveOverflow   []UnitID        `json:"move_overflow,omitempty"`
	NewContacts    []FactionID     `json:"new_contacts,omitempty"`
}

// Pending reports whether any decision flag is set.
func (d *Decisions) Pending() bool {
	return d.TreatyBreak != nil || d.SurpriseAttack != nil ||
		len(d.MoveOverflow) > 0 || len(d.NewContacts) > 0
}

// Clear resets one decision flag. Unknown kinds are ignored.
func (d *Decisions) Clear(kind DecisionKind) {
	switch kind {
	case DecisionTreatyBreak:
		d.TreatyBreak = nil
	case DecisionSurpriseAttack:
		d.SurpriseAttack = nil
	case DecisionMoveOverflow:
		d.MoveOverflow = nil
	case DecisionNewContact:
		d.NewContacts = nil
	}
}

func (d Decisions) clone() Decisions {
	c := d
	if d.TreatyBreak != nil {
		tb := *d.TreatyBreak
		c.TreatyBreak = &tb
	}
	if d.SurpriseAttack != nil {
		sa := *d.SurpriseAttack
		c.SurpriseAttack = &sa
	}
	c.MoveOverflow = slices.Clone(d.MoveOverflow)
	c.NewContacts = slices.Clone(d.NewContacts)
	return c
}

// ClearDecision resets a pending-decision flag on behalf of the
// presentation layer.
func (s *Sim) ClearDecision(kind DecisionKind) {
	s.State.Decisions.Clear(kind)
}

// --- Events ---

// EventKind classifies a queued upkeep event.
type EventKind string

const (
	EventTechDiscovered    EventKind = "tech_discovered"
	EventIncome            EventKind = "income"
	EventContact           EventKind = "contact"
	EventMilestone         EventKind = "milestone"
	EventUnrest            EventKind = "unrest"
	EventBaseCaptured      EventKind = "base_captured"
	EventBaseDestroyed     EventKind = "base_destroyed"
	EventBaseFounded       EventKind = "base_founded"
	EventProduction        EventKind = "production"
	EventFactionEliminated EventKind = "faction_eliminated"
	EventUnitLost          EventKind = "unit_lost"
	EventArtifact          EventKind = "artifact"
	EventSupplyPod         EventKind = "supply_pod"
)

// Event is something the player should be told about during upkeep.
type Event struct {
	Kind    EventKind `json:"kind"`
	Turn    int       `json:"turn"`
	Faction FactionID `json:"faction"`
	Text    string    `json:"text"`
	Value   string    `json:"value,omitempty"`
}

// queue appends an event stamped with the current turn.
func (s *Sim) queue(e Event) {
	e.Turn = s.State.Turn
	s.State.Events = append(s.State.Events, e)
}

// CurrentEvent returns the event being shown during upkeep, or nil.
func (s *Sim) CurrentEvent() *Event {
	st := s.State
	if st.Phase != PhaseUpkeep || st.EventCursor >= len(st.Events) {
		return nil
	}
	return &st.Events[st.EventCursor]
}

// chance draws once and reports success with probability p.
func (s *Sim) chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return s.Rand.Float64() < p
}
