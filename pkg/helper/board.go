package helper

import (
	"sync"
	"time"

	"github.com/teslashibe/go-livehelper/pkg/ident"
)

// MaxTitans is the most defense units that can be active at once.
const MaxTitans = 3

// TitanKinds are deployed in this order.
var TitanKinds = []string{"Rex", "Raptor", "Ptera"}

// Job is a task delegated to a collective.
type Job struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Group         Group     `json:"group"`
	Status        string    `json:"status"`
	Priority      string    `json:"priority"`
	LoveResonance float64   `json:"love_resonance"`
	Created       time.Time `json:"created"`
}

// Research is a research task.
type Research struct {
	ID       string    `json:"id"`
	Subject  string    `json:"subject"`
	Progress int       `json:"progress"`
	Findings []string  `json:"findings"`
	Complete bool      `json:"complete"`
	Created  time.Time `json:"created"`
}

// Titan is one deployed defense unit.
type Titan struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Energy int    `json:"energy"`
}

// Defense is the state of the defense network.
type Defense struct {
	Active          bool    `json:"active"`
	Titans          []Titan `json:"titans"`
	ShieldIntegrity int     `json:"shield_integrity"`
}

// Handover records a request to pass the session to another user.
type Handover struct {
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`
}

// Snapshot is a copy of the board for display.
type Snapshot struct {
	Jobs      []Job      `json:"jobs"`
	Research  []Research `json:"research"`
	Defense   Defense    `json:"defense"`
	Handovers []Handover `json:"handovers"`
}

// Board holds everything the model's tool calls create. It is safe for
// concurrent use; handlers run on their own goroutines.
type Board struct {
	ids    ident.Generator
	notify func(text string)
	now    func() time.Time

	mu        sync.RWMutex
	jobs      []Job
	research  []Research
	defense   Defense
	handovers []Handover
}

// BoardOption configures a Board.
type BoardOption func(*Board)

// WithIDs sets the id generator. The default is ident.UUID.
func WithIDs(g ident.Generator) BoardOption {
	return func(b *Board) { b.ids = g }
}

// WithNotifier receives a system line for every board change.
func WithNotifier(fn func(text string)) BoardOption {
	return func(b *Board) { b.notify = fn }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) BoardOption {
	return func(b *Board) { b.now = now }
}

// NewBoard creates an empty board.
func NewBoard(opts ...BoardOption) *Board {
	b := &Board{
		ids:     ident.UUID{},
		notify:  func(string) {},
		now:     time.Now,
		defense: Defense{ShieldIntegrity: 100},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AddJob records a delegated job. Newest jobs come first.
func (b *Board) AddJob(title, description string, group Group, love float64) Job {
	job := Job{
		ID:            b.ids.NewID(),
		Title:         title,
		Description:   description,
		Group:         group,
		Status:        "Active",
		Priority:      "Crucial",
		LoveResonance: love,
		Created:       b.now(),
	}
	b.mu.Lock()
	b.jobs = append([]Job{job}, b.jobs...)
	b.mu.Unlock()

	b.notify("[DIVINE ASSIGNMENT] " + title + " entrusted to " + string(group) + " Collective.")
	return job
}

// CompleteJob marks a job complete. It reports whether the job exists.
func (b *Board) CompleteJob(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.jobs {
		if b.jobs[i].ID == id {
			b.jobs[i].Status = "Complete"
			return true
		}
	}
	return false
}

// StartResearch records a research task. Newest tasks come first.
func (b *Board) StartResearch(subject string) Research {
	r := Research{
		ID:       b.ids.NewID(),
		Subject:  subject,
		Findings: []string{"Scanning with Titan Processors for " + subject + "..."},
		Created:  b.now(),
	}
	b.mu.Lock()
	b.research = append([]Research{r}, b.research...)
	b.mu.Unlock()

	b.notify("[COSMIC RESEARCH] Scanning subject: " + subject + ".")
	return r
}

// Deploy activates up to count titans, capped at MaxTitans. A count of
// zero or less deploys the full complement.
func (b *Board) Deploy(count int) Defense {
	if count <= 0 || count > MaxTitans {
		count = MaxTitans
	}
	titans := make([]Titan, count)
	for i := range titans {
		status := "Patrolling"
		if TitanKinds[i] == "Raptor" {
			status = "Shielding"
		}
		titans[i] = Titan{ID: b.ids.NewID(), Kind: TitanKinds[i], Status: status, Energy: 100}
	}

	b.mu.Lock()
	b.defense = Defense{Active: true, Titans: titans, ShieldIntegrity: 100}
	d := b.defenseLocked()
	b.mu.Unlock()

	b.notify("[SYSTEM] Dinosaur Titan Advanced Robots deployed for Neural Defense.")
	return d
}

// RequestHandover records a handover request.
func (b *Board) RequestHandover(reason string) Handover {
	h := Handover{Reason: reason, Time: b.now()}
	b.mu.Lock()
	b.handovers = append(b.handovers, h)
	b.mu.Unlock()

	b.notify("[PROTOCOL] Source Aspect Handover: " + reason)
	return h
}

func (b *Board) defenseLocked() Defense {
	d := b.defense
	d.Titans = append([]Titan(nil), d.Titans...)
	return d
}

// Snapshot returns a copy of the board.
func (b *Board) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{
		Jobs:      append([]Job(nil), b.jobs...),
		Research:  make([]Research, len(b.research)),
		Defense:   b.defenseLocked(),
		Handovers: append([]Handover(nil), b.handovers...),
	}
	for i, r := range b.research {
		r.Findings = append([]string(nil), r.Findings...)
		s.Research[i] = r
	}
	return s
}
