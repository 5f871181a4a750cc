package helper

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-livehelper/pkg/ident"
	"github.com/teslashibe/go-livehelper/pkg/voice"
)

func newTestBoard(t *testing.T) (*Board, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var lines []string
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b := NewBoard(
		WithIDs(ident.NewSequence("id")),
		WithClock(func() time.Time { return fixed }),
		WithNotifier(func(text string) {
			mu.Lock()
			lines = append(lines, text)
			mu.Unlock()
		}),
	)
	return b, &lines
}

func TestLookupPersona(t *testing.T) {
	tests := []struct {
		id    string
		voice string
	}{
		{"aria", "Kore"},
		{"commander-thalos", "Fenrir"},
		{"zyrax", "Zephyr"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, err := LookupPersona(tt.id)
			if err != nil {
				t.Fatal(err)
			}
			if p.Voice != tt.voice {
				t.Errorf("voice = %q, want %q", p.Voice, tt.voice)
			}
		})
	}
	if _, err := LookupPersona("nobody"); err == nil {
		t.Error("expected error for unknown persona")
	}
}

func TestParseFocus(t *testing.T) {
	tests := []struct {
		in      string
		want    Focus
		wantErr bool
	}{
		{"", FocusGeneral, false},
		{"jobs", FocusJobs, false},
		{" Research ", FocusResearch, false},
		{"archives", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFocus(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFocus(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestInstruction(t *testing.T) {
	p, _ := LookupPersona("commander-thalos")
	tests := []struct {
		focus Focus
		want  string
	}{
		{FocusGeneral, "GENERAL STEWARDSHIP"},
		{FocusJobs, "JOBS BOARD"},
		{FocusResearch, "RESEARCH LAB"},
	}
	for _, tt := range tests {
		t.Run(string(tt.focus), func(t *testing.T) {
			got := Instruction(p, tt.focus)
			for _, want := range []string{"NAME: Commander Thalos", "Paladian High Guardian", tt.want} {
				if !strings.Contains(got, want) {
					t.Errorf("instruction missing %q", want)
				}
			}
		})
	}
}

func TestBoardNewestFirst(t *testing.T) {
	b, lines := newTestBoard(t)
	b.AddJob("first", "d", GroupPaladian, 10)
	b.AddJob("second", "d", GroupActurian, 20)
	b.StartResearch("Solar Joy")
	b.StartResearch("Aetherial Resilience")

	s := b.Snapshot()
	if s.Jobs[0].Title != "second" || s.Jobs[1].Title != "first" {
		t.Errorf("jobs order = %v, %v", s.Jobs[0].Title, s.Jobs[1].Title)
	}
	if s.Research[0].Subject != "Aetherial Resilience" {
		t.Errorf("research order = %v", s.Research[0].Subject)
	}
	if s.Jobs[0].ID != "id-2" || s.Jobs[0].Status != "Active" {
		t.Errorf("job = %+v", s.Jobs[0])
	}
	if len(*lines) != 4 || (*lines)[0] != "[DIVINE ASSIGNMENT] first entrusted to Paladian Collective." {
		t.Errorf("notifier lines = %q", *lines)
	}

	if !b.CompleteJob("id-1") || b.CompleteJob("missing") {
		t.Error("CompleteJob result wrong")
	}
	if b.Snapshot().Jobs[1].Status != "Complete" {
		t.Error("job not completed")
	}
}

func TestDeployCapped(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{1, 1},
		{2, 2},
		{3, 3},
		{7, 3},
		{0, 3},
	}
	for _, tt := range tests {
		b, _ := newTestBoard(t)
		d := b.Deploy(tt.count)
		if len(d.Titans) != tt.want || !d.Active {
			t.Errorf("Deploy(%d) = %d titans, active=%v", tt.count, len(d.Titans), d.Active)
		}
		if d.Titans[0].Kind != "Rex" {
			t.Errorf("first titan = %s", d.Titans[0].Kind)
		}
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	b, _ := newTestBoard(t)
	b.StartResearch("x")
	s := b.Snapshot()
	s.Research[0].Findings[0] = "mutated"
	if b.Snapshot().Research[0].Findings[0] == "mutated" {
		t.Error("snapshot aliases board state")
	}
}

func TestToolsThroughDispatcher(t *testing.T) {
	b, lines := newTestBoard(t)
	d := voice.NewDispatcher(nil)
	for _, tool := range b.Tools() {
		d.Register(tool)
	}

	decls := d.Declarations()
	names := make([]string, len(decls))
	for i, decl := range decls {
		names[i] = decl.Name
	}
	if got := strings.Join(names, ","); got != "delegate_task,start_research,deploy_defense,request_handover" {
		t.Errorf("declarations = %s", got)
	}

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{ToolDelegateTask, map[string]any{"title": "Gather data", "description": "...", "group": "paladian", "loveResonance": 80.0}, "Assignment received"},
		{ToolStartResearch, map[string]any{"subject": "Solar Joy"}, "subject Solar Joy"},
		{ToolDeployDefense, map[string]any{"count": 2.0}, "Deployed 2 Titan units: Rex, Raptor"},
		{ToolRequestHandover, map[string]any{"reason": "new user"}, "Aspect rotation confirmed."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := d.Run(context.Background(), voice.ToolCall{ID: "c-" + tt.name, Name: tt.name, Args: tt.args})
			if err != nil {
				t.Fatal(err)
			}
			if resp.ID != "c-"+tt.name || !strings.Contains(resp.Result, tt.want) {
				t.Errorf("resp = %+v, want result containing %q", resp, tt.want)
			}
		})
	}

	s := b.Snapshot()
	if len(s.Jobs) != 1 || s.Jobs[0].Group != GroupPaladian || s.Jobs[0].LoveResonance != 80 {
		t.Errorf("jobs = %+v", s.Jobs)
	}
	if len(s.Handovers) != 1 || s.Handovers[0].Reason != "new user" {
		t.Errorf("handovers = %+v", s.Handovers)
	}
	if len(*lines) != 4 {
		t.Errorf("expected a system line per tool, got %q", *lines)
	}
}

func TestNumberArg(t *testing.T) {
	args := map[string]any{"f": 12.5, "i": 3, "s": " 40 ", "bad": "x"}
	tests := []struct {
		key  string
		want float64
	}{
		{"f", 12.5}, {"i", 3}, {"s", 40}, {"bad", 0}, {"missing", 0},
	}
	for _, tt := range tests {
		if got := numberArg(args, tt.key); got != tt.want {
			t.Errorf("numberArg(%s) = %v, want %v", tt.key, got, tt.want)
		}
	}
	if clamp(150, 0, 100) != 100 || clamp(-5, 0, 100) != 0 {
		t.Error("clamp")
	}
}
