package anchor

import (
	"errors"
	"testing"
)

func TestClassicCountersResetPerWindow(t *testing.T) {
	g, err := NewGenerator(StyleClassic, "")
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	w1 := Scope{Conv: "c", Window: "2026-03-01"}
	for i, want := range []string{"^msg-000001", "^msg-000002", "^msg-000003"} {
		p := g.Next(w1)
		if p.Classic != want {
			t.Errorf("w1 msg %d: classic = %q, want %q", i+1, p.Classic, want)
		}
		if p.Custom != "" {
			t.Errorf("classic style produced custom anchor %q", p.Custom)
		}
	}

	// new window, counter starts over
	p := g.Next(Scope{Conv: "c", Window: "2026-03-02"})
	if p.Classic != "^msg-000001" {
		t.Errorf("w2 first classic = %q, want ^msg-000001", p.Classic)
	}

	// same conv id but different window key is a distinct scope
	p = g.Next(w1)
	if p.Classic != "^msg-000004" {
		t.Errorf("back in w1: classic = %q, want ^msg-000004", p.Classic)
	}
}

func TestCustomGlobalCounterNeverResets(t *testing.T) {
	g, err := NewGenerator(StyleCustom, "")
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	p1 := g.Next(Scope{Conv: "a", Window: "2026-03-01", Msg: 1})
	p2 := g.Next(Scope{Conv: "b", Window: "2026-04-01", Msg: 1})

	if p1.Custom != "^a-2026-03-01-1-1" {
		t.Errorf("first custom = %q", p1.Custom)
	}
	if p2.Custom != "^b-2026-04-01-1-2" {
		t.Errorf("second custom = %q, global counter must not reset", p2.Custom)
	}
	if p1.Classic != "" {
		t.Errorf("custom style produced classic anchor %q", p1.Classic)
	}
}

func TestBothStylesIndependent(t *testing.T) {
	g, err := NewGenerator(StyleBoth, "{g}")
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}

	g.Next(Scope{Conv: "a", Window: "w1", Msg: 1})
	g.Next(Scope{Conv: "a", Window: "w2", Msg: 1})
	p := g.Next(Scope{Conv: "a", Window: "w1", Msg: 2})

	if p.Classic != "^msg-000002" {
		t.Errorf("classic = %q, want per-window ^msg-000002", p.Classic)
	}
	if p.Custom != "^3" {
		t.Errorf("custom = %q, want run-global ^3", p.Custom)
	}
}

func TestGeneratorDeterminism(t *testing.T) {
	run := func() []string {
		g, _ := NewGenerator(StyleBoth, "{scope}-{msg}-{g}")
		var out []string
		for i := 1; i <= 3; i++ {
			p := g.Next(Scope{Conv: "c", Window: "w", Msg: i})
			out = append(out, p.Classic, p.Custom)
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("run diverged at %d: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestTemplateErrors(t *testing.T) {
	_, err := NewGenerator(StyleCustom, "{bogus}")
	var te *TemplateError
	if !errors.As(err, &te) || te.Var != "bogus" {
		t.Errorf("unknown var: got %v", err)
	}

	_, err = NewGenerator(StyleCustom, "{conv")
	if !errors.As(err, &te) || te.Var != "" {
		t.Errorf("unterminated: got %v", err)
	}
}

func TestParseStyle(t *testing.T) {
	tests := []struct {
		in      string
		want    Style
		wantErr bool
	}{
		{"", StyleClassic, false},
		{"classic", StyleClassic, false},
		{"custom", StyleCustom, false},
		{"both", StyleBoth, false},
		{"fancy", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseStyle(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStyle(%q) err = %v", tt.in, err)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseStyle(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
