package memory

import "testing"

func TestExtractExplicitMemoryCommand(t *testing.T) {
	cases := []struct {
		text string
		want string
		ok   bool
	}{
		{"Remember that prod db is on 5433", "prod db is on 5433", true},
		{"Remember this: always use bun", "always use bun", true},
		{"Remember: deploy on Fridays", "deploy on Fridays", true},
		{"记住：下周三发布", "下周三发布", true},
		// Weak "remember " without a strong prefix is left for the model.
		{"Remember prod db port is 5433", "", false},
		{"Remember I'm on windows", "", false},
		{"Remember, we need to fix that", "", false},
		{"Remember when we talked about this?", "", false},
		{"hello there", "", false},
	}

	for _, c := range cases {
		got, ok := ExtractExplicitMemoryCommand(c.text)
		if ok != c.ok {
			t.Fatalf("ExtractExplicitMemoryCommand(%q) ok=%v, want %v", c.text, ok, c.ok)
		}
		if ok && got != c.want {
			t.Fatalf("ExtractExplicitMemoryCommand(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}

func TestQualityOK(t *testing.T) {
	if !QualityOK("User prefers Rust and PostgreSQL.") {
		t.Fatal("expected a substantive statement to pass")
	}
	if QualityOK("hello") {
		t.Fatal("expected short small talk to fail")
	}
	if QualityOK("maybe user likes tea") {
		t.Fatal("expected an uncertain statement to fail")
	}
}

func TestQualityRegressionSet(t *testing.T) {
	dataset := []struct {
		text string
		want bool
	}{
		{"User's production DB port is 5433", true},
		{"User prefers concise bullet-point replies", true},
		{"Release deadline is 2026-03-01", true},
		{"Team uses Discord for on-call handoff", true},
		{"Hello", false},
		{"Thanks!", false},
		{"ok", false},
		{"maybe switch to postgres later", false},
		{"not sure but perhaps use rust", false},
		{"haha", false},
	}

	var tp, fp, fn int
	for _, d := range dataset {
		got := QualityOK(d.text)
		switch {
		case got && d.want:
			tp++
		case got && !d.want:
			fp++
		case !got && d.want:
			fn++
		}
	}
	precision := float64(tp) / float64(max(tp+fp, 1))
	recall := float64(tp) / float64(max(tp+fn, 1))
	if precision < 0.80 {
		t.Fatalf("precision regression: expected >= 0.80, got %.2f", precision)
	}
	if recall < 0.80 {
		t.Fatalf("recall regression: expected >= 0.80, got %.2f", recall)
	}
}

func TestTopicKey(t *testing.T) {
	if got := TopicKey("Production database port is 5433"); got != "db_port" {
		t.Fatalf("got %q", got)
	}
	if got := TopicKey("Release deadline is Friday"); got != "deadline" {
		t.Fatalf("got %q", got)
	}
}
