package lang

import "testing"

func TestResolveByNameAndTag(t *testing.T) {
	l, err := Resolve("Tamil")
	if err != nil {
		t.Fatalf("resolve name: %v", err)
	}
	if l.SpeechTag != "ta-IN" {
		t.Fatalf("expected ta-IN, got %s", l.SpeechTag)
	}
	l, err = Resolve("kn-in")
	if err != nil {
		t.Fatalf("resolve tag: %v", err)
	}
	if l.Name != "kannada" {
		t.Fatalf("expected kannada, got %s", l.Name)
	}
	if _, err := Resolve("fr-FR"); err == nil {
		t.Fatalf("expected error for unsupported tag")
	}
}

func TestEachTagMapsToDistinctScript(t *testing.T) {
	seen := map[string]string{}
	for _, l := range All() {
		if prev, ok := seen[l.Script]; ok {
			t.Fatalf("script %s used by both %s and %s", l.Script, prev, l.Name)
		}
		seen[l.Script] = l.Name
	}
	if len(seen) != 4 {
		t.Fatalf("expected 4 scripts, got %d", len(seen))
	}
}

func TestDetect(t *testing.T) {
	l, ok := Detect("hello ಕನ್ನಡ")
	if !ok || l.Name != "kannada" {
		t.Fatalf("expected kannada, got %+v ok=%v", l, ok)
	}
	if _, ok := Detect("plain ascii"); ok {
		t.Fatalf("expected no detection for ascii")
	}
}
