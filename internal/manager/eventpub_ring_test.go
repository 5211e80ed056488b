package manager

import (
	"strconv"
	"testing"
	"time"
)

func TestRingPublisher_KeepsNewestInOrder(t *testing.T) {
	p := NewRingPublisher(3)
	for i := 0; i < 5; i++ {
		p.Publish(Event{Name: "e" + strconv.Itoa(i)})
	}
	got := p.Events()
	if len(got) != 3 || got[0].Name != "e2" || got[2].Name != "e4" {
		t.Fatalf("unexpected ring contents: %+v", got)
	}
	for _, e := range got {
		if e.At.IsZero() {
			t.Fatalf("publish should stamp events")
		}
	}
}

func TestRingPublisher_NamedAndPartial(t *testing.T) {
	p := NewRingPublisher(0)
	at := time.Unix(5, 0)
	p.Publish(Event{Name: "spawn", At: at})
	p.Publish(Event{Name: "kill"})
	if n := len(p.Events()); n != 2 {
		t.Fatalf("expected 2 events, got %d", n)
	}
	spawns := p.Named("spawn")
	if len(spawns) != 1 || !spawns[0].At.Equal(at) {
		t.Fatalf("unexpected named result: %+v", spawns)
	}
}
