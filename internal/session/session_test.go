package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

func TestSession_AppendAndHistory(t *testing.T) {
	m := NewManager()
	s := m.Create()

	s.AppendUser("What board should I start with?")
	s.AppendAssistant("The Arduino UNO is the usual starting point.")
	s.AppendUser("Which microcontroller does it use?")

	history := s.History()
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	if history[0].Role != RoleUser || history[1].Role != RoleAssistant {
		t.Errorf("roles = %q, %q", history[0].Role, history[1].Role)
	}
	if history[2].Text != "Which microcontroller does it use?" {
		t.Errorf("last turn = %q", history[2].Text)
	}

	// History returns a copy; mutating it must not touch the session.
	history[0].Text = "mutated"
	if s.History()[0].Text == "mutated" {
		t.Error("History() exposed internal state")
	}
}

func TestManager_GetAndErrors(t *testing.T) {
	m := NewManager()
	s := m.Create()

	got, err := m.Get(s.ID().String())
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != s {
		t.Error("Get() returned a different session")
	}

	if _, err := m.Get("not-a-uuid"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("Get(garbage) = %v, want ErrInvalidID", err)
	}
	if _, err := m.Get("3b241101-e2bb-4255-8caf-4136c566a962"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) = %v, want ErrNotFound", err)
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager()

	fresh, err := m.GetOrCreate("")
	if err != nil {
		t.Fatalf("GetOrCreate(\"\") error = %v", err)
	}
	if fresh == nil {
		t.Fatal("GetOrCreate(\"\") returned nil")
	}

	same, err := m.GetOrCreate(fresh.ID().String())
	if err != nil {
		t.Fatalf("GetOrCreate(id) error = %v", err)
	}
	if same != fresh {
		t.Error("GetOrCreate(id) did not return the existing session")
	}
}

func TestSessions_Independent(t *testing.T) {
	m := NewManager()
	a := m.Create()
	b := m.Create()

	a.AppendUser("question in session a")
	if b.Len() != 0 {
		t.Errorf("session b has %d turns, want 0", b.Len())
	}
}

func TestManager_Delete(t *testing.T) {
	m := NewManager()
	s := m.Create()

	m.Delete(s.ID())
	if _, err := m.Get(s.ID().String()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}
}

func TestSession_ConcurrentAppend(t *testing.T) {
	m := NewManager()
	s := m.Create()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AppendUser(fmt.Sprintf("question %d", i))
		}()
	}
	wg.Wait()

	if s.Len() != 10 {
		t.Errorf("turns = %d, want 10", s.Len())
	}
}
