package trace

import (
	"fmt"
	"testing"
	"time"

	"murmur/arbiter/internal/types"
)

func TestCreateAndAppend(t *testing.T) {
	st := New()
	if err := st.CreateSession(&Session{ID: "s1", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.CreateSession(&Session{ID: "s1"}); err != ErrSessionExists {
		t.Fatalf("expected ErrSessionExists, got %v", err)
	}

	st.Append("s1", types.Reasoning{ID: "r1", Decision: "IGNORE"})
	st.Append("s1", types.Reasoning{ID: "r2", Decision: "INTERRUPT"})

	got := st.List("s1")
	if len(got) != 2 || got[0].ID != "r1" || got[1].ID != "r2" {
		t.Fatalf("unexpected trace: %+v", got)
	}
}

func TestTraceCap(t *testing.T) {
	st := New()
	_ = st.CreateSession(&Session{ID: "s1"})
	for i := 0; i < 600; i++ {
		st.Append("s1", types.Reasoning{ID: fmt.Sprintf("r%d", i)})
	}
	got := st.List("s1")
	if len(got) != 500 {
		t.Fatalf("expected cap at 500, got %d", len(got))
	}
	if got[0].ID != "r100" {
		t.Fatalf("oldest entries should be dropped, first is %s", got[0].ID)
	}
}

func TestListCopies(t *testing.T) {
	st := New()
	_ = st.CreateSession(&Session{ID: "s1"})
	st.Append("s1", types.Reasoning{ID: "r1"})
	got := st.List("s1")
	got[0].ID = "mutated"
	if st.List("s1")[0].ID != "r1" {
		t.Fatal("List must return a copy")
	}
}
