package logbuffer

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func textLine(s string) Line {
	return Line{Time: time.Unix(0, 0), Text: s, Stream: StreamStdout}
}

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		want     int
	}{
		{"explicit", 10, 10},
		{"zero falls back", 0, DefaultCapacity},
		{"negative falls back", -5, DefaultCapacity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.capacity)
			if b.Cap() != tt.want {
				t.Errorf("Cap() = %d, want %d", b.Cap(), tt.want)
			}
			if b.Len() != 0 {
				t.Errorf("Len() = %d, want 0", b.Len())
			}
		})
	}
}

func TestBuffer_AppendAndLines(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		appends  []string
		want     []string
	}{
		{"within capacity", 5, []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{"exactly full", 3, []string{"a", "b", "c"}, []string{"a", "b", "c"}},
		{"overflow by one", 3, []string{"a", "b", "c", "d"}, []string{"b", "c", "d"}},
		{"wraps twice", 2, []string{"a", "b", "c", "d", "e"}, []string{"d", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(tt.capacity)
			for _, s := range tt.appends {
				b.Append(textLine(s))
			}
			got := texts(b.Lines())
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Lines() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuffer_EvictsOldestAtDefaultCap(t *testing.T) {
	b := New(DefaultCapacity)

	var evictions int
	for i := 0; i < DefaultCapacity+1; i++ {
		if b.Append(textLine(fmt.Sprintf("line %d", i))) {
			evictions++
		}
	}

	if b.Len() != DefaultCapacity {
		t.Fatalf("Len() = %d, want %d", b.Len(), DefaultCapacity)
	}
	if evictions != 1 {
		t.Errorf("evictions = %d, want 1", evictions)
	}

	lines := b.Lines()
	if lines[0].Text != "line 1" {
		t.Errorf("oldest line = %q, want %q", lines[0].Text, "line 1")
	}
	if last := lines[len(lines)-1].Text; last != "line 1000" {
		t.Errorf("newest line = %q, want %q", last, "line 1000")
	}
}

func TestBuffer_Tail(t *testing.T) {
	b := New(4)
	for _, s := range []string{"a", "b", "c", "d", "e", "f"} {
		b.Append(textLine(s))
	}

	tests := []struct {
		n    int
		want []string
	}{
		{0, []string{}},
		{2, []string{"e", "f"}},
		{4, []string{"c", "d", "e", "f"}},
		{10, []string{"c", "d", "e", "f"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.n), func(t *testing.T) {
			got := texts(b.Tail(tt.n))
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("Tail(%d) = %v, want %v", tt.n, got, tt.want)
			}
		})
	}
}

func TestBuffer_Clear(t *testing.T) {
	b := New(3)
	for _, s := range []string{"a", "b", "c", "d"} {
		b.Append(textLine(s))
	}
	b.Clear()

	if b.Len() != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", b.Len())
	}
	if b.Cap() != 3 {
		t.Errorf("Cap() after Clear = %d, want 3", b.Cap())
	}

	b.Append(textLine("x"))
	if got := texts(b.Lines()); fmt.Sprint(got) != "[x]" {
		t.Errorf("Lines() after Clear+Append = %v, want [x]", got)
	}
}

func TestBuffer_LinesIsCopy(t *testing.T) {
	b := New(3)
	b.Append(textLine("a"))

	lines := b.Lines()
	lines[0].Text = "mutated"

	if b.Lines()[0].Text != "a" {
		t.Error("modifying Lines() result changed the buffer")
	}
}

func TestBuffer_Concurrent(t *testing.T) {
	b := New(100)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				b.Append(textLine(fmt.Sprintf("%d-%d", w, i)))
				_ = b.Lines()
			}
		}(w)
	}
	wg.Wait()

	if b.Len() != 100 {
		t.Errorf("Len() = %d, want 100", b.Len())
	}
}
