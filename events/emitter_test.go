package events

import "testing"

func TestEmitterOnEmitOrder(t *testing.T) {
	var e Emitter[int]
	var got []int
	e.On(func(v int) { got = append(got, v*10) })
	e.On(func(v int) { got = append(got, v*100) })

	e.Emit(3)

	want := []int{30, 300}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestEmitterOff(t *testing.T) {
	var e Emitter[string]
	var calls int
	tok := e.On(func(string) { calls++ })
	e.Emit("a")
	e.Off(tok)
	e.Emit("b")

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestEmitterOffUnknownTokenIsNoop(t *testing.T) {
	var e Emitter[int]
	e.Off(Token(999))
}

func TestEmitterClear(t *testing.T) {
	var e Emitter[int]
	var calls int
	e.On(func(int) { calls++ })
	e.On(func(int) { calls++ })
	e.Clear()
	e.Emit(1)

	if calls != 0 {
		t.Fatalf("calls = %d, want 0", calls)
	}
}

func TestEmitterHandlerRegisteredDuringEmitNotCalledThisRound(t *testing.T) {
	var e Emitter[int]
	var secondCalls int
	e.On(func(int) {
		e.On(func(int) { secondCalls++ })
	})
	e.Emit(1)
	if secondCalls != 0 {
		t.Fatalf("secondCalls = %d, want 0 (snapshot semantics)", secondCalls)
	}
	e.Emit(2)
	if secondCalls != 1 {
		t.Fatalf("secondCalls = %d, want 1 after second Emit", secondCalls)
	}
}
