package buffer

import (
	"errors"
	"io"
	"slices"
	"testing"
	"time"
)

func TestRingBuffer(t *testing.T) {
	t.Run("size=1", func(t *testing.T) {
		rb := RingN[byte](1)
		rb.Write([]byte{1, 2, 3})
		if got := rb.Snapshot(); !slices.Equal(got, []byte{3}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("size=3 exact", func(t *testing.T) {
		rb := RingN[byte](3)
		rb.Write([]byte{1, 2, 3})
		if rb.Len() != 3 {
			t.Errorf("len=%d", rb.Len())
		}
		if got := rb.Snapshot(); !slices.Equal(got, []byte{1, 2, 3}) {
			t.Errorf("got=%v", got)
		}
	})

	t.Run("size=100,add 250", func(t *testing.T) {
		rb := RingN[float32](100)
		for i := range 250 {
			rb.Add(float32(i))
		}
		got := rb.Snapshot()
		if len(got) != 100 {
			t.Fatalf("len=%d", len(got))
		}
		if got[0] != 150 || got[99] != 249 {
			t.Errorf("window=[%v..%v]", got[0], got[99])
		}
		if last, ok := rb.Last(); !ok || last != 249 {
			t.Errorf("last=%v ok=%v", last, ok)
		}
	})

	t.Run("empty snapshot", func(t *testing.T) {
		rb := RingN[int](4)
		if got := rb.Snapshot(); len(got) != 0 {
			t.Errorf("got=%v", got)
		}
		if _, ok := rb.Last(); ok {
			t.Error("Last on empty buffer reported ok")
		}
	})

	t.Run("snapshot is a copy", func(t *testing.T) {
		rb := RingN[int](2)
		rb.Add(1)
		snap := rb.Snapshot()
		snap[0] = 42
		if got := rb.Snapshot(); got[0] != 1 {
			t.Errorf("snapshot aliased the buffer: %v", got)
		}
	})

	t.Run("reset", func(t *testing.T) {
		rb := RingN[int](2)
		rb.Write([]int{1, 2})
		rb.Reset()
		if rb.Len() != 0 {
			t.Errorf("len=%d", rb.Len())
		}
	})
}

func TestRingBufferNext(t *testing.T) {
	rb := RingN[string](4)
	go func() {
		time.Sleep(10 * time.Millisecond)
		rb.Add("a")
		rb.Add("b")
		rb.CloseWrite()
	}()

	var got []string
	for {
		v, err := rb.Next()
		if errors.Is(err, ErrIteratorDone) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		got = append(got, v)
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("got=%v", got)
	}
}

func TestRingBufferClosed(t *testing.T) {
	rb := RingN[int](2)
	rb.Add(1)
	if err := rb.CloseWrite(); err != nil {
		t.Fatal(err)
	}
	if err := rb.CloseWrite(); err != nil {
		t.Errorf("second CloseWrite: %v", err)
	}
	if err := rb.Add(2); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("add after CloseWrite: %v", err)
	}
	if _, err := rb.Write([]int{3}); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("write after CloseWrite: %v", err)
	}
	if v, err := rb.Next(); err != nil || v != 1 {
		t.Errorf("next = %d, %v", v, err)
	}
	if _, err := rb.Next(); !errors.Is(err, ErrIteratorDone) {
		t.Errorf("next on drained buffer: %v", err)
	}
}
