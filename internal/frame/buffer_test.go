package frame

import (
	"reflect"
	"testing"
)

func collect(windows *[][]int16) func([]int16) error {
	return func(w []int16) error {
		*windows = append(*windows, append([]int16(nil), w...))
		return nil
	}
}

func TestWindowsAcrossPushes(t *testing.T) {
	b, err := New(4, 4)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	var windows [][]int16
	emit := collect(&windows)

	if err := b.Push([]int16{1, 2, 3}, emit); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(windows) != 0 {
		t.Fatalf("partial window emitted early: %v", windows)
	}
	if err := b.Push([]int16{4, 5, 6, 7, 8, 9}, emit); err != nil {
		t.Fatalf("push: %v", err)
	}
	want := [][]int16{{1, 2, 3, 4}, {5, 6, 7, 8}}
	if !reflect.DeepEqual(windows, want) {
		t.Fatalf("windows = %v, want %v", windows, want)
	}
	if b.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", b.Pending())
	}
}

func TestOverlappingStride(t *testing.T) {
	b, err := New(4, 2)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	var windows [][]int16
	if err := b.Push([]int16{1, 2, 3, 4, 5, 6}, collect(&windows)); err != nil {
		t.Fatalf("push: %v", err)
	}
	want := [][]int16{{1, 2, 3, 4}, {3, 4, 5, 6}}
	if !reflect.DeepEqual(windows, want) {
		t.Fatalf("windows = %v, want %v", windows, want)
	}
}

func TestFlushZeroPads(t *testing.T) {
	b, err := New(4, 4)
	if err != nil {
		t.Fatalf("new buffer: %v", err)
	}
	var windows [][]int16
	emit := collect(&windows)
	if err := b.Push([]int16{7, 8}, emit); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := b.Flush(emit); err != nil {
		t.Fatalf("flush: %v", err)
	}
	want := [][]int16{{7, 8, 0, 0}}
	if !reflect.DeepEqual(windows, want) {
		t.Fatalf("flushed window = %v, want %v", windows, want)
	}
	if err := b.Flush(emit); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("empty buffer must flush nothing, got %v", windows)
	}
}

func TestInvalidParams(t *testing.T) {
	if _, err := New(0, 1); err == nil {
		t.Fatal("expected error for zero window")
	}
	if _, err := New(4, 5); err == nil {
		t.Fatal("expected error for stride larger than window")
	}
}
