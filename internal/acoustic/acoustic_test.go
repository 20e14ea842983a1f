package acoustic

import (
	"errors"
	"reflect"
	"testing"
)

func TestSyntheticSilenceEmitsBlank(t *testing.T) {
	m, err := NewSynthetic(4)
	if err != nil {
		t.Fatalf("new synthetic: %v", err)
	}
	rows, err := m.Infer(make([]int16, 320))
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != 4 {
		t.Fatalf("unexpected shape: %d rows", len(rows))
	}
	blank := 3
	for i, p := range rows[0] {
		if i != blank && p >= rows[0][blank] {
			t.Fatalf("blank is not dominant for silence: %v", rows[0])
		}
	}
}

func TestSyntheticDeterministic(t *testing.T) {
	m, err := NewSynthetic(5)
	if err != nil {
		t.Fatalf("new synthetic: %v", err)
	}
	window := make([]int16, 320)
	for i := range window {
		window[i] = int16((i * 37) % 4096)
	}
	first, err := m.Infer(window)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	second, err := m.Infer(window)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("synthetic model is not deterministic:\n%v\n%v", first, second)
	}
}

func TestExecBackend(t *testing.T) {
	m, err := NewExec(`sh -c "cat >/dev/null; echo '[[-0.1,-2.3,-4.6]]'"`, 3)
	if err != nil {
		t.Fatalf("new exec: %v", err)
	}
	rows, err := m.Infer([]int16{1, 2, 3})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if len(rows) != 1 || rows[0][0] != -0.1 {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestExecBackendFailure(t *testing.T) {
	m, err := NewExec("false", 3)
	if err != nil {
		t.Fatalf("new exec: %v", err)
	}
	if _, err := m.Infer([]int16{0}); !errors.Is(err, ErrRun) {
		t.Fatalf("expected ErrRun, got %v", err)
	}
}

func TestExecBackendShapeMismatch(t *testing.T) {
	m, err := NewExec(`sh -c "cat >/dev/null; echo '[[-0.1,-2.3]]'"`, 3)
	if err != nil {
		t.Fatalf("new exec: %v", err)
	}
	if _, err := m.Infer([]int16{0}); !errors.Is(err, ErrShape) {
		t.Fatalf("expected ErrShape, got %v", err)
	}
}

func TestExecEmptyCommand(t *testing.T) {
	if _, err := NewExec("", 3); !errors.Is(err, ErrInit) {
		t.Fatalf("expected ErrInit, got %v", err)
	}
}
