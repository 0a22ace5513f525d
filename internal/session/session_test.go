package session

import (
	"context"
	"path/filepath"
	"testing"

	"binsight/internal/processor"
	"binsight/internal/scroll"
)

func TestLoadFailureLeavesNoState(t *testing.T) {
	s := New(processor.DefaultPolicy(), scroll.DefaultConfig(), nil)

	_, err := s.Load(context.Background(), filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
	if s.Current() != nil {
		t.Error("failed load left state behind")
	}
}

func TestRejectsNonBinary(t *testing.T) {
	s := New(processor.DefaultPolicy(), scroll.DefaultConfig(), nil)

	// The test source file is present and readable but not a binary.
	_, err := s.Load(context.Background(), "session_test.go")
	if err == nil {
		t.Fatal("Load accepted a text file")
	}
	if s.Current() != nil {
		t.Error("rejected load left state behind")
	}
}

func TestCloseWithoutLoad(t *testing.T) {
	s := New(processor.DefaultPolicy(), scroll.DefaultConfig(), nil)
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
