// SPDX-License-Identifier: GPL-2.0-or-later

package cbuf

import (
	"testing"
)

func TestWait(t *testing.T) {
	c := CommandBuffer{}
	runCount := 0
	c.SetCommandExecutors([]Efunc{
		func(cb *CommandBuffer, a Arguments) (bool, error) {
			runCount++
			return true, nil
		}})
	c.AddText("wait\n")
	c.AddText("test\n")
	c.AddText("test\n")
	c.AddText("wait\n")
	c.AddText("test\n")
	c.Execute()
	if runCount != 0 {
		t.Errorf("runCount=%v, want %v", runCount, 0)
	}
	c.Execute()
	if runCount != 2 {
		t.Errorf("runCount=%v, want %v", runCount, 2)
	}
	c.Execute()
	if runCount != 3 {
		t.Errorf("runCount=%v, want %v", runCount, 3)
	}
}

func TestSemicolonSplitsOutsideQuotes(t *testing.T) {
	var got []string
	c := New(func(cb *CommandBuffer, a Arguments) (bool, error) {
		got = append(got, a.Full())
		return true, nil
	})
	c.AddText(`echo a; echo "b;c"` + "\n")
	c.Execute()
	want := []string{"echo a", `echo "b;c"`}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestInsertTextRunsFirst(t *testing.T) {
	var got []string
	c := New(func(cb *CommandBuffer, a Arguments) (bool, error) {
		got = append(got, a.Argv(0).String())
		return true, nil
	})
	c.AddText("second\n")
	c.InsertText("first")
	c.Execute()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("got %q", got)
	}
	if !c.Empty() {
		t.Errorf("buffer not empty")
	}
}
