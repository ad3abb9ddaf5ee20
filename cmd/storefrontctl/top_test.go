package main

import (
	"testing"
)

func TestTopCmd_IntervalFlag(t *testing.T) {
	flag := topCmd.Flags().Lookup("interval")
	if flag == nil {
		t.Fatal("top command should have --interval flag")
	}
	if flag.DefValue != "2s" {
		t.Errorf("interval default = %s, want 2s", flag.DefValue)
	}
}
