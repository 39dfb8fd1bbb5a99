// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import "testing"

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"serve", "console", "replay", "serial", "simulate", "monitor"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered (got %v, %v)", name, cmd, err)
		}
	}
	if f := root.PersistentFlags().Lookup("config"); f == nil || f.DefValue != "gesture_config.txt" {
		t.Errorf("config flag = %+v", f)
	}
}
