package input

import (
	"testing"

	"golang.design/x/hotkey"
)

func TestParseHotkey(t *testing.T) {
	tests := []struct {
		combo    string
		wantMods int
		wantKey  hotkey.Key
		wantErr  bool
	}{
		{"ctrl+shift+p", 2, hotkey.KeyP, false},
		{"Ctrl + Shift + Q", 2, hotkey.KeyQ, false},
		{"alt+1", 1, hotkey.Key1, false},
		{"f5", 0, hotkey.KeyF5, false},
		{"ctrl+space", 1, hotkey.KeySpace, false},
		{"", 0, 0, true},
		{"ctrl+shift", 0, 0, true},
		{"ctrl+a+b", 0, 0, true},
		{"ctrl+pageup", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.combo, func(t *testing.T) {
			mods, key, err := parseHotkey(tt.combo)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseHotkey(%q) expected error", tt.combo)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseHotkey(%q): %v", tt.combo, err)
			}
			if len(mods) != tt.wantMods {
				t.Errorf("modifiers = %d, want %d", len(mods), tt.wantMods)
			}
			if key != tt.wantKey {
				t.Errorf("key = %v, want %v", key, tt.wantKey)
			}
		})
	}
}

func TestNewHotkeyManagerSkipsUnbound(t *testing.T) {
	noop := func() {}
	h := NewHotkeyManager(
		Binding{Name: "pause", Combo: "ctrl+shift+p", Action: noop},
		Binding{Name: "quit", Combo: "", Action: noop},
		Binding{Name: "p1_up", Combo: "ctrl+shift+1"},
	)
	if len(h.bindings) != 1 || h.bindings[0].Name != "pause" {
		t.Errorf("bindings = %+v", h.bindings)
	}
}
