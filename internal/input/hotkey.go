package input

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.design/x/hotkey"
)

// Binding ties a key combination such as "ctrl+shift+p" to an action
type Binding struct {
	Name   string
	Combo  string
	Action func()
}

// HotkeyManager registers global hotkeys and runs their actions
type HotkeyManager struct {
	mu       sync.Mutex
	bindings []Binding
	keys     []*hotkey.Hotkey
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewHotkeyManager creates a manager for the given bindings. Bindings with an
// empty combination are skipped.
func NewHotkeyManager(bindings ...Binding) *HotkeyManager {
	active := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		if b.Combo != "" && b.Action != nil {
			active = append(active, b)
		}
	}
	return &HotkeyManager{
		bindings: active,
		logger:   slog.Default().With("component", "hotkeys"),
	}
}

// Start registers every binding and listens until ctx is done or Stop is called
func (h *HotkeyManager) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	type parsed struct {
		mods []hotkey.Modifier
		key  hotkey.Key
	}
	combos := make([]parsed, len(h.bindings))
	for i, b := range h.bindings {
		mods, key, err := parseHotkey(b.Combo)
		if err != nil {
			return fmt.Errorf("invalid hotkey for %s: %w", b.Name, err)
		}
		combos[i] = parsed{mods, key}
	}

	ctx, h.cancel = context.WithCancel(ctx)

	for i, b := range h.bindings {
		hk := hotkey.New(combos[i].mods, combos[i].key)
		if err := hk.Register(); err != nil {
			h.cancel()
			h.unregisterLocked()
			return fmt.Errorf("failed to register hotkey %s (%s): %w", b.Name, b.Combo, err)
		}
		h.keys = append(h.keys, hk)

		h.wg.Add(1)
		go h.listen(ctx, hk, b)
		h.logger.Debug("hotkey registered", "name", b.Name, "combo", b.Combo)
	}
	return nil
}

func (h *HotkeyManager) listen(ctx context.Context, hk *hotkey.Hotkey, b Binding) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-hk.Keydown():
			if !ok {
				return
			}
			h.logger.Debug("hotkey pressed", "name", b.Name)
			b.Action()
		}
	}
}

// Stop unregisters the hotkeys and waits briefly for listeners to exit
func (h *HotkeyManager) Stop() {
	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.unregisterLocked()
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
	}
}

func (h *HotkeyManager) unregisterLocked() {
	for _, hk := range h.keys {
		_ = hk.Unregister()
	}
	h.keys = nil
}

// parseHotkey parses a hotkey string like "ctrl+shift+p" into modifiers and key
func parseHotkey(s string) ([]hotkey.Modifier, hotkey.Key, error) {
	if strings.TrimSpace(s) == "" {
		return nil, 0, fmt.Errorf("empty hotkey string")
	}

	var mods []hotkey.Modifier
	var key hotkey.Key
	var keyFound bool

	for _, part := range strings.Split(strings.ToLower(s), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "ctrl", "control":
			mods = append(mods, hotkey.ModCtrl)
			continue
		case "shift":
			mods = append(mods, hotkey.ModShift)
			continue
		}
		if mod, ok := platformModifiers[part]; ok {
			mods = append(mods, mod)
			continue
		}

		if keyFound {
			return nil, 0, fmt.Errorf("multiple keys specified")
		}
		k, err := parseKey(part)
		if err != nil {
			return nil, 0, err
		}
		key = k
		keyFound = true
	}

	if !keyFound {
		return nil, 0, fmt.Errorf("no key specified")
	}

	return mods, key, nil
}

var namedKeys = map[string]hotkey.Key{
	"space": hotkey.KeySpace, "return": hotkey.KeyReturn, "enter": hotkey.KeyReturn,
	"tab": hotkey.KeyTab, "escape": hotkey.KeyEscape, "esc": hotkey.KeyEscape,
	"left": hotkey.KeyLeft, "right": hotkey.KeyRight, "up": hotkey.KeyUp, "down": hotkey.KeyDown,
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD, "e": hotkey.KeyE,
	"f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH, "i": hotkey.KeyI, "j": hotkey.KeyJ,
	"k": hotkey.KeyK, "l": hotkey.KeyL, "m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO,
	"p": hotkey.KeyP, "q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX, "y": hotkey.KeyY,
	"z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3, "4": hotkey.Key4,
	"5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3, "f4": hotkey.KeyF4,
	"f5": hotkey.KeyF5, "f6": hotkey.KeyF6, "f7": hotkey.KeyF7, "f8": hotkey.KeyF8,
	"f9": hotkey.KeyF9, "f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
}

// parseKey parses a key name to hotkey.Key
func parseKey(s string) (hotkey.Key, error) {
	if k, ok := namedKeys[s]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("unknown key: %s", s)
}
