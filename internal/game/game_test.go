package game

import "testing"

func TestButtonFor(t *testing.T) {
	want := map[string]Button{
		"up":     ButtonUp,
		"down":   ButtonDown,
		"left":   ButtonLeft,
		"right":  ButtonRight,
		"a":      ButtonA,
		"b":      ButtonB,
		"start":  ButtonStart,
		"select": ButtonSelect,
	}

	for action, button := range want {
		got, ok := ButtonFor(action)
		if !ok || got != button {
			t.Errorf("ButtonFor(%q) = (%v, %v), want (%v, true)", action, got, ok, button)
		}
	}

	for _, bad := range []string{"", "UP", "jump", "a ", "move:0"} {
		if _, ok := ButtonFor(bad); ok {
			t.Errorf("ButtonFor(%q) should not resolve", bad)
		}
	}
}
