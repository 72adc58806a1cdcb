package tui

import "testing"

// TestKeyMapHasNoCollisions verifies each key triggers at most one binding.
func TestKeyMapHasNoCollisions(t *testing.T) {
	k := newKeyMap()
	seen := map[string]string{}
	for _, group := range k.FullHelp() {
		for _, b := range group {
			for _, key := range b.Keys() {
				if prev, ok := seen[key]; ok {
					t.Fatalf("key %q bound to both %q and %q", key, prev, b.Help().Desc)
				}
				seen[key] = b.Help().Desc
			}
		}
	}
}

// TestShortHelpIsSubsetOfFullHelp verifies the footer only advertises real bindings.
func TestShortHelpIsSubsetOfFullHelp(t *testing.T) {
	k := newKeyMap()
	full := map[string]bool{}
	for _, group := range k.FullHelp() {
		for _, b := range group {
			full[b.Help().Desc] = true
		}
	}
	for _, b := range k.ShortHelp() {
		if !full[b.Help().Desc] {
			t.Fatalf("short help binding %q missing from full help", b.Help().Desc)
		}
	}
}
