package preprocess

import "testing"

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello there.", "Hello there."},
		{"trim", "  Hello.  ", "Hello."},
		{"emoji", "Great job 🎉!", "Great job !"},
		{"emoji with selector", "Sunny ☀️ today.", "Sunny today."},
		{"zwj sequence", "Family 👨‍👩‍👧 trip.", "Family trip."},
		{"flag", "Go 🇯🇵 team", "Go team"},
		{"emphasis", "This is *really* **good**.", "This is really good."},
		{"link", "See [the docs](https://example.com).", "See the docs."},
		{"inline code", "Run `go test` now.", "Run go test now."},
		{"raw html", "Press <kbd>Enter</kbd> key.", "Press Enter key."},
		{"heading", "# Welcome", "Welcome"},
		{"nfc", "Cafe\u0301", "Caf\u00e9"},
		{"japanese", "こんにちは！", "こんにちは！"},
		{"empty", "", ""},
		{"whitespace", " \t\n", ""},
		{"emoji only", "😀😀", ""},
		{"symbols only", "...!?", ""},
		{"markdown only", "**", ""},
		{"digits", "42", "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.in); got != tt.want {
				t.Errorf("Message(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStripEmoji(t *testing.T) {
	if got := StripEmoji("a🚀b✨c"); got != "abc" {
		t.Errorf("StripEmoji = %q", got)
	}
	if got := StripEmoji("é日本"); got != "é日本" {
		t.Errorf("StripEmoji touched letters: %q", got)
	}
}

func TestSpeakable(t *testing.T) {
	for s, want := range map[string]bool{
		"a":    true,
		"７":    true,
		"…":    false,
		"- *":  false,
		"日本語": true,
	} {
		if got := Speakable(s); got != want {
			t.Errorf("Speakable(%q) = %v, want %v", s, got, want)
		}
	}
}
