package screenpaw

import "testing"

func TestIsPlaceholderName(t *testing.T) {
	placeholders := []string{
		"app 902388",
		"App 902388",
		"APP  12",
		"app12345",
		"unknown",
		"Unknown",
		"UNKNOWN",
		"",
		"   ",
		" app 42 ",
	}
	for _, name := range placeholders {
		if !isPlaceholderName(name) {
			t.Errorf("Expected %q to be a placeholder", name)
		}
	}

	real := []string{
		"Instagram",
		"app 9",      // fewer than two digits
		"apps 12345", // not the app-prefix pattern
		"whatsapp 2024",
		"unknown caller blocker",
	}
	for _, name := range real {
		if isPlaceholderName(name) {
			t.Errorf("Expected %q to be a real app name", name)
		}
	}
}
