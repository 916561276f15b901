package cli

import "testing"

func TestParseKeyValues(t *testing.T) {
	bag, err := parseKeyValues([]string{"plan=pro", "region=eu"})
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if bag["plan"] != "pro" || bag["region"] != "eu" {
		t.Errorf("unexpected bag %v", bag)
	}
}

func TestParseKeyValues_Empty(t *testing.T) {
	bag, err := parseKeyValues(nil)
	if err != nil || bag != nil {
		t.Errorf("expected nil bag for no pairs, got %v err=%v", bag, err)
	}
}

func TestParseKeyValues_Invalid(t *testing.T) {
	for _, bad := range []string{"noequals", "=value"} {
		if _, err := parseKeyValues([]string{bad}); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}
