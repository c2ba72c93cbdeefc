package fact

import (
	"errors"
	"testing"
)

func TestNewKey(t *testing.T) {
	tests := []struct {
		name      string
		ecosystem string
		tool      string
		version   string
		wantErr   bool
	}{
		{name: "valid", ecosystem: "beam", tool: "phoenix", version: "1.7.0"},
		{name: "empty ecosystem", ecosystem: "", tool: "phoenix", version: "1.7.0", wantErr: true},
		{name: "empty tool", ecosystem: "beam", tool: "", version: "1.7.0", wantErr: true},
		{name: "empty version", ecosystem: "beam", tool: "phoenix", version: "", wantErr: true},
		{name: "colon in ecosystem", ecosystem: "be:am", tool: "phoenix", version: "1.7.0", wantErr: true},
		{name: "colon in tool", ecosystem: "beam", tool: "pho:enix", version: "1.7.0", wantErr: true},
		{name: "colon in version", ecosystem: "beam", tool: "phoenix", version: "1:7", wantErr: true},
		{name: "unicode components", ecosystem: "beam", tool: "phönix", version: "1.7.0-ß"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := NewKey(tt.ecosystem, tt.tool, tt.version)
			if tt.wantErr {
				if !errors.Is(err, ErrKeyMalformed) {
					t.Fatalf("NewKey() error = %v, want ErrKeyMalformed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewKey() unexpected error: %v", err)
			}
			if key.Ecosystem != tt.ecosystem || key.Tool != tt.tool || key.Version != tt.version {
				t.Errorf("NewKey() = %+v, want components preserved", key)
			}
		})
	}
}

func TestKeyRoundTrip(t *testing.T) {
	key, err := NewKey("beam", "phoenix", "1.7.0")
	if err != nil {
		t.Fatalf("NewKey() error: %v", err)
	}

	encoded := key.String()
	if encoded != "fact:beam:phoenix:1.7.0" {
		t.Fatalf("String() = %q, want %q", encoded, "fact:beam:phoenix:1.7.0")
	}

	parsed, err := ParseKey(encoded)
	if err != nil {
		t.Fatalf("ParseKey() error: %v", err)
	}
	if parsed != key {
		t.Errorf("ParseKey(String()) = %+v, want %+v", parsed, key)
	}
	if parsed.String() != encoded {
		t.Errorf("re-encoding = %q, want %q", parsed.String(), encoded)
	}
}

func TestParseKeyRejectsMalformed(t *testing.T) {
	tests := []string{
		"",
		"fact",
		"fact:beam",
		"fact:beam:phoenix", // missing version
		"fact:beam:phoenix:1.7.0:extra",
		"notfact:beam:phoenix:1.7.0",
		"fact::phoenix:1.7.0",
		"fact:beam::1.7.0",
		"fact:beam:phoenix:",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseKey(input); !errors.Is(err, ErrKeyMalformed) {
				t.Errorf("ParseKey(%q) error = %v, want ErrKeyMalformed", input, err)
			}
		})
	}
}

func TestKeyIsComparable(t *testing.T) {
	a, _ := NewKey("beam", "phoenix", "1.7.0")
	b, _ := NewKey("beam", "phoenix", "1.7.0")
	c, _ := NewKey("rust", "phoenix", "1.7.0")

	if a != b {
		t.Error("identical keys compare unequal")
	}
	if a == c {
		t.Error("distinct keys compare equal")
	}

	// Keys must work as map keys.
	m := map[Key]int{a: 1}
	if m[b] != 1 {
		t.Error("map lookup by equal key failed")
	}
}
