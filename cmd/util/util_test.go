package util

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 40)
	for i, line := range strings.Split(WrapString(text), "\n") {
		if len(line) > Wrap {
			t.Errorf("line %d is %d characters long", i, len(line))
		}
	}
	if got := WrapString("  short  text "); got != "short text" {
		t.Errorf("expected %q, got %q", "short text", got)
	}
}

func TestParseSerializer(t *testing.T) {
	for _, name := range []string{"json", "gob", "binary"} {
		if s, err := ParseSerializer(name); err != nil || s == nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}
	if _, err := ParseSerializer("xml"); err == nil {
		t.Errorf("expected an error for an unknown serializer")
	}
}

func TestGetTransport(t *testing.T) {
	defer viper.Set("transport", nil)

	for _, name := range []string{"http", "tcp", "unix"} {
		viper.Set("transport", name)
		if tr, err := GetTransport(); err != nil || tr == nil {
			t.Errorf("GetTransport(%q) = %v, %v", name, tr, err)
		}
	}

	viper.Set("transport", "carrier-pigeon")
	if _, err := GetTransport(); err == nil {
		t.Error("expected error for unknown transport")
	}
}
