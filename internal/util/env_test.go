package util

import (
	"reflect"
	"testing"
	"time"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("GRAPHRAG_INT", "42")
	t.Setenv("GRAPHRAG_BAD_INT", "forty")
	t.Setenv("GRAPHRAG_BOOL", "true")
	t.Setenv("GRAPHRAG_DUR", "1500ms")
	t.Setenv("GRAPHRAG_LIST", " openai, ,ollama ")
	t.Setenv("GRAPHRAG_EMPTY", "")

	if got := GetEnvInt("GRAPHRAG_INT", 1); got != 42 {
		t.Fatalf("GetEnvInt = %d", got)
	}
	if got := GetEnvInt("GRAPHRAG_BAD_INT", 7); got != 7 {
		t.Fatalf("GetEnvInt fallback = %d", got)
	}
	if got := GetEnvInt("GRAPHRAG_MISSING", 3); got != 3 {
		t.Fatalf("GetEnvInt missing = %d", got)
	}
	if !GetEnvBool("GRAPHRAG_BOOL", false) {
		t.Fatal("GetEnvBool = false")
	}
	if got := GetEnvDuration("GRAPHRAG_DUR", time.Second); got != 1500*time.Millisecond {
		t.Fatalf("GetEnvDuration = %v", got)
	}
	if got := GetEnvString("GRAPHRAG_EMPTY", "def"); got != "def" {
		t.Fatalf("GetEnvString empty = %q", got)
	}
	want := []string{"openai", "ollama"}
	if got := GetEnvList("GRAPHRAG_LIST", nil); !reflect.DeepEqual(got, want) {
		t.Fatalf("GetEnvList = %v, want %v", got, want)
	}
}
