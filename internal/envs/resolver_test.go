package envs

import (
	"path/filepath"
	"testing"
)

func TestNameIsDeterministic(t *testing.T) {
	tags := []string{"adb_0001", "release-2.1", "", "weird/../tag"}
	for _, tag := range tags {
		first := Name("venv_gcubed_", tag)
		for i := 0; i < 10; i++ {
			if got := Name("venv_gcubed_", tag); got != first {
				t.Fatalf("Name(%q) not deterministic: %q vs %q", tag, got, first)
			}
		}
		if first != "venv_gcubed_"+tag {
			t.Errorf("Name(%q) = %q, want prefix concatenation", tag, first)
		}
	}
}

func TestPathJoinsRoot(t *testing.T) {
	got := Path("/models/project", "venv_gcubed_adb_0001")
	want := filepath.Join("/models/project", "venv_gcubed_adb_0001")
	if got != want {
		t.Errorf("Path = %q, want %q", got, want)
	}
}

func TestInterpreterLayout(t *testing.T) {
	got := Interpreter("/models/project/venv_gcubed_adb_0001")
	want := filepath.Join("/models/project/venv_gcubed_adb_0001", "bin", "python")
	if got != want {
		t.Errorf("Interpreter = %q, want %q", got, want)
	}
}
