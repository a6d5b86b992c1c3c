package envcfg

import "testing"

func TestDefaults(t *testing.T) {
	t.Setenv("HMCS_MAX_LEVELS", "")
	t.Setenv("HMCS_THRESHOLD", "")
	os_unsetAll(t)

	if got := HMCSMaxLevels(); got != DefaultMaxLevels {
		t.Errorf("HMCSMaxLevels() = %d, want %d", got, DefaultMaxLevels)
	}
	if got := HMCSThreshold(); got != DefaultThreshold {
		t.Errorf("HMCSThreshold() = %d, want %d", got, DefaultThreshold)
	}
	if _, ok := HMCSExplicitLevels(); ok {
		t.Errorf("HMCSExplicitLevels() ok = true, want false when unset")
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("HMCS_MAX_LEVELS", "4")
	t.Setenv("HMCS_THRESHOLD", "64")
	t.Setenv("HMCS_EXPLICIT_LEVELS", "0,2,4")

	if got := HMCSMaxLevels(); got != 4 {
		t.Errorf("HMCSMaxLevels() = %d, want 4", got)
	}
	if got := HMCSThreshold(); got != 64 {
		t.Errorf("HMCSThreshold() = %d, want 64", got)
	}
	depths, ok := HMCSExplicitLevels()
	if !ok {
		t.Fatalf("HMCSExplicitLevels() ok = false, want true")
	}
	want := []int{0, 2, 4}
	if len(depths) != len(want) {
		t.Fatalf("HMCSExplicitLevels() = %v, want %v", depths, want)
	}
	for i := range want {
		if depths[i] != want[i] {
			t.Errorf("HMCSExplicitLevels()[%d] = %d, want %d", i, depths[i], want[i])
		}
	}
}

func os_unsetAll(t *testing.T) {
	t.Helper()
	t.Setenv("HMCS_EXPLICIT_LEVELS", "")
}
