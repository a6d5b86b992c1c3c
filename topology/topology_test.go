package topology

import "testing"

func TestFlatValidate(t *testing.T) {
	top := Flat(32)
	if err := top.Validate(); err != nil {
		t.Fatalf("Flat(32).Validate() = %v, want nil", err)
	}
	if top.Levels() != 1 {
		t.Errorf("Levels() = %d, want 1", top.Levels())
	}
}

func TestUniform(t *testing.T) {
	top, err := Uniform(64, 8, 2)
	if err != nil {
		t.Fatalf("Uniform: %v", err)
	}
	want := []int{8, 64}
	if len(top.ParticipantsPerLevel) != len(want) {
		t.Fatalf("ParticipantsPerLevel = %v, want %v", top.ParticipantsPerLevel, want)
	}
	for i := range want {
		if top.ParticipantsPerLevel[i] != want[i] {
			t.Errorf("ParticipantsPerLevel[%d] = %d, want %d", i, top.ParticipantsPerLevel[i], want[i])
		}
	}
	if top.GroupOf(0, 17) != 2 {
		t.Errorf("GroupOf(0, 17) = %d, want 2", top.GroupOf(0, 17))
	}
}

func TestValidateRejectsBadTrees(t *testing.T) {
	cases := []Topology{
		{Threads: 0, ParticipantsPerLevel: []int{1}},
		{Threads: 8, ParticipantsPerLevel: nil},
		{Threads: 8, ParticipantsPerLevel: []int{3}},    // doesn't divide evenly, and doesn't span all
		{Threads: 8, ParticipantsPerLevel: []int{4, 4}}, // non-ascending
		{Threads: 8, ParticipantsPerLevel: []int{4}},    // doesn't span all threads
	}
	for i, c := range cases {
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: Validate() = nil, want error", i)
		}
	}
}
