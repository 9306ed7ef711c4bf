package seed

import "testing"

func TestComputeCounts_Default(t *testing.T) {
	general, announcement, question := computeCounts(10, defaultDistribution)
	if general+announcement+question != 10 {
		t.Fatalf("sum mismatch: got %d", general+announcement+question)
	}
	if general != 7 || announcement != 1 || question != 2 {
		t.Fatalf("unexpected default counts: general=%d, announcement=%d, question=%d", general, announcement, question)
	}
}

func TestComputeCounts_RoundingGoesToGeneral(t *testing.T) {
	d, ok := CategoryDistributions["questions"]
	if !ok {
		t.Fatalf("questions distribution not found")
	}
	general, announcement, question := computeCounts(7, d)
	if general+announcement+question != 7 {
		t.Fatalf("sum mismatch: got %d", general+announcement+question)
	}
	if general != 3 || announcement != 0 || question != 4 {
		t.Fatalf("unexpected counts: general=%d, announcement=%d, question=%d", general, announcement, question)
	}
}

func TestApplyPreset_Unknown(t *testing.T) {
	s := NewSeeder(nil, Options{DryRun: true})
	if err := s.ApplyPreset("galactic"); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestApplyPreset_DryRun(t *testing.T) {
	s := NewSeeder(nil, Options{DryRun: true, RandomSeed: 42})
	if err := s.ApplyPreset("minimal"); err != nil {
		t.Fatalf("dry-run preset: %v", err)
	}
}
