package history

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestKind_Baseline(t *testing.T) {
	cases := map[Kind]Status{
		KindAllergy:    StatusInactive,
		KindMedication: StatusInactive,
		KindCondition:  StatusInactive,
		KindHabit:      StatusNo,
		KindFamily:     StatusNegative,
	}
	for kind, want := range cases {
		if got := kind.Baseline(); got != want {
			t.Errorf("%s: expected %s, got %s", kind, want, got)
		}
		if !kind.Allows(kind.Baseline()) {
			t.Errorf("%s: baseline status not allowed", kind)
		}
	}
}

func TestItem_Validate(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr bool
	}{
		{"valid allergy", Item{Kind: KindAllergy, Name: "Latex", Status: StatusActive}, false},
		{"valid habit", Item{Kind: KindHabit, Name: "Smoking", Status: StatusOccasional}, false},
		{"valid family", Item{Kind: KindFamily, Name: "Twins", Status: StatusUnknown, Relationship: "mother"}, false},
		{"blank name", Item{Kind: KindAllergy, Name: "  ", Status: StatusActive}, true},
		{"habit with active", Item{Kind: KindHabit, Name: "Alcohol", Status: StatusActive}, true},
		{"condition with positive", Item{Kind: KindCondition, Name: "Asthma", Status: StatusPositive}, true},
		{"unknown kind", Item{Kind: "surgery", Name: "C-section", Status: StatusActive}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidItem) {
				t.Errorf("expected ErrInvalidItem, got %v", err)
			}
		})
	}
}

func TestStore_RejectsWrongKind(t *testing.T) {
	s := NewStore(KindAllergy)
	if _, err := s.Add(&Item{Kind: KindMedication, Name: "Metformin", Status: StatusActive}); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem, got %v", err)
	}
	if _, err := s.Add(&Item{Kind: KindAllergy, Name: "Latex", Status: "maybe"}); !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("expected ErrInvalidItem, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
	if _, err := s.Add(NewBaseline(KindAllergy, "Latex")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuiltinDefaults(t *testing.T) {
	d := BuiltinDefaults()
	if len(d.Names(KindAllergy)) == 0 {
		t.Fatal("expected bundled allergy defaults")
	}
	if len(d.Names(KindCondition)) == 0 {
		t.Fatal("expected bundled condition defaults")
	}
	if len(d.Names(KindMedication)) != 0 {
		t.Error("medications have no preferred defaults")
	}
}

func TestLoadDefaults_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "defaults.yaml")
	if err := os.WriteFile(path, []byte("allergy:\n  - Peanuts\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := LoadDefaults(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := d.Names(KindAllergy)
	if len(names) != 1 || names[0] != "Peanuts" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestParseDefaults_UnknownKind(t *testing.T) {
	if _, err := ParseDefaults([]byte("surgery:\n  - Appendix\n")); err == nil {
		t.Error("expected error for unknown kind")
	}
}
