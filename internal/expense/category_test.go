package expense

import "testing"

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input string
		want  Category
		ok    bool
	}{
		{"Food", CategoryFood, true},
		{"food", CategoryFood, true},
		{"BILL PAYMENTS", CategoryBillPayments, true},
		{"transport", CategoryTransport, true},
		{"Groceries", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseCategory(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseCategory(%q) = (%q, %v), want (%q, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCategoryOrOther(t *testing.T) {
	if got := CategoryOrOther("shopping"); got != CategoryShopping {
		t.Errorf("CategoryOrOther(shopping) = %q, want %q", got, CategoryShopping)
	}
	if got := CategoryOrOther("Rocket Fuel"); got != CategoryOther {
		t.Errorf("CategoryOrOther of unknown value = %q, want %q", got, CategoryOther)
	}
	if got := CategoryOrOther(""); got != CategoryOther {
		t.Errorf("CategoryOrOther of empty value = %q, want %q", got, CategoryOther)
	}
}
