package layout

import "testing"

// TestParseSpec tests frameset size parsing.
func TestParseSpec(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value string
		want  Spec
	}{
		{
			name:  "percent and weights",
			value: "30%,*,*",
			want:  Spec{{SizePercent, 30}, {SizeWeight, 1}, {SizeWeight, 1}},
		},
		{
			name:  "weighted star and pixels",
			value: "2*, 100",
			want:  Spec{{SizeWeight, 2}, {SizePixel, 100}},
		},
		{
			name:  "empty value is two equal panes",
			value: "  ",
			want:  Spec{{SizeWeight, 1}, {SizeWeight, 1}},
		},
		{
			name:  "malformed tokens become weight one",
			value: "abc,,x%,0*,-5",
			want:  Spec{{SizeWeight, 1}, {SizeWeight, 1}, {SizeWeight, 1}, {SizeWeight, 1}, {SizeWeight, 1}},
		},
		{
			name:  "fractional percent",
			value: "12.5%",
			want:  Spec{{SizePercent, 12.5}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := ParseSpec(tt.value)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d sizes, got %d (%v)", len(tt.want), len(got), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("size %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

// TestSpecAt tests that panes beyond the listed sizes get weight one.
func TestSpecAt(t *testing.T) {
	t.Parallel()

	spec := ParseSpec("100,200")
	if got := spec.At(1); got != (Size{SizePixel, 200}) {
		t.Errorf("At(1) = %+v", got)
	}
	if got := spec.At(2); got != (Size{SizeWeight, 1}) {
		t.Errorf("At(2) = %+v, want weight 1", got)
	}
}

// TestSizeCSS tests the sizing declaration per kind and axis.
func TestSizeCSS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size Size
		axis Axis
		want string
	}{
		{Size{SizePercent, 30}, AxisColumns, "flex-basis: 30%;"},
		{Size{SizeWeight, 1}, AxisRows, "flex-grow: 1;"},
		{Size{SizeWeight, 2.5}, AxisColumns, "flex-grow: 2.5;"},
		{Size{SizePixel, 200}, AxisColumns, "width: 200px;"},
		{Size{SizePixel, 80}, AxisRows, "height: 80px;"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()

			if got := tt.size.CSS(tt.axis); got != tt.want {
				t.Errorf("CSS() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestSizeString tests attribute syntax rendering.
func TestSizeString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size Size
		want string
	}{
		{Size{SizePercent, 30}, "30%"},
		{Size{SizeWeight, 1}, "*"},
		{Size{SizeWeight, 3}, "3*"},
		{Size{SizePixel, 120}, "120"},
	}

	for _, tt := range tests {
		if got := tt.size.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

// TestAxis tests axis mapping.
func TestAxis(t *testing.T) {
	t.Parallel()

	if AxisColumns.FlexDirection() != "row" || AxisRows.FlexDirection() != "column" {
		t.Error("unexpected flex direction mapping")
	}
	if AxisColumns.String() != "cols" || AxisRows.String() != "rows" {
		t.Error("unexpected axis names")
	}
}
