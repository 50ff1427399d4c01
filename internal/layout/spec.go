package layout

import (
	"strconv"
	"strings"
)

// DefaultSpec is used when a frameset has no sizing attribute.
const DefaultSpec = "*,*"

// SizeKind is the unit of one frameset size token.
type SizeKind int

const (
	// SizeWeight is a relative share ("*", "2*"), rendered as flex-grow.
	SizeWeight SizeKind = iota

	// SizePercent is a share of the container ("30%"), rendered as flex-basis.
	SizePercent

	// SizePixel is a fixed length ("200"), rendered as width or height.
	SizePixel
)

// String returns the kind name.
func (k SizeKind) String() string {
	switch k {
	case SizePercent:
		return "percent"
	case SizePixel:
		return "pixel"
	default:
		return "weight"
	}
}

// Size is one parsed token of a cols or rows attribute.
type Size struct {
	Kind  SizeKind
	Value float64
}

// defaultSize is applied to malformed tokens and panes beyond the listed sizes.
var defaultSize = Size{Kind: SizeWeight, Value: 1}

// Spec is the ordered list of pane sizes of one frameset.
type Spec []Size

// ParseSpec parses a cols or rows attribute value. An empty value means
// DefaultSpec. Malformed tokens become weight 1.
func ParseSpec(value string) Spec {
	value = strings.TrimSpace(value)
	if value == "" {
		value = DefaultSpec
	}

	tokens := strings.Split(value, ",")
	spec := make(Spec, 0, len(tokens))
	for _, tok := range tokens {
		spec = append(spec, parseSize(tok))
	}
	return spec
}

// parseSize parses one token.
func parseSize(tok string) Size {
	tok = strings.TrimSpace(tok)
	switch {
	case tok == "":
		return defaultSize
	case strings.HasSuffix(tok, "%"):
		v, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(tok, "%")), 64)
		if err != nil || v < 0 {
			return defaultSize
		}
		return Size{Kind: SizePercent, Value: v}
	case strings.HasSuffix(tok, "*"):
		n := strings.TrimSpace(strings.TrimSuffix(tok, "*"))
		if n == "" {
			return defaultSize
		}
		v, err := strconv.ParseFloat(n, 64)
		if err != nil || v <= 0 {
			return defaultSize
		}
		return Size{Kind: SizeWeight, Value: v}
	default:
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || v < 0 {
			return defaultSize
		}
		return Size{Kind: SizePixel, Value: v}
	}
}

// At returns the size of pane i. Panes beyond the listed sizes get weight 1.
func (s Spec) At(i int) Size {
	if i < 0 || i >= len(s) {
		return defaultSize
	}
	return s[i]
}

// String renders the size back in attribute syntax.
func (s Size) String() string {
	v := formatNumber(s.Value)
	switch s.Kind {
	case SizePercent:
		return v + "%"
	case SizePixel:
		return v
	default:
		if s.Value == 1 {
			return "*"
		}
		return v + "*"
	}
}

// CSS returns the sizing declaration of a pane laid out along axis.
func (s Size) CSS(axis Axis) string {
	v := formatNumber(s.Value)
	switch s.Kind {
	case SizePercent:
		return "flex-basis: " + v + "%;"
	case SizePixel:
		if axis == AxisColumns {
			return "width: " + v + "px;"
		}
		return "height: " + v + "px;"
	default:
		return "flex-grow: " + v + ";"
	}
}

// formatNumber prints v without a trailing ".0".
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Axis is the direction panes are laid out along.
type Axis int

const (
	// AxisColumns comes from a cols attribute: panes side by side.
	AxisColumns Axis = iota

	// AxisRows comes from a rows attribute: panes stacked.
	AxisRows
)

// FlexDirection returns the CSS flex-direction for the axis.
func (a Axis) FlexDirection() string {
	if a == AxisColumns {
		return "row"
	}
	return "column"
}

// String returns "cols" or "rows".
func (a Axis) String() string {
	if a == AxisColumns {
		return "cols"
	}
	return "rows"
}
