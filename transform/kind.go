package transform

// Kind enumerates the image operations the remote transform provider offers.
// Adding an operation means adding a constant here plus a Gateway method, so a
// new kind is a compile-time extension rather than a string that can be typoed.
type Kind int

const (
	KindEdit Kind = iota
	KindRemoveBackground
	KindKnockoutColor
	KindUpscale
	KindPreparePrint
	KindMockup
	KindCreateStyle
)

func (k Kind) String() string {
	switch k {
	case KindEdit:
		return "edit"
	case KindRemoveBackground:
		return "remove-background"
	case KindKnockoutColor:
		return "knockout-color"
	case KindUpscale:
		return "upscale"
	case KindPreparePrint:
		return "prepare-print"
	case KindMockup:
		return "mockup"
	case KindCreateStyle:
		return "create-style"
	}
	return "unknown"
}

// Label is the kind recorded in a design's variation history.
func (k Kind) Label() string {
	switch k {
	case KindEdit:
		return "edited"
	case KindRemoveBackground:
		return "background-removed"
	case KindKnockoutColor:
		return "background-knocked-out"
	case KindUpscale:
		return "upscaled"
	case KindPreparePrint:
		return "print-prepared"
	case KindMockup:
		return "mockup"
	case KindCreateStyle:
		return "style-created"
	}
	return "unknown"
}
