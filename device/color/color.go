// Package color defines the 16-color palette shared by the display and serial
// console drivers.
package color

// Color is an index into the standard 4-bit display palette. The values
// follow the VGA text-mode attribute order.
type Color uint8

// The supported palette entries.
const (
	Black Color = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGray
	DarkGray
	LightBlue
	LightGreen
	LightCyan
	LightRed
	Pink
	Yellow
	White

	// Count is the number of palette entries.
	Count = int(White) + 1
)

var names = [Count]string{
	"black", "blue", "green", "cyan",
	"red", "magenta", "brown", "light-gray",
	"dark-gray", "light-blue", "light-green", "light-cyan",
	"light-red", "pink", "yellow", "white",
}

// String returns the palette name of c.
func (c Color) String() string {
	if int(c) >= Count {
		return "unknown"
	}
	return names[c]
}
