package led

import (
	"fmt"
	"io"
	"strings"

	"github.com/coreman2200/bespeckle/internal/color"
)

// Hex returns c as #rrggbb after unpacking.
func Hex(c color.RGB16) string {
	r, g, b := c.RGB()
	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

// FormatHex renders a frame as space separated #rrggbb values.
func FormatHex(frame []color.RGB16) string {
	var sb strings.Builder
	for i, c := range frame {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(Hex(c))
	}
	return sb.String()
}

// HTMLHeader styles the rows written by WriteHTML.
const HTMLHeader = "<style>span{width:5px;height:5px;margin:0;padding:0;display:inline-block;}" +
	"div{font-size:0;height:5px;margin-bottom:0;}</style>\n"

// WriteHTML writes frame as one row of colored spans.
func WriteHTML(w io.Writer, frame []color.RGB16) error {
	var sb strings.Builder
	sb.WriteString("<div>\n")
	for i, c := range frame {
		fmt.Fprintf(&sb, "\t<span style='background-color:%s'>%d</span>\n", Hex(c), i)
	}
	sb.WriteString("</div>\n")
	_, err := io.WriteString(w, sb.String())
	return err
}
