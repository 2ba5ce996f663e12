package styles

import (
	"image/color"
	"sync"

	"github.com/charmbracelet/bubbles/v2/help"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/exp/charmtone"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"
)

type Theme struct {
	Name   string
	IsDark bool

	Primary   color.Color
	Secondary color.Color
	Accent    color.Color

	FgBase   color.Color
	FgMuted  color.Color
	FgSubtle color.Color

	BgBase   color.Color
	BgSubtle color.Color

	Border color.Color
	Error  color.Color

	// Plain disables all colors and decorations.
	Plain bool

	once   sync.Once
	styles *Styles
}

type Styles struct {
	Base lipgloss.Style

	Header       lipgloss.Style
	HeaderSorted lipgloss.Style
	HeaderFocus  lipgloss.Style

	Row         lipgloss.Style
	RowAlt      lipgloss.Style
	RowSelected lipgloss.Style
	CellFocused lipgloss.Style
	Placeholder lipgloss.Style
	Expander    lipgloss.Style

	// Selection is the background painted over the cursor row. Nil leaves
	// the row as rendered.
	Selection color.Color

	Status      lipgloss.Style
	StatusCount lipgloss.Style
	Muted       lipgloss.Style
	Error       lipgloss.Style
	Prompt      lipgloss.Style

	Help help.Styles
}

func (t *Theme) S() *Styles {
	t.once.Do(func() {
		t.styles = t.buildStyles()
	})
	return t.styles
}

func (t *Theme) buildStyles() *Styles {
	if t.Plain {
		plain := lipgloss.NewStyle()
		return &Styles{
			Base:         plain,
			Header:       plain,
			HeaderSorted: plain,
			HeaderFocus:  plain,
			Row:          plain,
			RowAlt:       plain,
			RowSelected:  plain,
			CellFocused:  plain,
			Placeholder:  plain,
			Expander:     plain,
			Status:       plain,
			StatusCount:  plain,
			Muted:        plain,
			Error:        plain,
			Prompt:       plain,
			Help:         help.Styles{},
		}
	}

	base := lipgloss.NewStyle().Foreground(t.FgBase)
	return &Styles{
		Base: base,

		Header:       base.Bold(true).Foreground(t.FgMuted),
		HeaderSorted: base.Bold(true).Foreground(t.Primary),
		HeaderFocus:  base.Bold(true).Foreground(t.Accent).Underline(true),

		Row:         base,
		RowAlt:      base.Background(Blend(t.BgBase, t.Primary, 0.08)),
		RowSelected: base.Bold(true),
		CellFocused: base.Foreground(t.Accent).Bold(true),
		Placeholder: base.Foreground(t.FgSubtle),
		Expander:    base.Foreground(t.Secondary),

		Selection: Blend(t.BgBase, t.Primary, 0.35),

		Status:      base.Foreground(t.FgMuted),
		StatusCount: base.Foreground(t.Primary).Bold(true),
		Muted:       base.Foreground(t.FgMuted),
		Error:       base.Foreground(t.Error),
		Prompt:      base.Foreground(t.Accent),

		Help: help.Styles{
			ShortKey:       base.Foreground(t.FgMuted),
			ShortDesc:      base.Foreground(t.FgSubtle),
			ShortSeparator: base.Foreground(t.Border),
			Ellipsis:       base.Foreground(t.Border),
			FullKey:        base.Foreground(t.FgMuted),
			FullDesc:       base.Foreground(t.FgSubtle),
			FullSeparator:  base.Foreground(t.Border),
		},
	}
}

// Blend mixes two colors in Lab space. t is the share of b.
func Blend(a, b color.Color, t float64) color.Color {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	ca, ok := colorful.MakeColor(a)
	if !ok {
		return b
	}
	cb, ok := colorful.MakeColor(b)
	if !ok {
		return a
	}
	return lipgloss.Color(ca.BlendLab(cb, t).Clamped().Hex())
}

func NewDarkTheme() *Theme {
	return &Theme{
		Name:      "dark",
		IsDark:    true,
		Primary:   charmtone.Charple,
		Secondary: charmtone.Dolly,
		Accent:    charmtone.Zest,
		FgBase:    charmtone.Ash,
		FgMuted:   charmtone.Squid,
		FgSubtle:  charmtone.Oyster,
		BgBase:    charmtone.Pepper,
		BgSubtle:  charmtone.BBQ,
		Border:    charmtone.Charcoal,
		Error:     charmtone.Sriracha,
	}
}

func NewLightTheme() *Theme {
	return &Theme{
		Name:      "light",
		Primary:   charmtone.Charple,
		Secondary: lipgloss.Color("#0A8FB5"),
		Accent:    lipgloss.Color("#C13AC1"),
		FgBase:    charmtone.Pepper,
		FgMuted:   charmtone.Oyster,
		FgSubtle:  charmtone.Squid,
		BgBase:    charmtone.Salt,
		BgSubtle:  lipgloss.Color("#F1EFEF"),
		Border:    charmtone.Ash,
		Error:     charmtone.Sriracha,
	}
}

// NewAutoTheme picks the dark or light theme from the terminal background.
func NewAutoTheme() *Theme {
	t := NewLightTheme()
	if termenv.HasDarkBackground() {
		t = NewDarkTheme()
	}
	t.Name = "auto"
	return t
}

func NewPlainTheme() *Theme {
	return &Theme{Name: "plain", Plain: true}
}
