package styles

import (
	"fmt"
	"slices"
	"sync"
)

var (
	mu      sync.RWMutex
	current = NewDarkTheme()
	themes  = map[string]func() *Theme{
		"auto":  NewAutoTheme,
		"dark":  NewDarkTheme,
		"light": NewLightTheme,
		"plain": NewPlainTheme,
	}
)

func CurrentTheme() *Theme {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func SetTheme(t *Theme) {
	mu.Lock()
	defer mu.Unlock()
	current = t
}

// ThemeByName returns a fresh copy of a named theme.
func ThemeByName(name string) (*Theme, error) {
	fn, ok := themes[name]
	if !ok {
		return nil, fmt.Errorf("unknown theme %q", name)
	}
	return fn(), nil
}

func ThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
