package grid

import (
	"github.com/tujuhre12/dgrid/internal/provider"
)

type PageDetails struct {
	Page  int
	Pages int
}

// PageOf derives the current page from the loaded window. Pages are
// numbered from 1.
func PageOf(size provider.SizeDetails, perPage int) PageDetails {
	if perPage <= 0 {
		return PageDetails{Page: 1, Pages: 1}
	}
	return PageDetails{
		Page:  size.Start/perPage + 1,
		Pages: (size.TotalLength + perPage - 1) / perPage,
	}
}
