package feed

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/radeeyate/comicplate/internal/compose"
)

// Order is how a pool snapshot is arranged before it is composed.
type Order string

const (
	// OrderRanked keeps the pool's priority order.
	OrderRanked  Order = "ranked"
	OrderShuffle Order = "shuffle"
)

var ErrUnknownOrder = errors.New("unknown candidate order")

func ParseOrder(s string) (Order, error) {
	switch o := Order(s); o {
	case OrderRanked, OrderShuffle:
		return o, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownOrder, s)
}

// Arrange reorders entries in place and returns them.
func (o Order) Arrange(entries []compose.Entry) []compose.Entry {
	if o == OrderShuffle {
		rand.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	}
	return entries
}
