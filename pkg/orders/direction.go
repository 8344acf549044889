package orders

type Direction int8

const (
	Sell Direction = -1
	Hold Direction = 0
	Buy  Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "hold"
}

// DirectionOf derives the trade direction from a signed quantity.
func DirectionOf(quantity int64) Direction {
	switch {
	case quantity > 0:
		return Buy
	case quantity < 0:
		return Sell
	}
	return Hold
}
