package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	TicksActive      Counter
	OrdersPlaced     Counter
	OrdersFailed     Counter
	OrdersCancelled  Counter
	CancelsFailed    Counter
	WallsReplaced    Counter
	DebtBorrows      Counter
	DebtAdjustments  Counter
	DebtInconsistent Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		TicksActive:      n,
		OrdersPlaced:     n,
		OrdersFailed:     n,
		OrdersCancelled:  n,
		CancelsFailed:    n,
		WallsReplaced:    n,
		DebtBorrows:      n,
		DebtAdjustments:  n,
		DebtInconsistent: n,
	}
}
