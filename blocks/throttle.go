package blocks

import (
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/chazu/blockbridge/block"
	"github.com/chazu/blockbridge/dtype"
	"github.com/chazu/blockbridge/engine"
	"github.com/chazu/blockbridge/port"
	"github.com/chazu/blockbridge/proxy"
)

func init() {
	engine.Register("/blocks/throttle", "Forward at most rate items per second",
		func(native proxy.Proxy, args ...any) (block.Worker, error) {
			dt, err := dtypeArg(args, 0, dtype.MustParse("byte"))
			if err != nil {
				return nil, err
			}
			r, err := floatArg(args, 1, 1000)
			if err != nil {
				return nil, err
			}
			return NewThrottle(native, dt, r)
		})
}

// Throttle forwards like Forwarder but lets through at most rate items
// per second, with a burst of one second's worth.
type Throttle struct {
	*block.Base
	in  *port.InputPort
	out *port.OutputPort
	lim *rate.Limiter
	now func() time.Time
}

// NewThrottle binds a throttle of dt items to native.
func NewThrottle(native proxy.Proxy, dt dtype.DType, itemsPerSec float64) (*Throttle, error) {
	if itemsPerSec <= 0 {
		return nil, fmt.Errorf("throttle: rate %v must be positive", itemsPerSec)
	}
	t := &Throttle{now: time.Now}
	t.lim = rate.NewLimiter(rate.Limit(itemsPerSec), burst(itemsPerSec))
	b, err := block.New(native, t)
	if err != nil {
		return nil, err
	}
	t.Base = b
	if t.in, err = b.SetupInput("0", dt); err != nil {
		return nil, err
	}
	if t.out, err = b.SetupOutput("0", dt); err != nil {
		return nil, err
	}
	if err := b.RegisterSlot("setRate"); err != nil {
		return nil, err
	}
	return t, nil
}

func burst(itemsPerSec float64) int {
	return max(1, int(itemsPerSec))
}

// SetRate changes the rate.
func (t *Throttle) SetRate(itemsPerSec float64) error {
	if itemsPerSec <= 0 {
		return fmt.Errorf("throttle: rate %v must be positive", itemsPerSec)
	}
	now := t.now()
	t.lim.SetLimitAt(now, rate.Limit(itemsPerSec))
	t.lim.SetBurstAt(now, burst(itemsPerSec))
	return nil
}

// Activate starts from an empty bucket so the first second is not a
// burst.
func (t *Throttle) Activate() error {
	t.lim.AllowN(t.now(), t.lim.Burst())
	return nil
}

func (t *Throttle) Work() error {
	if err := forwardMessages(t.in, t.out); err != nil {
		return err
	}
	n, err := window(t.in, t.out)
	if err != nil || n == 0 {
		return err
	}
	now := t.now()
	n = min(n, int(t.lim.TokensAt(now)))
	if n <= 0 || !t.lim.AllowN(now, n) {
		return nil
	}
	return forward(t.in, t.out, n)
}
