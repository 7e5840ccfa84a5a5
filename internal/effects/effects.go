package effects

// Effector processes mono audio one sample at a time.
type Effector interface {
	Process(x float32) float32
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(x float32) float32 {
	for _, e := range c.effects {
		x = e.Process(x)
	}
	return x
}

// ProcessBuffer runs the chain over buf in place.
func (c *Chain) ProcessBuffer(buf []float32) {
	if len(c.effects) == 0 {
		return
	}
	for i, x := range buf {
		buf[i] = c.Process(x)
	}
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }
