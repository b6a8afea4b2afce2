package schedule

import "fmt"

// State 调度器状态
type State int

const (
	WarmingUp State = iota
	Active
)

func (s State) String() string {
	if s == Active {
		return "active"
	}
	return "warming-up"
}

// Scheduler 按bar计数的再平衡定时器.
// 前 lookback 个bar为预热期, 之后第一个bar触发, 随后每 period 个bar触发一次.
type Scheduler struct {
	lookback int
	period   int
	bars     int
}

// New 创建调度器
func New(lookback, period int) (*Scheduler, error) {
	if lookback < 1 {
		return nil, fmt.Errorf("lookback must be positive, got %d", lookback)
	}
	if period < 1 {
		return nil, fmt.Errorf("rebalance period must be positive, got %d", period)
	}
	return &Scheduler{lookback: lookback, period: period}, nil
}

// Tick 前进一个bar, 返回本bar是否需要再平衡
func (s *Scheduler) Tick() bool {
	s.bars++
	return s.Due(s.bars)
}

// Due 判断第 n 个bar (从1开始) 是否触发
func (s *Scheduler) Due(n int) bool {
	t := n - s.lookback
	if t < 1 {
		return false
	}
	return (t-1)%s.period == 0
}

// Bars 已经处理的bar数
func (s *Scheduler) Bars() int {
	return s.bars
}

// State 当前状态, 一旦进入 Active 不会回退
func (s *Scheduler) State() State {
	if s.bars > s.lookback {
		return Active
	}
	return WarmingUp
}

// NextRebalance 下一次触发的bar序号
func (s *Scheduler) NextRebalance() int {
	n := s.bars + 1
	if n <= s.lookback {
		return s.lookback + 1
	}
	t := n - s.lookback
	rem := (t - 1) % s.period
	if rem == 0 {
		return n
	}
	return n + s.period - rem
}
