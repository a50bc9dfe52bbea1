package strategy

import "errors"

// ErrNotEnoughData is returned when a series is shorter than the indicator
// window asked of it.
var ErrNotEnoughData = errors.New("not enough data")

// Series is a chronological close-price history, oldest first.
type Series []float64

func (s Series) Last() float64 {
	if len(s) == 0 {
		return 0
	}
	return s[len(s)-1]
}

func (s Series) SMA(window int) (float64, error) {
	if window <= 0 || len(s) < window {
		return 0, ErrNotEnoughData
	}
	sum := 0.0
	for _, v := range s[len(s)-window:] {
		sum += v
	}
	return sum / float64(window), nil
}

// EMA seeds with an SMA over the first window values, then folds the rest.
func (s Series) EMA(window int) (float64, error) {
	if window <= 0 || len(s) < window {
		return 0, ErrNotEnoughData
	}
	seed := 0.0
	for _, v := range s[:window] {
		seed += v
	}
	ema := seed / float64(window)
	k := 2.0 / float64(window+1)
	for _, v := range s[window:] {
		ema = v*k + ema*(1-k)
	}
	return ema, nil
}

// RSI is Wilder's relative strength index over the trailing period.
func (s Series) RSI(period int) (float64, error) {
	if period <= 0 || len(s) < period+1 {
		return 0, ErrNotEnoughData
	}
	var gains, losses float64
	start := len(s) - period - 1
	for i := start + 1; i < len(s); i++ {
		change := s[i] - s[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	if losses == 0 {
		return 100, nil
	}
	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - 100/(1+rs), nil
}

// Max returns the highest close over the trailing window, excluding the
// latest bar so breakout checks compare against prior history.
func (s Series) Max(window int) (float64, error) {
	if window <= 0 || len(s) < window+1 {
		return 0, ErrNotEnoughData
	}
	prior := s[len(s)-window-1 : len(s)-1]
	high := prior[0]
	for _, v := range prior[1:] {
		if v > high {
			high = v
		}
	}
	return high, nil
}
