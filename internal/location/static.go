package location

import (
	"sync"
	"time"
)

// StaticSensor reports a fixed coordinate on an interval. It stands in for a
// device GPS when the position is known, e.g. a wall-mounted kiosk.
type StaticSensor struct {
	Position Coordinate
	Accuracy float64
	Interval time.Duration
}

// NewStaticSensor creates a sensor that re-emits pos every interval.
func NewStaticSensor(pos Coordinate, accuracy float64, interval time.Duration) *StaticSensor {
	if interval <= 0 {
		interval = time.Second
	}
	return &StaticSensor{Position: pos, Accuracy: accuracy, Interval: interval}
}

// Subscribe emits the first fix immediately and then one per interval until
// unsubscribed. The returned func does not wait for the emitter to exit.
func (s *StaticSensor) Subscribe(onFix func(Fix), onError func(error), opts SensorOptions) (func(), error) {
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			onFix(Fix{
				Lat:       s.Position.Lat,
				Lng:       s.Position.Lng,
				Accuracy:  s.Accuracy,
				Timestamp: time.Now(),
			})
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }, nil
}
