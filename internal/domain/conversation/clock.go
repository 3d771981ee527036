package conversation

import "time"

// Clock abstracts time so session timestamps can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock returns a fixed instant, advanced manually.
type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time {
	return m.CurrentTime
}

func (m *MockClock) Advance(d time.Duration) {
	m.CurrentTime = m.CurrentTime.Add(d)
}

var clock Clock = RealClock{}

// SetClock swaps the package clock; pair with ResetClock in a cleanup.
func SetClock(c Clock) {
	clock = c
}

func ResetClock() {
	clock = RealClock{}
}
