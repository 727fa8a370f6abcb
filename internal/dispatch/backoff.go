package dispatch

import "time"

// Backoff возвращает паузу перед попыткой attempt (нумерация с 1):
// base, 2*base, 4*base, … с потолком cap.
func Backoff(base, cap time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 30 * time.Second
	}
	if cap <= 0 {
		cap = time.Hour
	}
	if attempt < 1 {
		attempt = 1
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cap || d <= 0 { // d <= 0 — переполнение
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}
