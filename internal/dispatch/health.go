package dispatch

import (
	"sync"
	"time"
)

// Состояние пайплайна доставки для операционного сигнала.
type HealthState string

const (
	HealthStateHealthy  HealthState = "healthy"
	HealthStateDegraded HealthState = "degraded"
	HealthStateFatal    HealthState = "fatal"
)

// Health агрегирует наблюдения воркеров. Потокобезопасен: в него пишут
// все воркеры пула, читает HTTP-эндпоинт здоровья.
type Health struct {
	mu         sync.Mutex
	lastPollAt time.Time
	degraded   bool
	halted     bool
	haltReason string
}

func NewHealth() *Health {
	return &Health{}
}

// RecordPoll отмечает живость цикла опроса.
func (h *Health) RecordPoll(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPollAt = at
}

// RecordSent — успешная доставка снимает деградацию.
func (h *Health) RecordSent() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degraded = false
}

// RecordRetry — переживаемая ошибка доставки.
func (h *Health) RecordRetry() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degraded = true
}

// Halt поднимает процесс-флаг "доставка остановлена": получатель навсегда
// недоступен или отозван токен. Снимается только вмешательством оператора
// (рестартом процесса).
func (h *Health) Halt(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.halted = true
	h.haltReason = reason
}

// Halted — поднят ли флаг остановки доставки.
func (h *Health) Halted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.halted
}

// Snapshot — мгновенное состояние для health-эндпоинта.
type HealthSnapshot struct {
	State      HealthState `json:"state"`
	LastPollAt time.Time   `json:"last_poll_at"`
	HaltReason string      `json:"halt_reason,omitempty"`
}

func (h *Health) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := HealthStateHealthy
	switch {
	case h.halted:
		state = HealthStateFatal
	case h.degraded:
		state = HealthStateDegraded
	}

	return HealthSnapshot{
		State:      state,
		LastPollAt: h.lastPollAt,
		HaltReason: h.haltReason,
	}
}
