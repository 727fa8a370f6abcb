package messaging

import (
	"context"
	"errors"
	"fmt"
)

// Sender — внешняя точка отправки сообщений ("messaging endpoint").
// Реализация может тормозить, отдавать rate-limit и падать на неопределённый
// срок; классификация исходов — забота реализации, реакция — забота пула
// доставки.
type Sender interface {
	Send(ctx context.Context, chatID int64, payload []byte) error
}

// FatalError — окончательный отказ получателя: бот заблокирован, чат не
// существует, невалидный токен. Повторы не помогут, запись уходит в fatal
// немедленно.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("permanent delivery failure: %s", e.Reason)
}

// IsFatal — является ли ошибка окончательной.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
