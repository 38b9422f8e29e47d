package application

import (
	"fmt"
	"sync/atomic"
)

// MountGuard признак того, что владелец сканера еще жив.
// Все асинхронные продолжения проверяют его перед изменением состояния.
type MountGuard struct {
	mounted atomic.Bool
}

// NewMountGuard создает guard в состоянии "смонтирован"
func NewMountGuard() *MountGuard {
	g := &MountGuard{}
	g.mounted.Store(true)
	return g
}

// Mounted сообщает, жив ли владелец
func (g *MountGuard) Mounted() bool {
	return g.mounted.Load()
}

// Unmount переводит guard в "размонтирован"; возвращает false при повторном вызове
func (g *MountGuard) Unmount() bool {
	return g.mounted.CompareAndSwap(true, false)
}

// safely выполняет шаг очистки, логируя и поглощая ошибки и паники
func safely(logger Logger, step string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("Паника при очистке (%s): %v", step, fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		logger.Warn("Ошибка при очистке (%s): %v", step, err)
	}
}
