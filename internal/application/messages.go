package application

import "barcode-scanner/internal/domain"

// Сообщения для пользователя
const (
	MsgPermissionDenied = "Доступ к камере запрещен. Разрешите использование камеры в настройках браузера или приложения."
	MsgCameraNotFound   = "Камера не найдена на этом устройстве."
	MsgCameraBusy       = "Камера уже используется другим приложением."
	MsgCameraGeneric    = "Не удалось получить доступ к камере. Попробуйте еще раз."
	MsgPlaybackFailed   = "Не удалось запустить воспроизведение видео с камеры."
	MsgVideoError       = "Ошибка видео камеры."
	MsgScannerFailed    = "Ошибка сканера штрихкодов."
)

// ClassifyAccessError переводит ошибку запроса камеры в сообщение для пользователя
func ClassifyAccessError(err error) string {
	switch domain.ErrorName(err) {
	case domain.ErrNameNotAllowed:
		return MsgPermissionDenied
	case domain.ErrNameNotFound:
		return MsgCameraNotFound
	case domain.ErrNameNotReadable:
		return MsgCameraBusy
	default:
		return MsgCameraGeneric
	}
}

// IsTransientDecodeError штатный промах кадра: кода нет или кадр нечитаем
func IsTransientDecodeError(err error) bool {
	switch domain.ErrorName(err) {
	case domain.ErrNameCodeNotFound, domain.ErrNameChecksum, domain.ErrNameFormat:
		return true
	}
	return false
}

// IsStructuralDecodeError ошибка, о которой нужно сообщить пользователю
func IsStructuralDecodeError(err error) bool {
	switch domain.ErrorName(err) {
	case domain.ErrNameNotSupported, domain.ErrNameInvalidState:
		return true
	}
	return false
}
