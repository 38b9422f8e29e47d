package application

import (
	"barcode-scanner/internal/domain"
)

// DeviceService сервис для работы со списком камер
type DeviceService struct {
	devices MediaDevices
	logger  Logger
}

// NewDeviceService создает новый сервис для работы с камерами
func NewDeviceService(devices MediaDevices, logger Logger) *DeviceService {
	return &DeviceService{
		devices: devices,
		logger:  logger,
	}
}

// ListDevices возвращает список доступных устройств захвата
func (s *DeviceService) ListDevices() ([]domain.VideoDevice, error) {
	devices, err := s.devices.ListDevices()
	if err != nil {
		s.logger.Error("Ошибка получения списка устройств: %v", err)
		return nil, err
	}
	s.logger.Debug("Найдено устройств: %d", len(devices))
	return devices, nil
}

// FindDevice ищет камеру по идентификатору; пустой идентификатор
// означает первую доступную камеру
func (s *DeviceService) FindDevice(id string) (domain.VideoDevice, error) {
	devices, err := s.ListDevices()
	if err != nil {
		return domain.VideoDevice{}, err
	}
	for _, device := range devices {
		if id == "" || device.ID == id {
			return device, nil
		}
	}
	return domain.VideoDevice{}, domain.NewMediaError(domain.ErrNameNotFound, nil)
}
