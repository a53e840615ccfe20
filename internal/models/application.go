package models

import "time"

// Application запись каталога приложений платформы. Справочные данные,
// клиент их не изменяет; админка может переключать флаги.
type Application struct {
	ID                 string
	Name               string
	Slug               string // Используется как поддомен запуска
	DisplayName        string
	Description        *string
	IconURL            *string
	IsActive           bool
	MaintenanceMode    bool
	MaintenanceMessage *string
	ContainerName      string
	HealthCheckURL     *string
	Version            *string
	SourceCodeURL      *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// UpdateApplication частичное обновление приложения из админки.
// nil-поля не изменяются.
type UpdateApplication struct {
	IsActive           *bool
	MaintenanceMode    *bool
	MaintenanceMessage *string
	Version            *string
}
