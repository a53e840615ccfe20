// Package access вычисляет право запуска приложения из статуса подписки
// пользователя и флагов приложения. Чистая функция от текущего снимка
// данных, без побочных эффектов; используется и сервером при формировании
// ответов каталога, и клиентским SDK.
package access

// Status статус подписки, как он приходит от сервера. Произвольные строки
// допустимы: всё, что не входит в известный перечень, трактуется как
// отсутствие доступа.
type Status string

const (
	StatusNone       Status = "none"
	StatusActive     Status = "active"
	StatusPastDue    Status = "past_due"
	StatusCanceled   Status = "canceled"
	StatusIncomplete Status = "incomplete"
)

// Reason причина отказа в доступе. Взаимоисключающие значения.
type Reason string

const (
	// ReasonNone доступ разрешен.
	ReasonNone Reason = ""
	// ReasonMembershipRequired нет активной подписки.
	ReasonMembershipRequired Reason = "membership_required"
	// ReasonNotAvailable приложение отключено.
	ReasonNotAvailable Reason = "not_available"
	// ReasonUnderMaintenance приложение на обслуживании.
	ReasonUnderMaintenance Reason = "under_maintenance"
)

// Decision результат проверки доступа.
type Decision struct {
	HasAccess bool
	Reason    Reason
}

// Check вычисляет право запуска приложения. Порядок проверок фиксирован:
// отсутствие подписки доминирует над обслуживанием, чтобы пользователь
// без подписки всегда видел именно «нужна подписка», а отключенное
// приложение — над обслуживанием. Неизвестный статус подписки означает
// отказ: доступ по умолчанию закрыт.
func Check(status Status, appActive, appMaintenance bool) Decision {
	if !hasMembershipAccess(status) {
		return Decision{Reason: ReasonMembershipRequired}
	}
	if !appActive {
		return Decision{Reason: ReasonNotAvailable}
	}
	if appMaintenance {
		return Decision{Reason: ReasonUnderMaintenance}
	}
	return Decision{HasAccess: true}
}

// hasMembershipAccess: active и past_due (grace-период) дают доступ,
// всё остальное — нет.
func hasMembershipAccess(status Status) bool {
	return status == StatusActive || status == StatusPastDue
}
