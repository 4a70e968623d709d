package rabbitmq

// ExchangeNotifications direct-обменник для уведомлений.
const ExchangeNotifications = "notifications"

// RoutingKeyReminder ключ маршрутизации напоминаний о продлении.
const RoutingKeyReminder = "reminder"

// QueueReminder очередь, которую читает сервис отправки писем.
const QueueReminder = "notifications.reminder"

// QueueConfig очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди обменника notifications.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueReminder, RoutingKey: RoutingKeyReminder},
	}
}
