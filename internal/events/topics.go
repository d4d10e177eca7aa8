package events

// Topic constants for domain events emitted by the platform.
const (
	TopicPurchaseCreated = "purchase.created"
	TopicPurchaseUpdated = "purchase.updated"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicPurchaseCreated,
		TopicPurchaseUpdated,
	}
}

// ValidTopic reports whether the topic is one the platform emits.
func ValidTopic(topic string) bool {
	for _, known := range DefaultTopics() {
		if known == topic {
			return true
		}
	}
	return false
}
