package broker

// Subjects carried on the broker.
const (
	BlockEventsSubject = "blocks.events"
)

// Queue groups for subscribers that share the load of one subject.
const (
	SubscriptionGroup = "subscriptions"
)
