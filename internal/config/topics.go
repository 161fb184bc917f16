package config

const (
	// TopicJobEvents carries ingestion job state transitions.
	TopicJobEvents = "ingest.job"

	// ChannelIndexReload is the consumer channel that refreshes the embedding index.
	ChannelIndexReload = "index-reload"
)
