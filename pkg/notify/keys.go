package notify

// Redis keys used by the fingerprint daemon.
const (
	// KeyCommandList is the list BRPOP drains for incoming workflow
	// commands, one string per command.
	KeyCommandList = "scooter:fingerprint:commands"

	// KeyStatusChannel is the channel lifecycle events are published
	// on: workflow start, human-action prompts, and completion.
	KeyStatusChannel = "scooter:fingerprint:status"
)
