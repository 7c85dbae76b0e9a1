package constant

const (
	ChatMessageRoleUser      = "user"
	ChatMessageRoleAssistant = "assistant"
	ChatMessageRoleSystem    = "system"

	// DefaultChatName is assigned when the client creates a chat without a
	// name, or when a turn arrives without a chat id.
	DefaultChatName = "Novo Chat"

	ChatNameMinLength = 1
	ChatNameMaxLength = 50

	// ContextWindowSize caps how many persisted messages are replayed to the
	// model on each turn.
	ContextWindowSize = 10
)

// SystemInstruction is the assistant persona sent ahead of every turn.
const SystemInstruction = `Você é um assistente especializado em fitness e saúde. Responda sempre em português e de forma útil, motivadora e personalizada. Seja conciso mas informativo.`
