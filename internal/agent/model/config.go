package model

// ================ Config ================
type ConversationConfig struct {
	HistoryMaxTurns int `envconfig:"CONVERSATION_HISTORY_MAX_TURNS" default:"10"`
	Tools           struct {
		MaxCalls int `envconfig:"CONVERSATION_TOOL_MAX_CALLS" default:"10"`
	}
	RateLimit struct {
		MaxRequests   int `envconfig:"CONVERSATION_RATE_MAX_REQUESTS" default:"30"`
		WindowSeconds int `envconfig:"CONVERSATION_RATE_WINDOW_SECONDS" default:"60"`
	}
}

type StylistModelConfig struct {
	Model       string  `envconfig:"STYLIST_MODEL" default:"gemini-2.0-flash"`
	MaxTokens   int     `envconfig:"STYLIST_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"STYLIST_TEMPERATURE" default:"0.4"`
}

type VisionModelConfig struct {
	Model string `envconfig:"VISION_MODEL" default:"gemini-2.0-flash"`
}

type PromptConfig struct {
	BotName string `envconfig:"PROMPT_BOT_NAME" default:"Stylebot"`
	Persona string `envconfig:"PROMPT_PERSONA" default:"a warm, encouraging personal stylist and wellness companion"`
}
