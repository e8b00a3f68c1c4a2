package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	TTL           string `envconfig:"CONVERSATION_TTL" default:"24h"`
	HistoryWindow int    `envconfig:"CONVERSATION_HISTORY_WINDOW" default:"20"`
	Tools         struct {
		MaxRounds int `envconfig:"CONVERSATION_TOOL_MAX_ROUNDS" default:"5"`
	}
}

// TierModelConfig configures one chat model backend.
type TierModelConfig struct {
	Model       string  `envconfig:"MODEL"`
	MaxTokens   int     `envconfig:"MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"TEMPERATURE" default:"0.2"`
}

// ModelsConfig is embedded without a prefix so keys read CLASSIFIER_MODEL etc.
type ModelsConfig struct {
	Classifier TierModelConfig `envconfig:"CLASSIFIER"`
	Fast       TierModelConfig `envconfig:"FAST"`
	Capable    TierModelConfig `envconfig:"CAPABLE"`
	// Safety with an empty model disables content screening.
	Safety TierModelConfig `envconfig:"SAFETY"`
}

type RouterConfig struct {
	MaxSimpleWords int  `envconfig:"ROUTER_MAX_SIMPLE_WORDS" default:"20"`
	ToolsMandatory bool `envconfig:"ROUTER_TOOLS_MANDATORY" default:"false"`
}

// TimeoutConfig bounds every external call made by a turn.
type TimeoutConfig struct {
	Classifier time.Duration `envconfig:"TIMEOUT_CLASSIFIER" default:"5s"`
	Generation time.Duration `envconfig:"TIMEOUT_GENERATION" default:"60s"`
	Safety     time.Duration `envconfig:"TIMEOUT_SAFETY" default:"10s"`
	Tool       time.Duration `envconfig:"TIMEOUT_TOOL" default:"15s"`
	Audit      time.Duration `envconfig:"TIMEOUT_AUDIT" default:"3s"`
}

type ToolConfig struct {
	// RoleOverrides uses the form "tool=role|role;tool2=role".
	RoleOverrides string  `envconfig:"TOOL_ROLE_OVERRIDES"`
	RatePerMinute float64 `envconfig:"TOOL_RATE_PER_MINUTE" default:"30"`
	Burst         int     `envconfig:"TOOL_RATE_BURST" default:"10"`
}

type ResponsePromptConfig struct {
	BusinessName string `envconfig:"PROMPT_BUSINESS_NAME" default:"Summit Lending"`
}
