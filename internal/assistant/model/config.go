package model

// ================ Config ================

import "time"

// RouterModelConfig controls the tool-choice intent classification model.
type RouterModelConfig struct {
	Temperature  float32 `envconfig:"ROUTER_TEMPERATURE" default:"0"`
	MaxTokens    int     `envconfig:"ROUTER_MAX_TOKENS" default:"1024"`
	HistoryTurns int     `envconfig:"ROUTER_HISTORY_TURNS" default:"3"`
}

// ContentModelConfig controls the content-generation model calls
// (template field mapping, document bodies, chat replies).
type ContentModelConfig struct {
	Temperature float32 `envconfig:"CONTENT_TEMPERATURE" default:"0.7"`
	MaxTokens   int     `envconfig:"CONTENT_MAX_TOKENS" default:"4096"`
}

// FallbackConfig lists the Gemini models tried in order. The first entry is the
// primary model; later entries are only reached on recoverable failures.
type FallbackConfig struct {
	Models []string `envconfig:"LLM_MODEL_LIST" default:"gemini-2.5-flash-lite,gemini-2.5-flash"`
}

// ConversationConfig shapes the conversation log behaviour.
type ConversationConfig struct {
	TTL  time.Duration `envconfig:"CONVERSATION_TTL" default:"24h"`
	Chat struct {
		MaxTurns int `envconfig:"CONVERSATION_CHAT_MAX_TURNS" default:"20"`
	}
}
