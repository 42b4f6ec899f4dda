package config

// PromptBudgetConfig configures token budgeting for prompt assembly.
type PromptBudgetConfig struct {
	// CharsPerToken is the character-per-token estimator ratio. Default: 4.
	CharsPerToken int `yaml:"chars_per_token"`

	// DefaultBudget is the prompt token budget used when a model has no
	// entry in ModelBudgets.
	DefaultBudget int `yaml:"default_budget"`

	// ModelBudgets maps a model name to its prompt token budget.
	ModelBudgets map[string]int `yaml:"model_budgets"`
}
