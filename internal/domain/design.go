package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Default design values
const (
	DefaultRetrievalLimit      = 5
	DefaultRetentionPolicyDays = 30
	DefaultDBNamePrefix        = "amm_memory"
	DefaultModelName           = "gemini-1.5-flash-latest"
	DefaultTemperature         = 0.7
	DefaultSystemInstruction   = "You are a helpful assistant."
	DefaultWelcomeMessage      = "Hello! How can I help you?"
)

// KnowledgeSource names one document to be ingested as fixed knowledge.
// Text sources carry their content inline; file and pdf sources carry a path
// (local or s3://bucket/key).
type KnowledgeSource struct {
	ID      string     `yaml:"id" json:"id"`
	Name    string     `yaml:"name" json:"name"`
	Type    SourceType `yaml:"type" json:"type"`
	Content string     `yaml:"content,omitempty" json:"content,omitempty"`
	Path    string     `yaml:"path,omitempty" json:"path,omitempty"`
}

// Validate checks the source is ingestable
func (k KnowledgeSource) Validate() error {
	if !k.Type.IsValid() {
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("invalid knowledge source type %q", k.Type))
	}
	if k.Type == SourceTypeText && strings.TrimSpace(k.Content) == "" && k.Path == "" {
		return NewDomainError(ErrCodeValidation, "text knowledge source requires content or path")
	}
	if k.Type != SourceTypeText && k.Path == "" {
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("%s knowledge source requires a path", k.Type))
	}
	return nil
}

// DisplayName returns the name used in chunk metadata
func (k KnowledgeSource) DisplayName() string {
	if k.Name != "" {
		return k.Name
	}
	if k.Path != "" {
		return k.Path
	}
	return k.ID
}

type AdaptiveMemory struct {
	Enabled             bool   `yaml:"enabled" json:"enabled"`
	RetrievalLimit      int    `yaml:"retrieval_limit" json:"retrieval_limit"`
	RetentionPolicyDays int    `yaml:"retention_policy_days" json:"retention_policy_days"`
	DBNamePrefix        string `yaml:"db_name_prefix" json:"db_name_prefix"`
}

type Prompts struct {
	SystemInstruction string `yaml:"system_instruction" json:"system_instruction"`
	WelcomeMessage    string `yaml:"welcome_message" json:"welcome_message"`
}

// ModelSettings configures the generative model. Temperature is a pointer
// so an explicit 0 is kept apart from an unset value.
type ModelSettings struct {
	Name            string   `yaml:"model_name" json:"model_name"`
	Temperature     *float32 `yaml:"temperature" json:"temperature,omitempty"`
	TopP            float32  `yaml:"top_p" json:"top_p"`
	TopK            int32    `yaml:"top_k" json:"top_k"`
	MaxOutputTokens int32    `yaml:"max_output_tokens" json:"max_output_tokens"`
}

// Temp returns a pointer to t for use in ModelSettings literals.
func Temp(t float32) *float32 {
	return &t
}

// Design describes one AMM instance: its fixed knowledge, memory policy,
// prompts and model settings.
type Design struct {
	ID               string            `yaml:"id" json:"id"`
	Name             string            `yaml:"name" json:"name"`
	Description      string            `yaml:"description" json:"description"`
	KnowledgeSources []KnowledgeSource `yaml:"knowledge_sources" json:"knowledge_sources"`
	AdaptiveMemory   AdaptiveMemory    `yaml:"adaptive_memory" json:"adaptive_memory"`
	Prompts          Prompts           `yaml:"agent_prompts" json:"agent_prompts"`
	Model            ModelSettings     `yaml:"gemini_config" json:"gemini_config"`
}

// NewDesign returns a design with defaults applied
func NewDesign(name string) *Design {
	d := &Design{
		Name:           name,
		AdaptiveMemory: AdaptiveMemory{Enabled: true},
	}
	d.ApplyDefaults()
	return d
}

// ApplyDefaults fills zero-valued fields. It is safe to call more than once.
func (d *Design) ApplyDefaults() {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.AdaptiveMemory.RetrievalLimit <= 0 {
		d.AdaptiveMemory.RetrievalLimit = DefaultRetrievalLimit
	}
	if d.AdaptiveMemory.RetentionPolicyDays <= 0 {
		d.AdaptiveMemory.RetentionPolicyDays = DefaultRetentionPolicyDays
	}
	if d.AdaptiveMemory.DBNamePrefix == "" {
		d.AdaptiveMemory.DBNamePrefix = DefaultDBNamePrefix
	}
	if d.Prompts.SystemInstruction == "" {
		d.Prompts.SystemInstruction = DefaultSystemInstruction
	}
	if d.Prompts.WelcomeMessage == "" {
		d.Prompts.WelcomeMessage = DefaultWelcomeMessage
	}
	if d.Model.Name == "" {
		d.Model.Name = DefaultModelName
	}
	if d.Model.Temperature == nil {
		d.Model.Temperature = Temp(DefaultTemperature)
	}
	if d.Model.TopP == 0 {
		d.Model.TopP = 0.95
	}
	if d.Model.TopK == 0 {
		d.Model.TopK = 40
	}
	if d.Model.MaxOutputTokens == 0 {
		d.Model.MaxOutputTokens = 2048
	}
	for i := range d.KnowledgeSources {
		if d.KnowledgeSources[i].ID == "" {
			d.KnowledgeSources[i].ID = uuid.NewString()
		}
	}
}

// Validate checks every knowledge source
func (d *Design) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return NewDomainError(ErrCodeValidation, "design name is required")
	}
	for _, ks := range d.KnowledgeSources {
		if err := ks.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SQLiteFileName is the per-design interaction log file name
func (d *Design) SQLiteFileName() string {
	return fmt.Sprintf("%s_%s.sqlite", d.AdaptiveMemory.DBNamePrefix, d.ID)
}
