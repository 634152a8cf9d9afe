package domain

// GenerationRequest is everything a generator needs for one answer.
type GenerationRequest struct {
	SystemInstruction string
	Prompt            string
	Model             ModelSettings
}
