package api

// GenerateConfig holds the generation options a caller may set. Every
// field is optional; nil (or empty) means "use the backend default".
type GenerateConfig struct {
	MaxTokens        *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP             *float64 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK             *int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	Seed             *int     `json:"seed,omitempty" yaml:"seed,omitempty"`
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" yaml:"frequency_penalty,omitempty"`
	PresencePenalty  *float64 `json:"presence_penalty,omitempty" yaml:"presence_penalty,omitempty"`
	StopSeqs         []string `json:"stop_seqs,omitempty" yaml:"stop_seqs,omitempty"`
}

// Merge returns a copy of c with every field that is set in other
// overriding the value in c.
func (c GenerateConfig) Merge(other GenerateConfig) GenerateConfig {
	out := c
	if other.MaxTokens != nil {
		out.MaxTokens = other.MaxTokens
	}
	if other.Temperature != nil {
		out.Temperature = other.Temperature
	}
	if other.TopP != nil {
		out.TopP = other.TopP
	}
	if other.TopK != nil {
		out.TopK = other.TopK
	}
	if other.Seed != nil {
		out.Seed = other.Seed
	}
	if other.FrequencyPenalty != nil {
		out.FrequencyPenalty = other.FrequencyPenalty
	}
	if other.PresencePenalty != nil {
		out.PresencePenalty = other.PresencePenalty
	}
	if len(other.StopSeqs) > 0 {
		out.StopSeqs = append([]string(nil), other.StopSeqs...)
	}
	return out
}

// Int returns a pointer to v, for populating optional config fields.
func Int(v int) *int { return &v }

// Float returns a pointer to v, for populating optional config fields.
func Float(v float64) *float64 { return &v }
