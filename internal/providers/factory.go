package providers

import "fmt"

// Backend identifiers selectable via configuration.
const (
	BackendConversational = "conversational"
	BackendSynthesis      = "synthesis"
)

// FactoryConfig selects and configures one of the interchangeable
// image-generation backends.
type FactoryConfig struct {
	Backend        string
	Conversational ConversationalConfig
	Synthesis      SynthesisConfig
}

// NewProvider creates the configured backend, wrapped with bounded retry.
func NewProvider(cfg FactoryConfig) (ImageProvider, error) {
	var (
		inner ImageProvider
		err   error
	)

	switch cfg.Backend {
	case BackendConversational:
		inner, err = NewConversationalProvider(cfg.Conversational)
	case BackendSynthesis:
		inner, err = NewSynthesisProvider(cfg.Synthesis)
	default:
		return nil, fmt.Errorf("unknown upstream backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return WithRetry(inner), nil
}
