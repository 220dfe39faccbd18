package core

// VoiceConfig defines common settings shared by the voice components.
type VoiceConfig struct {
	SampleRate   float64
	MaxBlockSize int
}

// VoiceOption mutates a VoiceConfig.
type VoiceOption func(*VoiceConfig)

// DefaultVoiceConfig returns the defaults used by the voice engine.
func DefaultVoiceConfig() VoiceConfig {
	return VoiceConfig{
		SampleRate:   44100,
		MaxBlockSize: 512,
	}
}

// WithSampleRate sets the rendering sample rate.
func WithSampleRate(sampleRate float64) VoiceOption {
	return func(cfg *VoiceConfig) {
		if sampleRate > 0 {
			cfg.SampleRate = sampleRate
		}
	}
}

// WithMaxBlockSize sets the largest block a single render call may request.
func WithMaxBlockSize(maxBlockSize int) VoiceOption {
	return func(cfg *VoiceConfig) {
		if maxBlockSize > 0 {
			cfg.MaxBlockSize = maxBlockSize
		}
	}
}

// ApplyVoiceOptions applies zero or more options to the default config.
func ApplyVoiceOptions(opts ...VoiceOption) VoiceConfig {
	cfg := DefaultVoiceConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}
