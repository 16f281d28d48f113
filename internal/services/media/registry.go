package media

import (
	"fmt"
	"sort"

	"github.com/hsnksc/mp4totext-backend/internal/errors"
	"github.com/hsnksc/mp4totext-backend/internal/store"
)

// OperatorFlags are operator-level feature switches, read-only for the
// duration of a job.
type OperatorFlags struct {
	CloudDiarizationEnabled bool   `json:"cloud_diarization_enabled"`
	DefaultProvider         string `json:"default_provider,omitempty"`
}

// Registry maps provider ids to implementations. Selection is a lookup into
// this map, never an if/else chain over concrete types.
type Registry struct {
	providers map[string]Provider
	def       string
}

// NewRegistry creates an empty registry with the given default provider id.
func NewRegistry(defaultID string) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		def:       defaultID,
	}
}

// Register adds a provider under its own id. Registering the same id twice
// replaces the earlier entry.
func (r *Registry) Register(p Provider) {
	r.providers[p.ID()] = p
}

// Resolve returns the provider registered under id.
func (r *Registry) Resolve(id string) (Provider, error) {
	p, ok := r.providers[id]
	if !ok {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("unknown transcription provider %q (known: %v)", id, r.ids()),
			"PROVIDER_UNKNOWN",
			"Use one of the registered provider identifiers.",
		)
	}
	return p, nil
}

// Select picks the provider for a job. Priority: explicit per-job override,
// then operator-enabled cloud diarization, then the default provider. It is
// deterministic for the same config and flags, and surfaces capability
// mismatches as configuration errors before any provider call.
func (r *Registry) Select(cfg store.JobConfig, flags OperatorFlags) (Provider, error) {
	id := SelectID(cfg, flags, r.def)

	p, err := r.Resolve(id)
	if err != nil {
		return nil, err
	}

	if cfg.Diarization && !p.Capabilities().Diarization {
		return nil, errors.NewConfigurationError(
			fmt.Sprintf("diarization requested but provider %q does not support it", p.ID()),
			"PROVIDER_NO_DIARIZATION",
			"Disable diarization or choose a diarization-capable provider.",
		)
	}
	return p, nil
}

// SelectID is the pure decision function behind Select.
func SelectID(cfg store.JobConfig, flags OperatorFlags, defaultID string) string {
	if cfg.Provider != "" {
		return cfg.Provider
	}
	if cfg.Diarization && flags.CloudDiarizationEnabled {
		return ProviderWhisperX
	}
	if flags.DefaultProvider != "" {
		return flags.DefaultProvider
	}
	return defaultID
}

func (r *Registry) ids() []string {
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
