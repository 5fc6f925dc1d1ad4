package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/goccy/go-yaml"

	"github.com/joseph-ayodele/receipts-extractor/constants"
	"github.com/joseph-ayodele/receipts-extractor/internal/assemble"
	"github.com/joseph-ayodele/receipts-extractor/internal/common"
	"github.com/joseph-ayodele/receipts-extractor/internal/evidence"
	"github.com/joseph-ayodele/receipts-extractor/internal/fusion"
	"github.com/joseph-ayodele/receipts-extractor/internal/keywords"
	"github.com/joseph-ayodele/receipts-extractor/internal/taxtable"
)

// Config holds every engine knob. Zero-valued maps and lists mean "use the
// built-in defaults".
type Config struct {
	MinEvidenceConfidence         float64 `yaml:"minEvidenceConfidence" json:"minEvidenceConfidence"`
	MinClusterConfidence          float64 `yaml:"minClusterConfidence" json:"minClusterConfidence"`
	SimilarityThreshold           float64 `yaml:"similarityThreshold" json:"similarityThreshold"`
	MaxClusterVariance            float64 `yaml:"maxClusterVariance" json:"maxClusterVariance"`
	MathematicalTolerancePercent  float64 `yaml:"mathematicalTolerancePercent" json:"mathematicalTolerancePercent"`
	MathematicalToleranceAbsolute float64 `yaml:"mathematicalToleranceAbsolute" json:"mathematicalToleranceAbsolute"`
	SpatialTolerancePixels        float64 `yaml:"spatialTolerancePixels" json:"spatialTolerancePixels"`
	MinTaxRatePercent             float64 `yaml:"minTaxRatePercent" json:"minTaxRatePercent"`
	MaxTaxRatePercent             float64 `yaml:"maxTaxRatePercent" json:"maxTaxRatePercent"`
	VerificationThreshold         float64 `yaml:"verificationThreshold" json:"verificationThreshold"`
	EnableDebugLogging            bool    `yaml:"enableDebugLogging" json:"enableDebugLogging"`

	// SourceWeights override the built-in per-source trust.
	SourceWeights map[string]float64 `yaml:"sourceWeights" json:"sourceWeights,omitempty"`
	// EnabledSources restricts collection; empty runs every strategy.
	EnabledSources []string `yaml:"enabledSources" json:"enabledSources,omitempty"`
	// LLMWeight is the fusion weight of candidate evidence; it wins over sourceWeights.llm.
	LLMWeight float64 `yaml:"llmWeight" json:"llmWeight"`
	// ExtraKeywords is language -> category -> words added to the registry.
	ExtraKeywords map[string]map[string][]string `yaml:"extraKeywords" json:"extraKeywords,omitempty"`
}

func DefaultConfig() Config {
	tol := taxtable.DefaultTolerance()
	return Config{
		MinEvidenceConfidence:         0.3,
		MinClusterConfidence:          0.35,
		SimilarityThreshold:           0.85,
		MaxClusterVariance:            0.1,
		MathematicalTolerancePercent:  tol.Percent,
		MathematicalToleranceAbsolute: tol.Absolute,
		SpatialTolerancePixels:        30,
		MinTaxRatePercent:             0,
		MaxTaxRatePercent:             50,
		VerificationThreshold:         0.7,
		LLMWeight:                     1.0,
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, common.NewAppError("CONFIG_ERROR", "read engine config "+path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, common.NewAppError("CONFIG_ERROR", "parse engine config "+path, fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks ranges and names.
func (c Config) Validate() error {
	v := common.NewValidator()
	unit := common.Range(0, 1)
	v.Field("minEvidenceConfidence", c.MinEvidenceConfidence, common.Finite, unit)
	v.Field("minClusterConfidence", c.MinClusterConfidence, common.Finite, unit)
	v.Field("similarityThreshold", c.SimilarityThreshold, common.Finite, unit)
	v.Field("verificationThreshold", c.VerificationThreshold, common.Finite, unit)
	v.Field("maxClusterVariance", c.MaxClusterVariance, common.Finite, common.Range(0, 1e9))
	v.Field("mathematicalTolerancePercent", c.MathematicalTolerancePercent, common.Finite, common.Range(0, 100))
	v.Field("mathematicalToleranceAbsolute", c.MathematicalToleranceAbsolute, common.Finite, common.Range(0, 1e9))
	v.Field("spatialTolerancePixels", c.SpatialTolerancePixels, common.Finite, common.Range(0, 1e6))
	v.Field("minTaxRatePercent", c.MinTaxRatePercent, common.Finite, common.Range(0, 100))
	v.Field("maxTaxRatePercent", c.MaxTaxRatePercent, common.Finite, common.Range(c.MinTaxRatePercent, 100))
	v.Field("llmWeight", c.LLMWeight, common.Finite, common.Range(0, 10))
	for _, name := range sortedKeys(c.SourceWeights) {
		v.Field("sourceWeights."+name, name, knownSource)
		v.Field("sourceWeights."+name, c.SourceWeights[name], common.Finite, common.Range(0, 10))
	}
	for i, name := range c.EnabledSources {
		v.Field(fmt.Sprintf("enabledSources[%d]", i), name, knownSource)
	}
	for _, lang := range sortedKeys(c.ExtraKeywords) {
		v.Field("extraKeywords."+lang, lang, knownLanguage)
		for _, cat := range sortedKeys(c.ExtraKeywords[lang]) {
			v.Field("extraKeywords."+lang+"."+cat, cat, knownCategory)
		}
	}
	if v.HasErrors() {
		return common.NewAppError("CONFIG_ERROR", v.ErrorMessage(), common.ErrValidation)
	}
	return nil
}

func knownSource(field string, value interface{}) *common.ValidationError {
	if s, ok := value.(string); ok {
		if _, ok := constants.ParseSource(s); ok {
			return nil
		}
	}
	return &common.ValidationError{Field: field, Value: value, Message: "unknown source"}
}

func knownLanguage(field string, value interface{}) *common.ValidationError {
	if s, ok := value.(string); ok {
		if _, ok := constants.ParseLanguage(s); ok {
			return nil
		}
	}
	return &common.ValidationError{Field: field, Value: value, Message: "unsupported language"}
}

func knownCategory(field string, value interface{}) *common.ValidationError {
	if s, ok := value.(string); ok {
		for _, cat := range keywords.Categories {
			if string(cat) == s {
				return nil
			}
		}
	}
	return &common.ValidationError{Field: field, Value: value, Message: "unknown keyword category"}
}

// Fingerprint identifies the configuration for result caching. Map keys are
// encoded in sorted order, so equal configurations share a fingerprint.
func (c Config) Fingerprint() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

func (c Config) tolerance() taxtable.Tolerance {
	return taxtable.Tolerance{Percent: c.MathematicalTolerancePercent, Absolute: c.MathematicalToleranceAbsolute}
}

func (c Config) sourceWeights() map[constants.Source]float64 {
	w := constants.DefaultSourceWeights()
	for name, weight := range c.SourceWeights {
		if src, ok := constants.ParseSource(name); ok {
			w[src] = weight
		}
	}
	w[constants.SourceLLM] = c.LLMWeight
	return w
}

func (c Config) collectorConfig() evidence.Config {
	cfg := evidence.DefaultConfig()
	cfg.MinConfidence = c.MinEvidenceConfidence
	cfg.Tolerance = c.tolerance()
	cfg.SpatialTolerance = c.SpatialTolerancePixels
	cfg.MinTaxRate = c.MinTaxRatePercent
	cfg.MaxTaxRate = c.MaxTaxRatePercent
	for _, name := range c.EnabledSources {
		if src, ok := constants.ParseSource(name); ok {
			cfg.Enabled = append(cfg.Enabled, src)
		}
	}
	return cfg
}

func (c Config) fusionConfig() fusion.Config {
	cfg := fusion.DefaultConfig()
	cfg.SourceWeights = c.sourceWeights()
	cfg.SimilarityThreshold = c.SimilarityThreshold
	cfg.MaxClusterVariance = c.MaxClusterVariance
	cfg.Tolerance = c.tolerance()
	return cfg
}

func (c Config) assembleConfig() assemble.Config {
	cfg := assemble.DefaultConfig()
	cfg.MinClusterConfidence = c.MinClusterConfidence
	cfg.VerificationThreshold = c.VerificationThreshold
	cfg.Tolerance = c.tolerance()
	return cfg
}

// applyKeywords extends the registry in a stable order. Names were checked
// by Validate.
func (c Config) applyKeywords(r *keywords.Registry) {
	for _, name := range sortedKeys(c.ExtraKeywords) {
		lang, ok := constants.ParseLanguage(name)
		if !ok {
			continue
		}
		cats := c.ExtraKeywords[name]
		for _, cat := range sortedKeys(cats) {
			r.Extend(lang, keywords.Category(cat), cats[cat]...)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
