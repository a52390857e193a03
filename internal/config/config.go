// Package config loads the batch input JSON, the optional YAML settings
// file, and the provider credentials from the environment. Precedence is
// explicit value over environment, matching the rest of the configuration
// surface.
package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/hyperifyio/contentforge/internal/jobmodel"
)

// Credentials carries the provider secrets. The environment variable names
// are part of the ABI.
type Credentials struct {
	TextLLMKey            string
	ImageLLMKey           string
	SERPPrimaryKey        string
	SERPSecondaryLogin    string
	SERPSecondaryPassword string
}

// ApplyEnv reads the provider secrets, leaving already-set fields
// untouched so explicit values win over the environment.
func (c *Credentials) ApplyEnv() {
	if c.TextLLMKey == "" {
		c.TextLLMKey = os.Getenv("TEXT_LLM_API_KEY")
	}
	if c.ImageLLMKey == "" {
		c.ImageLLMKey = os.Getenv("IMAGE_LLM_API_KEY")
	}
	if c.SERPPrimaryKey == "" {
		c.SERPPrimaryKey = os.Getenv("SERP_IMAGES_PRIMARY_KEY")
	}
	if c.SERPSecondaryLogin == "" {
		c.SERPSecondaryLogin = os.Getenv("SERP_SECONDARY_LOGIN")
	}
	if c.SERPSecondaryPassword == "" {
		c.SERPSecondaryPassword = os.Getenv("SERP_SECONDARY_PASSWORD")
	}
}

// Settings is the optional YAML file for endpoints and models; everything
// has a usable default.
type Settings struct {
	TextModel    string `yaml:"text_model"`
	ImageModel   string `yaml:"image_model"`
	LLMBaseURL   string `yaml:"llm_base_url"`
	CacheDir     string `yaml:"cache_dir"`
	ForbidDashes bool   `yaml:"forbid_dashes"`
}

// LoadSettings reads a YAML settings file. A missing path returns zero
// settings, not an error.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, jobmodel.Wrap(jobmodel.KindIO, "config: read settings", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, jobmodel.Wrap(jobmodel.KindInputInvalid, "config: parse settings", err)
	}
	return s, nil
}

// rawBatch mirrors the wire format, where each keyword may be a bare string
// or a full KeywordSpec object.
type rawBatch struct {
	Keywords          []json.RawMessage `json:"keywords"`
	CompanyURL        string            `json:"company_url"`
	Language          string            `json:"language"`
	Market            string            `json:"market"`
	DefaultWordCount  int               `json:"default_word_count"`
	BatchInstructions string            `json:"batch_instructions"`
	MaxParallel       int               `json:"max_parallel"`
	SkipImages        bool              `json:"skip_images"`
	ExportFormats     []string          `json:"export_formats"`
}

// ParseBatch decodes and validates batch input JSON.
func ParseBatch(data []byte) (jobmodel.BatchInput, error) {
	var raw rawBatch
	if err := json.Unmarshal(data, &raw); err != nil {
		return jobmodel.BatchInput{}, jobmodel.Wrap(jobmodel.KindInputInvalid, "batch input: malformed JSON", err)
	}

	in := jobmodel.BatchInput{
		CompanyURL:        raw.CompanyURL,
		Language:          raw.Language,
		Market:            raw.Market,
		DefaultWordCount:  raw.DefaultWordCount,
		BatchInstructions: raw.BatchInstructions,
		MaxParallel:       raw.MaxParallel,
		SkipImages:        raw.SkipImages,
		ExportFormats:     raw.ExportFormats,
	}

	for i, rk := range raw.Keywords {
		var s string
		if err := json.Unmarshal(rk, &s); err == nil {
			in.Keywords = append(in.Keywords, jobmodel.KeywordSpec{Keyword: s})
			continue
		}
		var spec jobmodel.KeywordSpec
		if err := json.Unmarshal(rk, &spec); err != nil {
			return jobmodel.BatchInput{}, jobmodel.New(jobmodel.KindInputInvalid, "batch input: keyword "+strconv.Itoa(i)+" is neither a string nor an object")
		}
		in.Keywords = append(in.Keywords, spec)
	}

	if err := Validate(&in); err != nil {
		return jobmodel.BatchInput{}, err
	}
	in.Normalize()
	return in, nil
}

// LoadBatch reads and parses a batch input file.
func LoadBatch(path string) (jobmodel.BatchInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return jobmodel.BatchInput{}, jobmodel.Wrap(jobmodel.KindIO, "batch input: read file", err)
	}
	return ParseBatch(data)
}

// Validate enforces the structural requirements of the batch input.
func Validate(in *jobmodel.BatchInput) error {
	if len(in.Keywords) == 0 {
		return jobmodel.New(jobmodel.KindInputInvalid, "batch input: keywords must not be empty")
	}
	for i, k := range in.Keywords {
		if strings.TrimSpace(k.Keyword) == "" {
			return jobmodel.New(jobmodel.KindInputInvalid, "batch input: keyword "+strconv.Itoa(i)+" is empty")
		}
	}
	if !strings.HasPrefix(in.CompanyURL, "http://") && !strings.HasPrefix(in.CompanyURL, "https://") {
		return jobmodel.New(jobmodel.KindInputInvalid, "batch input: company_url must be an absolute HTTP(S) URL")
	}
	if in.Language != "" {
		if _, err := language.Parse(in.Language); err != nil {
			return jobmodel.Wrap(jobmodel.KindInputInvalid, "batch input: language is not a valid BCP-47 tag", err)
		}
	}
	if in.Market != "" && len(in.Market) != 2 {
		return jobmodel.New(jobmodel.KindInputInvalid, "batch input: market must be an ISO-3166 alpha-2 code")
	}
	if in.DefaultWordCount < 0 {
		return jobmodel.New(jobmodel.KindInputInvalid, "batch input: default_word_count must not be negative")
	}
	for _, f := range in.ExportFormats {
		switch f {
		case "html", "markdown", "json":
		default:
			return jobmodel.New(jobmodel.KindInputInvalid, "batch input: unknown export format "+f)
		}
	}
	return nil
}
