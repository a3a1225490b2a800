// Package catalog holds the immutable table of chat models the server can
// route to, keyed by the short ids the API exposes.
package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownModel is returned when a model id has no catalog entry. An
// unknown id is an error, never a default.
var ErrUnknownModel = errors.New("unknown model")

// Descriptor describes one routable model. Immutable once registered.
type Descriptor struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Category string `json:"category"`
}

// Catalog is a lookup table of model descriptors.
type Catalog struct {
	models map[string]Descriptor
}

// New creates a Catalog from the given descriptors.
func New(descriptors []Descriptor) *Catalog {
	models := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		models[d.ID] = d
	}
	return &Catalog{models: models}
}

// Default returns the built-in catalog of HuggingFace-routed models.
func Default() *Catalog {
	return New(builtin)
}

// Resolve looks up a model by id.
func (c *Catalog) Resolve(id string) (Descriptor, error) {
	d, ok := c.models[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownModel, id)
	}
	return d, nil
}

// All returns every descriptor sorted by id.
func (c *Catalog) All() []Descriptor {
	out := make([]Descriptor, 0, len(c.models))
	for _, d := range c.models {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByCategory groups all descriptors by their category, each group sorted by id.
func (c *Catalog) ByCategory() map[string][]Descriptor {
	grouped := make(map[string][]Descriptor)
	for _, d := range c.All() {
		grouped[d.Category] = append(grouped[d.Category], d)
	}
	return grouped
}

var builtin = []Descriptor{
	{ID: "deepseek-v3.2-exp", Name: "DeepSeek V3.2 Exp", Provider: "huggingface", Model: "deepseek-ai/DeepSeek-V3.2-Exp:novita", Category: "DeepSeek"},
	{ID: "deepseek-r1", Name: "DeepSeek R1", Provider: "huggingface", Model: "deepseek-ai/DeepSeek-R1:novita", Category: "DeepSeek"},
	{ID: "deepseek-r1-distill-qwen-32b", Name: "DeepSeek R1 Distill Qwen 32B", Provider: "huggingface", Model: "deepseek-ai/DeepSeek-R1-Distill-Qwen-32B", Category: "DeepSeek"},
	{ID: "deepseek-r1-distill-llama-70b", Name: "DeepSeek R1 Distill Llama 70B", Provider: "huggingface", Model: "deepseek-ai/DeepSeek-R1-Distill-Llama-70B", Category: "DeepSeek"},
	{ID: "gpt-oss-120b", Name: "GPT-OSS 120B", Provider: "huggingface", Model: "openai/gpt-oss-120b:groq", Category: "OpenAI OSS"},
	{ID: "gpt-oss-20b", Name: "GPT-OSS 20B", Provider: "huggingface", Model: "openai/gpt-oss-20b", Category: "OpenAI OSS"},
	{ID: "llama-4-scout", Name: "Llama 4 Scout 17B", Provider: "huggingface", Model: "meta-llama/Llama-4-Scout-17B-16E-Instruct:groq", Category: "Llama"},
	{ID: "llama-3.3-70b", Name: "Llama 3.3 70B Instruct", Provider: "huggingface", Model: "meta-llama/Llama-3.3-70B-Instruct:groq", Category: "Llama"},
	{ID: "llama-3.2-1b", Name: "Llama 3.2 1B Instruct", Provider: "huggingface", Model: "meta-llama/Llama-3.2-1B-Instruct:novita", Category: "Llama"},
	{ID: "llama-3.2-3b", Name: "Llama 3.2 3B Instruct", Provider: "huggingface", Model: "meta-llama/Llama-3.2-3B-Instruct:novita", Category: "Llama"},
	{ID: "llama-3.1-8b", Name: "Llama 3.1 8B Instruct", Provider: "huggingface", Model: "meta-llama/Llama-3.1-8B-Instruct:novita", Category: "Llama"},
	{ID: "llama-4-maverick-fp8", Name: "Llama 4 Maverick 17B FP8", Provider: "huggingface", Model: "meta-llama/Llama-4-Maverick-17B-128E-Instruct-FP8:novita", Category: "Llama"},
	{ID: "llama-4-maverick-groq", Name: "Llama 4 Maverick 17B (Groq)", Provider: "huggingface", Model: "meta-llama/Llama-4-Maverick-17B-128E-Instruct:groq", Category: "Llama"},
	{ID: "mistral-7b-instruct", Name: "Mistral 7B Instruct v0.2", Provider: "huggingface", Model: "mistralai/Mistral-7B-Instruct-v0.2:featherless-ai", Category: "Mistral"},
	{ID: "qwen-3-vl-thinking", Name: "Qwen 3 VL 235B Thinking", Provider: "huggingface", Model: "Qwen/Qwen3-VL-235B-A22B-Thinking:novita", Category: "Qwen"},
	{ID: "qwen-3-vl-instruct", Name: "Qwen 3 VL 235B Instruct", Provider: "huggingface", Model: "Qwen/Qwen3-VL-235B-A22B-Instruct:novita", Category: "Qwen"},
	{ID: "qwen-2.5-7b", Name: "Qwen 2.5 7B Instruct", Provider: "huggingface", Model: "Qwen/Qwen2.5-7B-Instruct:together", Category: "Qwen"},
	{ID: "qwen-2.5-vl-7b", Name: "Qwen 2.5 VL 7B Instruct", Provider: "huggingface", Model: "Qwen/Qwen2.5-VL-7B-Instruct:hyperbolic", Category: "Qwen"},
}
