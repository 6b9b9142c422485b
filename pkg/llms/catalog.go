package llms

import "strings"

// ModelInfo describes one entry of the curated model catalog, merged with
// live availability from the runtime.
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Size        string `json:"size"`
	Description string `json:"description"`
	Installed   bool   `json:"installed"`
}

// Catalog returns the curated set of small local models docent offers in
// the model picker. Order is presentation order.
func Catalog() []ModelInfo {
	return []ModelInfo{
		{
			Name:        "gemma:2b",
			DisplayName: "Gemma 2B",
			Size:        "1.7 GB",
			Description: "Google's efficient model, great for general conversations",
		},
		{
			Name:        "phi3",
			DisplayName: "Phi-3 Mini",
			Size:        "2.3 GB",
			Description: "Microsoft's small model, excellent reasoning capabilities",
		},
		{
			Name:        "llama3.2:1b",
			DisplayName: "Llama 3.2 1B",
			Size:        "1.3 GB",
			Description: "Meta's compact model, fast and efficient",
		},
		{
			Name:        "qwen2.5:1.5b",
			DisplayName: "Qwen 2.5 1.5B",
			Size:        "934 MB",
			Description: "Alibaba's multilingual model, supports many languages",
		},
	}
}

// MergeAvailability marks catalog entries whose model (or a tagged variant
// of it) appears in the runtime's installed list. A nil installed list
// leaves everything uninstalled, which is the degraded catalog-only answer
// when the runtime is unreachable.
func MergeAvailability(catalog []ModelInfo, installed []string) []ModelInfo {
	out := make([]ModelInfo, len(catalog))
	copy(out, catalog)
	for i := range out {
		out[i].Installed = modelInstalled(out[i].Name, installed)
	}
	return out
}

// modelInstalled matches "phi3" against both "phi3" and "phi3:latest".
func modelInstalled(name string, installed []string) bool {
	for _, have := range installed {
		if have == name {
			return true
		}
		if base, _, ok := strings.Cut(have, ":"); ok && base == name {
			return true
		}
	}
	return false
}
