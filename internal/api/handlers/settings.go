package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/captionworks/backend/internal/db"
)

// settingsKeys defines which keys are allowed and their display metadata.
// Every key here is read back somewhere: the option defaults feed batch
// submission, the LLM keys feed keyterm generation.
var settingsKeys = []SettingDef{
	{Key: "default_model", Label: "Default Model", Group: "transcription", Placeholder: "nova-3", Secret: false},
	{Key: "default_language", Label: "Default Language", Group: "transcription", Placeholder: "en", Secret: false},
	{Key: "profanity_filter", Label: "Profanity Filter", Group: "transcription", Placeholder: "off", Secret: false},
	{Key: "openai_api_key", Label: "OpenAI API Key", Group: "keyterms", Placeholder: "sk-...", Secret: true},
	{Key: "anthropic_api_key", Label: "Anthropic API Key", Group: "keyterms", Placeholder: "sk-ant-...", Secret: true},
}

type SettingDef struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Group       string `json:"group"`
	Placeholder string `json:"placeholder"`
	Secret      bool   `json:"secret"`
}

type SettingsHandler struct {
	database *db.Database
}

func NewSettingsHandler(database *db.Database) *SettingsHandler {
	return &SettingsHandler{database: database}
}

const mask = "••••••••"

// GetSettings returns all settings (secrets are masked)
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.database.GetAllSettings()
	if err != nil {
		jsonError(w, "failed to load settings", http.StatusInternalServerError)
		return
	}

	type SettingResponse struct {
		SettingDef
		Value    string `json:"value"`
		HasValue bool   `json:"has_value"`
	}

	var result []SettingResponse
	for _, def := range settingsKeys {
		val := all[def.Key]
		hasValue := val != ""
		if def.Secret && hasValue {
			// Show only last 4 chars
			if len(val) > 4 {
				val = mask + val[len(val)-4:]
			} else {
				val = mask
			}
		}
		result = append(result, SettingResponse{
			SettingDef: def,
			Value:      val,
			HasValue:   hasValue,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// UpdateSettings saves settings from the request body
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var updates map[string]string
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	allowed := make(map[string]bool)
	for _, def := range settingsKeys {
		allowed[def.Key] = true
	}

	for key, value := range updates {
		if !allowed[key] {
			continue
		}
		// A masked value is the echo of GetSettings, not a new secret.
		if strings.HasPrefix(value, mask) {
			continue
		}
		if err := h.database.SetSetting(key, value); err != nil {
			jsonError(w, "failed to save setting: "+key, http.StatusInternalServerError)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
