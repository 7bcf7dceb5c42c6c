package handlers

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/captionworks/backend/internal/config"
	"github.com/captionworks/backend/internal/db"
	"github.com/captionworks/backend/internal/keytermgen"
	"github.com/captionworks/backend/internal/library"
	"github.com/captionworks/backend/internal/metadata"
)

// MetadataHandler serves per-identity keyterm lists and speaker maps.
type MetadataHandler struct {
	resolver *library.Resolver
	store    *metadata.Store
	cfg      *config.Config
	database *db.Database
}

func NewMetadataHandler(resolver *library.Resolver, store *metadata.Store, cfg *config.Config, database *db.Database) *MetadataHandler {
	return &MetadataHandler{resolver: resolver, store: store, cfg: cfg, database: database}
}

func (h *MetadataHandler) GetKeyterms(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	keytermsPath, _, err := h.resolver.IdentityPaths(identity)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	terms, err := h.store.LoadKeyterms(keytermsPath)
	if err != nil {
		jsonError(w, "failed to load keyterms: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if terms == nil {
		terms = []string{}
	}
	jsonResponse(w, map[string]interface{}{
		"identity": identity,
		"keyterms": terms,
	}, http.StatusOK)
}

type putKeytermsRequest struct {
	Keyterms []string           `json:"keyterms"`
	Merge    metadata.MergeMode `json:"merge"` // defaults to overwrite
}

func (h *MetadataHandler) PutKeyterms(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	keytermsPath, _, err := h.resolver.IdentityPaths(identity)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	var req putKeytermsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	terms := req.Keyterms
	if req.Merge == metadata.MergePreserve {
		existing, err := h.store.LoadKeyterms(keytermsPath)
		if err != nil {
			jsonError(w, "failed to load keyterms: "+err.Error(), http.StatusInternalServerError)
			return
		}
		terms = metadata.MergeKeyterms(existing, req.Keyterms, metadata.MergePreserve)
	}

	if err := h.store.SaveKeyterms(identity, keytermsPath, terms); err != nil {
		jsonError(w, "failed to save keyterms: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]interface{}{
		"identity": identity,
		"keyterms": terms,
	}, http.StatusOK)
}

type generateKeytermsRequest struct {
	Provider string `json:"provider"` // openai or anthropic
	Model    string `json:"model"`
	Preserve bool   `json:"preserve"`
}

// GenerateKeyterms asks an LLM for keyterms and saves the result.
func (h *MetadataHandler) GenerateKeyterms(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	keytermsPath, _, err := h.resolver.IdentityPaths(identity)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	var req generateKeytermsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Env keys win; keys saved through the settings API are the fallback.
	provider := keytermgen.Provider(req.Provider)
	var apiKey string
	switch provider {
	case keytermgen.ProviderOpenAI:
		apiKey = h.cfg.OpenAIKey
		if apiKey == "" {
			apiKey = h.database.GetSetting("openai_api_key", "")
		}
	case keytermgen.ProviderAnthropic:
		apiKey = h.cfg.AnthropicKey
		if apiKey == "" {
			apiKey = h.database.GetSetting("anthropic_api_key", "")
		}
	default:
		jsonError(w, "unknown provider", http.StatusBadRequest)
		return
	}

	gen, err := keytermgen.New(provider, req.Model, apiKey)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := h.store.LoadKeyterms(keytermsPath)
	if err != nil {
		jsonError(w, "failed to load keyterms: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp, err := gen.Generate(r.Context(), keytermgen.Request{
		ShowName: identity,
		Existing: existing,
		Preserve: req.Preserve,
	})
	if err != nil {
		jsonError(w, "generation failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	if err := h.store.SaveKeyterms(identity, keytermsPath, resp.Keyterms); err != nil {
		jsonError(w, "failed to save keyterms: "+err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, resp, http.StatusOK)
}

type speakerEntry struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func (h *MetadataHandler) GetSpeakers(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	_, speakerMapPath, err := h.resolver.IdentityPaths(identity)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}
	m, err := h.store.LoadSpeakerMap(speakerMapPath)
	if err != nil {
		jsonError(w, "failed to load speaker map: "+err.Error(), http.StatusInternalServerError)
		return
	}

	entries := make([]speakerEntry, 0, len(m))
	for id, name := range m {
		entries = append(entries, speakerEntry{ID: id, Name: name})
	}
	sort.Slice(entries, func(i, k int) bool { return entries[i].ID < entries[k].ID })

	jsonResponse(w, map[string]interface{}{
		"identity": identity,
		"speakers": entries,
	}, http.StatusOK)
}

func (h *MetadataHandler) PutSpeakers(w http.ResponseWriter, r *http.Request) {
	identity := chi.URLParam(r, "identity")
	_, speakerMapPath, err := h.resolver.IdentityPaths(identity)
	if err != nil {
		jsonError(w, err.Error(), http.StatusNotFound)
		return
	}

	var req struct {
		Speakers map[string]string `json:"speakers"` // speaker id -> display name
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	m := make(map[int]string, len(req.Speakers))
	for rawID, name := range req.Speakers {
		id, err := strconv.Atoi(rawID)
		if err != nil || id < 0 {
			jsonError(w, "invalid speaker id: "+rawID, http.StatusBadRequest)
			return
		}
		m[id] = name
	}

	if err := h.store.SaveSpeakerMap(identity, speakerMapPath, m); err != nil {
		jsonError(w, "failed to save speaker map: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
