package dto

// VariantRequest asks the delivery engine for a media asset matching a cue.
type VariantRequest struct {
	PersonaID string `json:"persona_id" binding:"required"`
	Cue       string `json:"cue" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
	Kind      string `json:"kind"`
	IdemKey   string `json:"idem_key"`
}

// VariantResponse is the result of a variant request.
type VariantResponse struct {
	AssetURL    string `json:"asset_url"`
	VariantID   string `json:"variant_id"`
	PromptKeyID string `json:"prompt_key_id"`
	CacheHit    bool   `json:"cache_hit"`
}

// LocationVariantRequest asks for a location-tagged asset; the engine
// picks the concrete location from the group's catalogue.
type LocationVariantRequest struct {
	PersonaID string `json:"persona_id" binding:"required"`
	Group     string `json:"group" binding:"required"`
	Mood      string `json:"mood" binding:"required"`
	UserID    string `json:"user_id" binding:"required"`
	Kind      string `json:"kind"`
	IdemKey   string `json:"idem_key"`
}

// LocationVariantResponse is the result of a location variant request.
type LocationVariantResponse struct {
	AssetURL         string `json:"asset_url"`
	VariantID        string `json:"variant_id"`
	PromptKeyID      string `json:"prompt_key_id"`
	SelectedLocation string `json:"selected_location"`
}

// MarkSeenRequest is the out-of-band delivery acknowledgement, for flows
// where display and selection are decoupled.
type MarkSeenRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	VariantID string `json:"variant_id" binding:"required"`
}

// StyleProfileRequest creates or updates a persona's style profile.
type StyleProfileRequest struct {
	BaseStyleRef   string                 `json:"base_style_ref" binding:"required"`
	StyleModifiers []string               `json:"style_modifiers"`
	Palette        map[string]interface{} `json:"palette"`
	NegativeTerms  []string               `json:"negative_terms"`
	MotionModule   string                 `json:"motion_module"`
	Extra          map[string]interface{} `json:"extra"`
}
