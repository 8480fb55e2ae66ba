package i18n

// englishMessages contains all English translations
var englishMessages = map[string]string{
	// Resolution failures, keyed by error kind
	"error.not_found":           "Invalid track id",
	"error.invalid_stream_url":  "This track cannot be streamed.",
	"error.degenerate_waveform": "The waveform of this track is silent.",
	"error.transient_upstream":  "SoundCloud is still processing this track. Please try again in a moment.",
	"error.unreachable":         "SoundCloud could not be reached. Please try again.",

	// Request handling
	"error.stale":          "A newer request for this field replaced this one.",
	"error.rate_limited":   "Too many requests. Please wait %d seconds.",
	"error.not_configured": "The app is not configured. Add a SoundCloud client ID first.",
	"error.bad_request":    "The request could not be read.",
	"error.field_empty":    "This field has no track metadata yet.",
	"error.generic":        "Something went wrong. Please try again.",

	// Input validation
	"validation.reference": "Enter valid track ID.",
	"validation.client_id": "You must provide a valid client ID!",

	// Confirmations
	"success.config_saved":      "Configuration saved.",
	"success.reference_updated": "Track reference updated.",
	"success.generated":         "Generated metadata for %s (%d samples).",
}
