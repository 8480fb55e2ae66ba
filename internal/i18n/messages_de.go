package i18n

// germanMessages contains all German translations
var germanMessages = map[string]string{
	"error.not_found":           "Ungültige Track-ID",
	"error.invalid_stream_url":  "Dieser Track kann nicht gestreamt werden.",
	"error.degenerate_waveform": "Die Wellenform dieses Tracks ist stumm.",
	"error.transient_upstream":  "SoundCloud verarbeitet diesen Track noch. Bitte gleich noch einmal versuchen.",
	"error.unreachable":         "SoundCloud ist nicht erreichbar. Bitte erneut versuchen.",

	"error.stale":          "Eine neuere Anfrage für dieses Feld hat diese ersetzt.",
	"error.rate_limited":   "Zu viele Anfragen. Bitte %d Sekunden warten.",
	"error.not_configured": "Die App ist nicht konfiguriert. Bitte zuerst eine SoundCloud Client-ID hinterlegen.",
	"error.bad_request":    "Die Anfrage konnte nicht gelesen werden.",
	"error.field_empty":    "Dieses Feld enthält noch keine Track-Metadaten.",
	"error.generic":        "Etwas ist schiefgelaufen. Bitte erneut versuchen.",

	"validation.reference": "Bitte eine gültige Track-ID eingeben.",
	"validation.client_id": "Bitte eine gültige Client-ID angeben!",

	"success.config_saved":      "Konfiguration gespeichert.",
	"success.reference_updated": "Track-Referenz aktualisiert.",
	"success.generated":         "Metadaten für %s erzeugt (%d Samples).",
}
