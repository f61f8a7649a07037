package memo

import "errors"

// Error kinds shared by every voxmemo package. Lower layers wrap these with
// context; callers test with errors.Is.
var (
	ErrPermissionDenied   = errors.New("memo: microphone permission denied")
	ErrRecordingFailed    = errors.New("memo: recording failed")
	ErrExtractionFailed   = errors.New("memo: audio extraction failed")
	ErrModelNotLoaded     = errors.New("memo: model not loaded")
	ErrBackendFailure     = errors.New("memo: transcription backend failure")
	ErrPersistenceFailure = errors.New("memo: persistence failure")
	ErrNotFound           = errors.New("memo: not found")
)

var messages = map[string]map[error]string{
	"sv": {
		ErrPermissionDenied:   "Mikrofontillstånd krävs för inspelning.",
		ErrRecordingFailed:    "Inspelningen misslyckades.",
		ErrExtractionFailed:   "Kunde inte bearbeta ljudfilen.",
		ErrModelNotLoaded:     "AI-modellen är inte laddad.",
		ErrBackendFailure:     "Transkriberingen misslyckades.",
		ErrPersistenceFailure: "Kunde inte spara eller läsa transkriberingen.",
		ErrNotFound:           "Transkriberingen hittades inte.",
	},
	"en": {
		ErrPermissionDenied:   "Microphone permission is required to record.",
		ErrRecordingFailed:    "The recording failed.",
		ErrExtractionFailed:   "The audio file could not be processed.",
		ErrModelNotLoaded:     "The speech model is not loaded.",
		ErrBackendFailure:     "Transcription failed.",
		ErrPersistenceFailure: "The transcription could not be saved or read.",
		ErrNotFound:           "The transcription was not found.",
	},
}

var unknownMessage = map[string]string{
	"sv": "Ett oväntat fel inträffade.",
	"en": "An unexpected error occurred.",
}

// Message maps err to one short user-facing sentence in lang ("sv" or
// "en", anything else falls back to "sv"). Internal details are never
// included. A nil error yields "".
func Message(err error, lang string) string {
	if err == nil {
		return ""
	}
	table, ok := messages[lang]
	if !ok {
		lang = "sv"
		table = messages[lang]
	}
	// Order matters: the most specific kind wins when an error wraps more
	// than one.
	for _, kind := range []error{
		ErrPermissionDenied,
		ErrModelNotLoaded,
		ErrExtractionFailed,
		ErrRecordingFailed,
		ErrNotFound,
		ErrPersistenceFailure,
		ErrBackendFailure,
	} {
		if errors.Is(err, kind) {
			return table[kind]
		}
	}
	return unknownMessage[lang]
}
