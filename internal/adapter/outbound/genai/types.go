package genai

// Wire types for the Gemini API long-running video generation endpoints.

type predictRequest struct {
	Instances  []instance `json:"instances"`
	Parameters parameters `json:"parameters"`
}

type instance struct {
	Prompt          string           `json:"prompt"`
	Image           *inlineMedia     `json:"image,omitempty"`
	LastFrame       *inlineMedia     `json:"lastFrame,omitempty"`
	ReferenceImages []referenceImage `json:"referenceImages,omitempty"`
	Video           *inlineMedia     `json:"video,omitempty"`
}

type inlineMedia struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type referenceImage struct {
	Image         inlineMedia `json:"image"`
	ReferenceType string      `json:"referenceType"`
}

type parameters struct {
	AspectRatio      string `json:"aspectRatio,omitempty"`
	Resolution       string `json:"resolution,omitempty"`
	DurationSeconds  int    `json:"durationSeconds,omitempty"`
	NegativePrompt   string `json:"negativePrompt,omitempty"`
	PersonGeneration string `json:"personGeneration,omitempty"`
}

type operation struct {
	Name     string       `json:"name"`
	Done     bool         `json:"done"`
	Response *opResponse  `json:"response,omitempty"`
	Error    *statusError `json:"error,omitempty"`
}

type opResponse struct {
	GenerateVideoResponse *generateVideoResponse `json:"generateVideoResponse,omitempty"`
}

type generateVideoResponse struct {
	GeneratedSamples        []generatedSample `json:"generatedSamples"`
	RAIMediaFilteredCount   int               `json:"raiMediaFilteredCount,omitempty"`
	RAIMediaFilteredReasons []string          `json:"raiMediaFilteredReasons,omitempty"`
}

type generatedSample struct {
	Video struct {
		URI      string `json:"uri"`
		MimeType string `json:"mimeType,omitempty"`
	} `json:"video"`
}

type statusError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

type errorEnvelope struct {
	Error *statusError `json:"error"`
}
