package models

// ImageRef is the id of a blob in the preview store.
type ImageRef string

// URL returns the path the image is served from.
func (r ImageRef) URL() string {
	if r == "" {
		return ""
	}
	return "/images/" + string(r)
}

// DownloadURL returns the path serving the image as an attachment.
func (r ImageRef) DownloadURL() string {
	if r == "" {
		return ""
	}
	return "/images/" + string(r) + "/download"
}

// Analysis is the material classification returned by the backend,
// merged with the preview of the file that was analyzed.
type Analysis struct {
	Material   string   `json:"Material" msgpack:"Material"`
	Colour     string   `json:"Colour,omitempty" msgpack:"Colour,omitempty"`
	Properties string   `json:"Properties,omitempty" msgpack:"Properties,omitempty"`
	Uses       string   `json:"Uses,omitempty" msgpack:"Uses,omitempty"`
	Preview    ImageRef `json:"preview" msgpack:"preview"`
}

// GeneratedImage is the texture image produced by the generate stage.
type GeneratedImage struct {
	Preview     ImageRef `json:"preview" msgpack:"preview"`
	ContentType string   `json:"contentType" msgpack:"contentType"`
	Size        int64    `json:"size" msgpack:"size"`
}
