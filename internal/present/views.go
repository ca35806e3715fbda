package present

import "github.com/grainco/texture-analyzer/internal/models"

// Mode selects how a result is displayed.
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeImage      Mode = "image"
)

// RenderState is what a result display shows. Exactly one applies.
type RenderState string

const (
	RenderLoading     RenderState = "loading"
	RenderPlaceholder RenderState = "placeholder"
	RenderImage       RenderState = "image"
	RenderStructured  RenderState = "structured"
)

const (
	analysisPlaceholder = "Analysis will appear here"
	imagePlaceholder    = "Image will appear here"
	uploadPrompt        = "Drag & drop or click to upload"
	uploadOverlay       = "Analyzing…"

	// DownloadName is the file name offered for a generated image.
	DownloadName = "generated.png"
)

// Section is one accordion panel of the analysis card.
type Section struct {
	Name   string
	Title  string
	Open   bool
	Items  []string
	Accent string
}

// ResultView is the result display of one stage.
type ResultView struct {
	Mode        Mode
	State       RenderState
	Placeholder string

	ImageURL     string
	DownloadURL  string
	DownloadName string

	Material string
	Chips    []Chip
	Sections []Section
}

// AnalysisResult builds the structured display of the analyze stage.
func AnalysisResult(stage models.Stage[models.Analysis], acc Accordion) ResultView {
	view := ResultView{Mode: ModeStructured, Placeholder: analysisPlaceholder}

	if stage.IsLoading() {
		view.State = RenderLoading
		return view
	}
	analysis, ok := stage.Value()
	if !ok {
		view.State = RenderPlaceholder
		return view
	}

	view.State = RenderStructured
	view.ImageURL = analysis.Preview.URL()
	view.Material = analysis.Material
	view.Chips = SplitColours(analysis.Colour)
	view.Sections = []Section{{
		Name:   SectionProperties,
		Title:  "Key properties",
		Open:   acc.IsOpen(SectionProperties),
		Items:  Bulletize(analysis.Properties),
		Accent: "emerald",
	}}
	if uses := Bulletize(analysis.Uses); len(uses) > 0 {
		view.Sections = append(view.Sections, Section{
			Name:   SectionUses,
			Title:  "Typical uses",
			Open:   acc.IsOpen(SectionUses),
			Items:  uses,
			Accent: "sky",
		})
	}
	return view
}

// GeneratedResult builds the image-only display of the generate stage.
func GeneratedResult(stage models.Stage[models.GeneratedImage]) ResultView {
	view := ResultView{Mode: ModeImage, Placeholder: imagePlaceholder}

	if stage.IsLoading() {
		view.State = RenderLoading
		return view
	}
	img, ok := stage.Value()
	if !ok || img.Preview == "" {
		view.State = RenderPlaceholder
		return view
	}

	view.State = RenderImage
	view.ImageURL = img.Preview.URL()
	view.DownloadURL = img.Preview.DownloadURL()
	view.DownloadName = DownloadName
	return view
}

// UploadView is the upload control of one stage.
type UploadView struct {
	Stage      models.StageName
	Label      string
	Prompt     string
	FileName   string
	PreviewURL string
	HasFile    bool
	Loading    bool
	CanSubmit  bool
	Overlay    string
}

// NewUploadView builds the upload control for stage. The preview stays
// set while loading; the overlay covers it.
func NewUploadView(stage models.StageName, label string, file *models.SelectedFile, loading bool) UploadView {
	view := UploadView{
		Stage:   stage,
		Label:   label,
		Prompt:  uploadPrompt,
		Loading: loading,
	}
	if file != nil {
		view.HasFile = true
		view.FileName = file.Name
		view.PreviewURL = file.Preview.URL()
	}
	view.CanSubmit = view.HasFile && !loading
	if loading {
		view.Overlay = uploadOverlay
	}
	return view
}
