// Package workflow owns the two-stage analyze/generate flow of one user.
package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/grainco/texture-analyzer/internal/materialapi"
	"github.com/grainco/texture-analyzer/internal/models"
	"github.com/grainco/texture-analyzer/internal/present"
	"github.com/rs/zerolog/log"
)

// Backend performs the two network calls.
type Backend interface {
	Analyze(ctx context.Context, file materialapi.Upload) (*models.Analysis, error)
	Generate(ctx context.Context, material, base materialapi.Upload) (*materialapi.GeneratedBlob, error)
}

// BlobStore keeps the images behind preview references.
type BlobStore interface {
	SaveBytes(owner, name, contentType string, data []byte) (*models.Blob, error)
	Delete(id string) error
}

// Snapshot is a copy of the workflow state for rendering.
type Snapshot struct {
	SessionID        string                              `json:"sessionId" msgpack:"sessionId"`
	MaterialFile     *models.SelectedFile                `json:"materialFile,omitempty" msgpack:"materialFile,omitempty"`
	BaseFile         *models.SelectedFile                `json:"baseFile,omitempty" msgpack:"baseFile,omitempty"`
	Analysis         models.Stage[models.Analysis]       `json:"analysis" msgpack:"analysis"`
	Generated        models.Stage[models.GeneratedImage] `json:"generated" msgpack:"generated"`
	OpenSection      string                              `json:"openSection" msgpack:"openSection"`
	GenerateUnlocked bool                                `json:"generateUnlocked" msgpack:"generateUnlocked"`
}

// Workflow holds the (file, stage) pair of the analyze and generate
// stages. A mutex serialises transitions; network calls run without it.
type Workflow struct {
	id      string
	backend Backend
	store   BlobStore

	mu            sync.Mutex
	materialFile  *models.SelectedFile
	baseFile      *models.SelectedFile
	analysis      models.Stage[models.Analysis]
	generated     models.Stage[models.GeneratedImage]
	accordion     present.Accordion
	analyzeEpoch  uint64
	generateEpoch uint64

	subMu   sync.Mutex
	subs    map[int]chan Event
	nextSub int
	closed  bool
}

// New creates an idle workflow for session id.
func New(id string, backend Backend, store BlobStore) *Workflow {
	return &Workflow{
		id:        id,
		backend:   backend,
		store:     store,
		analysis:  models.Idle[models.Analysis](),
		generated: models.Idle[models.GeneratedImage](),
		accordion: present.NewAccordion(present.DefaultSection),
		subs:      make(map[int]chan Event),
	}
}

// ID returns the session id the workflow belongs to.
func (w *Workflow) ID() string {
	return w.id
}

// Snapshot returns the current state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workflow) snapshotLocked() Snapshot {
	_, unlocked := w.analysis.Value()
	return Snapshot{
		SessionID:        w.id,
		MaterialFile:     w.materialFile,
		BaseFile:         w.baseFile,
		Analysis:         w.analysis,
		Generated:        w.generated,
		OpenSection:      w.accordion.Open(),
		GenerateUnlocked: unlocked,
	}
}

// SelectFile replaces the selected file of stage. Empty data (a drop
// without a file) is ignored and returns nil, nil.
func (w *Workflow) SelectFile(stage models.StageName, name, contentType string, data []byte) (*models.SelectedFile, error) {
	if len(data) == 0 {
		return nil, nil
	}

	w.mu.Lock()
	err := w.checkSelectableLocked(stage)
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	blob, err := w.store.SaveBytes(w.id, name, contentType, data)
	if err != nil {
		return nil, fmt.Errorf("storing preview: %w", err)
	}
	file := &models.SelectedFile{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(data)),
		Preview:     blob.Ref(),
		Data:        data,
	}

	w.mu.Lock()
	// A request may have started while the preview was being stored.
	if err := w.checkSelectableLocked(stage); err != nil {
		w.mu.Unlock()
		w.discardBlob(blob.ID)
		return nil, err
	}
	if stage == models.StageAnalyze {
		w.materialFile = file
	} else {
		w.baseFile = file
	}
	snap := w.snapshotLocked()
	w.mu.Unlock()

	log.Info().Str("session", w.id).Str("stage", string(stage)).Str("file", name).Int("bytes", len(data)).Msg("file selected")
	w.publish(Event{Type: EventState, Stage: stage, Snapshot: snap})

	return file, nil
}

func (w *Workflow) checkSelectableLocked(stage models.StageName) error {
	switch stage {
	case models.StageAnalyze:
		if w.analysis.IsLoading() {
			return ErrBusy
		}
	case models.StageGenerate:
		if _, ok := w.analysis.Value(); !ok {
			return ErrNoAnalysis
		}
		if w.generated.IsLoading() {
			return ErrBusy
		}
	default:
		return fmt.Errorf("unknown stage: %q", stage)
	}
	return nil
}

func (w *Workflow) discardBlob(id string) {
	if err := w.store.Delete(id); err != nil {
		log.Warn().Err(err).Str("session", w.id).Str("blob", id).Msg("failed to discard image")
	}
}

// ToggleSection opens or closes an accordion section of the analysis card.
func (w *Workflow) ToggleSection(name string) (Snapshot, error) {
	if !present.IsSection(name) {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownSection, name)
	}

	w.mu.Lock()
	if _, ok := w.analysis.Value(); !ok {
		w.mu.Unlock()
		return Snapshot{}, ErrNoAnalysis
	}
	w.accordion.Toggle(name)
	snap := w.snapshotLocked()
	w.mu.Unlock()

	w.publish(Event{Type: EventState, Stage: models.StageAnalyze, Snapshot: snap})
	return snap, nil
}

// StartAnalyze sends the material file to the backend in the background.
// On return the stage is loading and the previous analysis and generated
// image are gone. The channel yields the request error (nil on success)
// and is then closed.
func (w *Workflow) StartAnalyze(ctx context.Context) (<-chan error, error) {
	w.mu.Lock()
	if w.materialFile == nil {
		w.mu.Unlock()
		return nil, ErrNoFile
	}
	if w.analysis.IsLoading() {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	file := w.materialFile
	w.analyzeEpoch++
	w.generateEpoch++
	epoch := w.analyzeEpoch
	w.analysis = models.Loading[models.Analysis]()
	w.generated = models.Idle[models.GeneratedImage]()
	snap := w.snapshotLocked()
	w.mu.Unlock()

	log.Info().Str("session", w.id).Str("file", file.Name).Msg("analysis started")
	w.publish(Event{Type: EventState, Stage: models.StageAnalyze, Snapshot: snap})

	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- w.runAnalyze(ctx, file, epoch)
	}()
	return done, nil
}

// Analyze runs StartAnalyze and waits for the request to finish.
func (w *Workflow) Analyze(ctx context.Context) error {
	done, err := w.StartAnalyze(ctx)
	if err != nil {
		return err
	}
	return <-done
}

func (w *Workflow) runAnalyze(ctx context.Context, file *models.SelectedFile, epoch uint64) error {
	start := time.Now()
	analysis, reqErr := w.backend.Analyze(ctx, materialapi.UploadFromFile(file))

	w.mu.Lock()
	if epoch != w.analyzeEpoch {
		w.mu.Unlock()
		return reqErr
	}
	if reqErr != nil {
		w.analysis = models.Failed[models.Analysis](reqErr.Error())
	} else {
		analysis.Preview = file.Preview
		w.analysis = models.Succeeded(*analysis)
		w.accordion = present.NewAccordion(present.DefaultSection)
	}
	snap := w.snapshotLocked()
	w.mu.Unlock()

	events := []Event{{Type: EventState, Stage: models.StageAnalyze, Snapshot: snap}}
	if reqErr != nil {
		log.Error().Err(reqErr).Str("session", w.id).Dur("took", time.Since(start)).Msg("analysis failed")
		events = append(events, Event{Type: EventError, Stage: models.StageAnalyze, Message: reqErr.Error(), Snapshot: snap})
	} else {
		log.Info().Str("session", w.id).Str("material", analysis.Material).Dur("took", time.Since(start)).Msg("analysis complete")
	}
	w.publish(events...)

	return reqErr
}

// StartGenerate sends the material and base files to the backend in the
// background. It requires a successful analysis and both files.
func (w *Workflow) StartGenerate(ctx context.Context) (<-chan error, error) {
	w.mu.Lock()
	if _, ok := w.analysis.Value(); !ok {
		w.mu.Unlock()
		return nil, ErrNoAnalysis
	}
	if w.materialFile == nil || w.baseFile == nil {
		w.mu.Unlock()
		return nil, ErrNoFile
	}
	if w.generated.IsLoading() {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	material, base := w.materialFile, w.baseFile
	w.generateEpoch++
	epoch := w.generateEpoch
	w.generated = models.Loading[models.GeneratedImage]()
	snap := w.snapshotLocked()
	w.mu.Unlock()

	log.Info().Str("session", w.id).Str("material", material.Name).Str("base", base.Name).Msg("generation started")
	w.publish(Event{Type: EventState, Stage: models.StageGenerate, Snapshot: snap})

	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- w.runGenerate(ctx, material, base, epoch)
	}()
	return done, nil
}

// Generate runs StartGenerate and waits for the request to finish.
func (w *Workflow) Generate(ctx context.Context) error {
	done, err := w.StartGenerate(ctx)
	if err != nil {
		return err
	}
	return <-done
}

func (w *Workflow) runGenerate(ctx context.Context, material, base *models.SelectedFile, epoch uint64) error {
	start := time.Now()
	var img *models.GeneratedImage
	blob, reqErr := w.backend.Generate(ctx, materialapi.UploadFromFile(material), materialapi.UploadFromFile(base))
	if reqErr == nil {
		saved, err := w.store.SaveBytes(w.id, present.DownloadName, blob.ContentType, blob.Data)
		if err != nil {
			reqErr = fmt.Errorf("storing generated image: %w", err)
		} else {
			img = &models.GeneratedImage{Preview: saved.Ref(), ContentType: saved.ContentType, Size: saved.Size}
		}
	}

	w.mu.Lock()
	if epoch != w.generateEpoch {
		w.mu.Unlock()
		if img != nil {
			w.discardBlob(string(img.Preview))
		}
		log.Info().Str("session", w.id).Msg("generation result discarded, material changed")
		return reqErr
	}
	if reqErr != nil {
		w.generated = models.Failed[models.GeneratedImage](reqErr.Error())
	} else {
		w.generated = models.Succeeded(*img)
	}
	snap := w.snapshotLocked()
	w.mu.Unlock()

	events := []Event{{Type: EventState, Stage: models.StageGenerate, Snapshot: snap}}
	if reqErr != nil {
		log.Error().Err(reqErr).Str("session", w.id).Dur("took", time.Since(start)).Msg("generation failed")
		events = append(events, Event{Type: EventError, Stage: models.StageGenerate, Message: reqErr.Error(), Snapshot: snap})
	} else {
		log.Info().Str("session", w.id).Int64("bytes", img.Size).Dur("took", time.Since(start)).Msg("generation complete")
	}
	w.publish(events...)

	return reqErr
}
