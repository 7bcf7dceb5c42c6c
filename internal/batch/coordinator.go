package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/captionworks/backend/internal/captions"
	"github.com/captionworks/backend/internal/cost"
	"github.com/captionworks/backend/internal/deepgram"
	"github.com/captionworks/backend/internal/keytermgen"
	"github.com/captionworks/backend/internal/library"
	"github.com/captionworks/backend/internal/media"
	"github.com/captionworks/backend/internal/metadata"
)

// Transcriber is the external speech-to-text provider.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, opts deepgram.Options) (*deepgram.Result, error)
}

// KeytermGenerator produces keyterms for an identity via an LLM.
type KeytermGenerator interface {
	Generate(ctx context.Context, req keytermgen.Request) (*keytermgen.Response, error)
}

// Extractor pulls a temp audio file out of a media file. The coordinator
// removes the returned file on every exit path.
type Extractor func(ctx context.Context, mediaPath string) (string, error)

// Prober returns a media file's duration in seconds for cost estimation.
type Prober func(ctx context.Context, mediaPath string) (float64, error)

// Settings exposes operator-stored option defaults; satisfied by db.Database.
// Explicit env/file configuration wins over stored settings.
type Settings interface {
	GetSetting(key, defaultVal string) string
}

// Config carries coordinator tuning and batch option defaults.
type Config struct {
	Workers         int
	CallTimeout     time.Duration
	Model           string
	Language        string
	ProfanityFilter string
}

// Deps are the coordinator's collaborators. Resolver, Metadata and Transcriber
// are required; the rest default to the real implementations (or to no-ops).
type Deps struct {
	Resolver    *library.Resolver
	Metadata    *metadata.Store
	Transcriber Transcriber
	Extractor   Extractor
	Prober      Prober
	Keyterms    KeytermGenerator
	Store       Store
	Settings    Settings
}

type work struct {
	b *Batch
	j *Job
}

// Coordinator schedules jobs across a bounded worker pool and aggregates
// batch state. One job's failure never touches its siblings.
type Coordinator struct {
	cfg  Config
	deps Deps
	hub  *Hub
	rate func(model string) float64

	mu      sync.RWMutex
	batches map[string]*Batch

	queue  chan work
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator creates and starts the worker pool.
func NewCoordinator(cfg Config, deps Deps) *Coordinator {
	if cfg.Workers < 1 {
		cfg.Workers = 2
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Minute
	}
	if deps.Extractor == nil {
		deps.Extractor = media.ExtractAudio
	}
	if deps.Prober == nil {
		deps.Prober = media.ProbeDuration
	}
	if deps.Store == nil {
		deps.Store = NopStore{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		cfg:     cfg,
		deps:    deps,
		hub:     NewHub(),
		rate:    cost.RateForModel,
		batches: make(map[string]*Batch),
		queue:   make(chan work, 64),
		ctx:     ctx,
		cancel:  cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
	return c
}

// Hub exposes the progress event hub for subscribers.
func (c *Coordinator) Hub() *Hub { return c.hub }

// Stop shuts the worker pool down. Queued jobs stop being picked up; the
// coordinator does not wait for in-flight provider calls.
func (c *Coordinator) Stop() {
	c.cancel()
	c.wg.Wait()
}

// Submit creates one job per path and enqueues the batch. Input order is
// preserved for reporting; execution order is up to the pool.
func (c *Coordinator) Submit(paths []string, opts Options) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("no files in batch")
	}
	c.normalize(&opts)

	b := newBatch(uuid.New().String(), opts)
	now := time.Now()
	for _, path := range paths {
		b.jobs = append(b.jobs, &Job{
			ID:        uuid.New().String(),
			BatchID:   b.ID,
			Path:      path,
			State:     StatePending,
			CreatedAt: now,
		})
	}

	if err := c.deps.Store.SaveBatch(b.ID, opts, b.CreatedAt); err != nil {
		return "", fmt.Errorf("persist batch: %w", err)
	}
	for _, j := range b.jobs {
		if err := c.deps.Store.SaveJob(*j); err != nil {
			return "", fmt.Errorf("persist job: %w", err)
		}
	}

	c.mu.Lock()
	c.batches[b.ID] = b
	c.mu.Unlock()

	log.Printf("[batch] %s submitted: %d files, model=%s", b.ID, len(paths), opts.Model)

	// Feed the queue off the caller's goroutine so Submit never blocks on a
	// full queue.
	go func() {
		for _, j := range b.jobs {
			select {
			case c.queue <- work{b: b, j: j}:
			case <-c.ctx.Done():
				return
			}
		}
	}()

	return b.ID, nil
}

// normalize resolves unset options through the defaults chain: request value,
// then env/file configuration, then the stored settings, then built-ins.
func (c *Coordinator) normalize(opts *Options) {
	opts.Model = firstOf(opts.Model, c.cfg.Model, c.setting("default_model"), "nova-3")
	opts.Language = firstOf(opts.Language, c.cfg.Language, c.setting("default_language"), "en")
	opts.ProfanityFilter = firstOf(opts.ProfanityFilter, c.cfg.ProfanityFilter, c.setting("profanity_filter"), "off")
	if opts.KeytermMerge == "" {
		opts.KeytermMerge = metadata.MergePreserve
	}
}

func (c *Coordinator) setting(key string) string {
	if c.deps.Settings == nil {
		return ""
	}
	return c.deps.Settings.GetSetting(key, "")
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Status returns a consistent snapshot of one batch.
func (c *Coordinator) Status(batchID string) (Snapshot, bool) {
	c.mu.RLock()
	b, ok := c.batches[batchID]
	c.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return b.Snapshot(), true
}

// List returns snapshots of every known batch, newest first.
func (c *Coordinator) List() []Snapshot {
	c.mu.RLock()
	snaps := make([]Snapshot, 0, len(c.batches))
	for _, b := range c.batches {
		snaps = append(snaps, b.Snapshot())
	}
	c.mu.RUnlock()
	sort.Slice(snaps, func(i, k int) bool { return snaps[i].CreatedAt.After(snaps[k].CreatedAt) })
	return snaps
}

// CancelBatch sets the cooperative cancellation flag. In-flight provider calls
// run to completion (and are billed); their results are discarded.
func (c *Coordinator) CancelBatch(batchID string) bool {
	c.mu.RLock()
	b, ok := c.batches[batchID]
	c.mu.RUnlock()
	if !ok {
		return false
	}
	b.Cancel()
	log.Printf("[batch] %s cancellation requested", batchID)
	return true
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case w := <-c.queue:
			c.runJob(w.b, w.j)
		}
	}
}

// runJob drives one file through the pipeline. Cancellation is observed only
// at the checkpoints between steps, never mid-step.
func (c *Coordinator) runJob(b *Batch, j *Job) {
	if kind := b.shortCircuited(); kind != KindNone {
		c.fail(b, j, kind, errors.New("skipped remaining calls: provider rejected an earlier call in this batch"))
		return
	}
	if b.isCancelled() {
		c.cancelJob(b, j)
		return
	}

	resolved, err := c.deps.Resolver.Resolve(j.Path)
	if err != nil {
		c.fail(b, j, KindInput, err)
		return
	}
	c.apply(b, j, func(j *Job) {
		j.Identity = resolved.Identity
		j.OutputPath = resolved.OutputPath
		if b.Options.Diarize {
			j.TranscriptPath = resolved.TranscriptPath
		}
	})

	if _, err := os.Stat(j.Path); err != nil {
		c.fail(b, j, KindInput, fmt.Errorf("file not found: %s", j.Path))
		return
	}

	// Pure skip check: outputs already present and force not set. Zero cost,
	// no provider call, and the reason resubmitted batches bill nothing.
	if !b.Options.Force && outputsExist(resolved, b.Options.Diarize) {
		log.Printf("[batch] %s skipping %s (output exists)", b.ID, j.Path)
		c.transition(b, j, StateSkipped)
		return
	}

	rate := c.rate(b.Options.Model)
	if dur, err := c.deps.Prober(c.ctx, j.Path); err == nil {
		c.apply(b, j, func(j *Job) {
			j.DurationSeconds = dur
			j.EstimatedCost = cost.Estimate(dur, rate)
		})
	} else {
		log.Printf("[batch] %s probe failed for %s: %v", b.ID, j.Path, err)
	}

	keyterms := c.loadKeyterms(b, resolved)
	var speakerMap map[int]string
	if b.Options.Diarize {
		speakerMap, err = c.deps.Metadata.LoadSpeakerMap(resolved.SpeakerMapPath)
		if err != nil {
			log.Printf("[batch] %s speaker map for %s: %v", b.ID, resolved.Identity, err)
			speakerMap = map[int]string{}
		}
	}

	if b.isCancelled() {
		c.cancelJob(b, j)
		return
	}
	if !c.transition(b, j, StateExtracting) {
		return
	}
	audioPath, err := c.deps.Extractor(c.ctx, j.Path)
	if err != nil {
		c.fail(b, j, KindInput, err)
		return
	}
	defer os.Remove(audioPath)

	if b.isCancelled() {
		c.cancelJob(b, j)
		return
	}
	if !c.transition(b, j, StateTranscribing) {
		return
	}
	callCtx, done := context.WithTimeout(c.ctx, c.cfg.CallTimeout)
	result, err := c.deps.Transcriber.Transcribe(callCtx, audioPath, deepgram.Options{
		Model:           b.Options.Model,
		Language:        b.Options.Language,
		Diarize:         b.Options.Diarize,
		SmartFormat:     true,
		Punctuate:       true,
		Utterances:      true,
		ProfanityFilter: b.Options.ProfanityFilter,
		Keyterms:        keyterms,
	})
	done()

	// Cost is incurred the moment the provider bills a call, not at job
	// completion. Record it before looking at the error.
	if result != nil && result.BilledSeconds > 0 {
		c.apply(b, j, func(j *Job) {
			j.BilledSeconds = result.BilledSeconds
			j.ActualCost = cost.Estimate(result.BilledSeconds, rate)
		})
	}
	if err != nil {
		kind := classifyProviderError(err)
		if kind == KindProviderAuth || kind == KindProviderQuota {
			b.setShortCircuit(kind)
		}
		c.fail(b, j, kind, err)
		return
	}

	// The call above completed and was billed even if cancellation arrived
	// while it ran; the result is discarded, the cost stays on the job.
	if b.isCancelled() {
		c.cancelJob(b, j)
		return
	}
	if !c.transition(b, j, StateWriting) {
		return
	}
	words := captions.FilterProfanity(result.Words, b.Options.ProfanityFilter)
	if err := os.WriteFile(resolved.OutputPath, []byte(captions.RenderSRT(words)), 0644); err != nil {
		c.fail(b, j, KindPostProcessing, fmt.Errorf("write captions: %w", err))
		return
	}
	if b.Options.Diarize {
		transcript := captions.RenderTranscript(words, speakerMap, time.Now())
		if err := os.WriteFile(resolved.TranscriptPath, []byte(transcript), 0644); err != nil {
			c.fail(b, j, KindPostProcessing, fmt.Errorf("write transcript: %w", err))
			return
		}
	}

	c.transition(b, j, StateCompleted)
	log.Printf("[batch] %s completed %s (billed %.1fs, $%.4f)", b.ID, j.Path, j.BilledSeconds, j.ActualCost)
}

// loadKeyterms loads the identity's keyterm list, generating one via the LLM
// when enabled and nothing is stored yet. Metadata problems never fail a job.
func (c *Coordinator) loadKeyterms(b *Batch, resolved library.Resolved) []string {
	keyterms, err := c.deps.Metadata.LoadKeyterms(resolved.KeytermsPath)
	if err != nil {
		log.Printf("[batch] %s keyterms for %s: %v", b.ID, resolved.Identity, err)
		return nil
	}
	if len(keyterms) > 0 || !b.Options.GenerateKeyterms || c.deps.Keyterms == nil {
		return keyterms
	}

	resp, err := c.deps.Keyterms.Generate(c.ctx, keytermgen.Request{ShowName: resolved.Identity})
	if err != nil {
		log.Printf("[batch] %s keyterm generation for %s: %v", b.ID, resolved.Identity, err)
		return keyterms
	}
	merged := metadata.MergeKeyterms(keyterms, resp.Keyterms, b.Options.KeytermMerge)
	if err := c.deps.Metadata.SaveKeyterms(resolved.Identity, resolved.KeytermsPath, merged); err != nil {
		log.Printf("[batch] %s save keyterms for %s: %v", b.ID, resolved.Identity, err)
	}
	log.Printf("[batch] %s generated %d keyterms for %s (%d tokens)",
		b.ID, len(resp.Keyterms), resolved.Identity, resp.TokenCount)
	return merged
}

// outputsExist implements the skip predicate. With diarization on, both the
// captions and the transcript must exist for the file to be skippable.
func outputsExist(resolved library.Resolved, diarize bool) bool {
	if _, err := os.Stat(resolved.OutputPath); err != nil {
		return false
	}
	if !diarize {
		return true
	}
	_, err := os.Stat(resolved.TranscriptPath)
	return err == nil
}

// transition moves a job to the target state, persists it and publishes an
// event. Invalid transitions (e.g. after a concurrent terminal state) are
// dropped and reported false.
func (c *Coordinator) transition(b *Batch, j *Job, to State) bool {
	copy, ok := b.update(j, func(j *Job) {
		if to == StateExtracting && j.StartedAt == nil {
			now := time.Now()
			j.StartedAt = &now
		}
		j.State = to
	})
	if !ok {
		return false
	}
	c.persist(copy)
	c.publish(copy)
	return true
}

func (c *Coordinator) fail(b *Batch, j *Job, kind ErrorKind, err error) {
	copy, ok := b.update(j, func(j *Job) {
		j.State = StateFailed
		j.ErrorKind = kind
		j.Error = err.Error()
	})
	if !ok {
		return
	}
	log.Printf("[batch] %s job failed (%s): %s: %v", b.ID, kind, j.Path, err)
	c.persist(copy)
	c.publish(copy)
}

func (c *Coordinator) cancelJob(b *Batch, j *Job) {
	copy, ok := b.update(j, func(j *Job) {
		j.State = StateCancelled
	})
	if !ok {
		return
	}
	log.Printf("[batch] %s job cancelled: %s", b.ID, j.Path)
	c.persist(copy)
	c.publish(copy)
}

// apply mutates job fields without a state change.
func (c *Coordinator) apply(b *Batch, j *Job, fn func(*Job)) {
	copy, _ := b.update(j, fn)
	c.persist(copy)
}

func (c *Coordinator) persist(j Job) {
	if err := c.deps.Store.SaveJob(j); err != nil {
		log.Printf("[batch] persist job %s: %v", j.ID, err)
	}
}

func (c *Coordinator) publish(j Job) {
	c.hub.Publish(Event{
		BatchID:   j.BatchID,
		JobID:     j.ID,
		Path:      j.Path,
		State:     j.State,
		ErrorKind: j.ErrorKind,
		Error:     j.Error,
		Cost:      j.ActualCost,
		Terminal:  j.State.Terminal(),
	})
}
