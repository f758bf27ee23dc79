// Package analysis runs one upload through staging, validation, AI analysis
// and persistence. Every step goes through the upload session state machine.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"syllabusai/internal/calendar"
	"syllabusai/internal/database"
	"syllabusai/internal/errcode"
	"syllabusai/internal/extract"
	"syllabusai/internal/genai"
	"syllabusai/internal/notify"
	"syllabusai/internal/scan"
	"syllabusai/internal/storage"
	"syllabusai/internal/tasks"
	"syllabusai/internal/uploads"
)

var (
	// ErrNoFile is returned when the upload has no usable filename.
	ErrNoFile = errors.New("no selected file")
	// ErrExtensionNotAllowed is returned for files outside pdf, doc, docx, txt.
	ErrExtensionNotAllowed = errors.New("file type not allowed")
	// ErrNotSyllabus is returned by Validate when the AI says no.
	ErrNotSyllabus = errors.New("document is not a course syllabus")
)

// Enqueuer schedules background tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Options tune the pipeline.
type Options struct {
	MaxPromptChars int
	StrictCalendar bool
	StagingTTL     time.Duration
}

// Service wires the pipeline's collaborators.
type Service struct {
	db       *gorm.DB
	sessions *uploads.Store
	stager   storage.Stager
	scanner  scan.Scanner
	ai       genai.Analyzer
	notifier notify.Publisher
	enqueuer Enqueuer
	logger   *slog.Logger
	opts     Options
}

// NewService builds a Service. enqueuer may be nil, in which case abandoned
// uploads are only reaped by a later sweep.
func NewService(
	db *gorm.DB,
	stager storage.Stager,
	scanner scan.Scanner,
	ai genai.Analyzer,
	notifier notify.Publisher,
	enqueuer Enqueuer,
	logger *slog.Logger,
	opts Options,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if scanner == nil {
		scanner = scan.Noop{}
	}
	if opts.MaxPromptChars <= 0 {
		opts.MaxPromptChars = extract.DefaultMaxChars
	}
	return &Service{
		db:       db,
		sessions: uploads.NewStore(db),
		stager:   stager,
		scanner:  scanner,
		ai:       ai,
		notifier: notifier,
		enqueuer: enqueuer,
		logger:   logger,
		opts:     opts,
	}
}

// Sessions exposes the session store for read-only views.
func (s *Service) Sessions() *uploads.Store {
	return s.sessions
}

// AIAvailable reports whether the AI client is configured.
func (s *Service) AIAvailable() bool {
	return s.ai.Available()
}

// Upload is one incoming file.
type Upload struct {
	UserID        uint
	Username      string
	Filename      string
	Size          int64
	Body          io.ReadSeeker
	CorrelationID string
}

// Stage checks and stores an upload and opens a session for it.
func (s *Service) Stage(ctx context.Context, up Upload) (*database.UploadSession, error) {
	if up.Filename == "" || up.Body == nil {
		return nil, ErrNoFile
	}
	ext := extract.Ext(up.Filename)
	if !extract.Supported(ext) {
		return nil, fmt.Errorf("%w: %q", ErrExtensionNotAllowed, up.Filename)
	}

	filename := uploads.SecureFilename(up.Filename)
	if extract.Ext(filename) != ext {
		filename = "upload." + ext
	}

	if err := s.scanner.Scan(up.Body); err != nil {
		return nil, fmt.Errorf("scan upload: %w", err)
	}
	if _, err := up.Body.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind upload: %w", err)
	}

	requestID := uuid.NewString()
	key := uploads.StagedKey(up.Username, requestID, filename)
	if err := s.stager.Save(ctx, key, up.Body, up.Size, extract.MIMEType(ext)); err != nil {
		return nil, fmt.Errorf("stage upload: %w", err)
	}

	sess := &database.UploadSession{
		ID:           requestID,
		UserID:       up.UserID,
		OriginalName: up.Filename,
		StagedKey:    key,
		Extension:    ext,
	}
	detail := map[string]any{"size": up.Size, "correlation_id": up.CorrelationID}
	if err := s.sessions.Create(ctx, sess, detail); err != nil {
		s.deleteStaged(ctx, key)
		return nil, err
	}

	s.scheduleReap(ctx, sess.ID, up.CorrelationID)
	s.publish(ctx, sess, notify.Message{Status: notify.StatusProgress, Stage: string(uploads.FileStaged)})
	return sess, nil
}

// Validate asks the AI whether the staged document is a syllabus. A negative
// verdict moves the session to Rejected, deletes the staged file and returns
// ErrNotSyllabus.
func (s *Service) Validate(ctx context.Context, sessionID string, userID uint) (*database.UploadSession, error) {
	sess, err := s.sessions.GetForUser(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	if err := requireState(sess, uploads.FileStaged, uploads.Validated); err != nil {
		return nil, err
	}

	doc, err := s.loadDocument(ctx, sess)
	if err != nil {
		return nil, s.fail(ctx, sess, "validate", err)
	}

	s.publish(ctx, sess, notify.Message{Status: notify.StatusProgress, Stage: "validating"})
	valid, err := s.ai.Validate(ctx, doc)
	if err != nil {
		return nil, s.fail(ctx, sess, "validate", err)
	}

	if !valid {
		s.deleteStaged(ctx, sess.StagedKey)
		if _, err := s.sessions.Transition(detach(ctx), sess.ID, uploads.Change{To: uploads.Rejected}); err != nil {
			return nil, err
		}
		s.publish(ctx, sess, notify.Message{
			Status:       notify.StatusError,
			Stage:        string(uploads.Rejected),
			ErrorCode:    errcode.NotSyllabus,
			ErrorMessage: ErrNotSyllabus.Error(),
		})
		return nil, ErrNotSyllabus
	}

	updated, err := s.sessions.Transition(ctx, sess.ID, uploads.Change{To: uploads.Validated})
	if err != nil {
		return nil, s.fail(ctx, sess, "validate", err)
	}
	s.publish(ctx, updated, notify.Message{Status: notify.StatusProgress, Stage: string(uploads.Validated)})
	return updated, nil
}

// Request carries the user supplied details for analysis.
type Request struct {
	SessionID     string
	UserID        uint
	CourseName    string
	SemesterStart *time.Time
	SemesterEnd   *time.Time
}

// Analyze produces the summary, resources and optional calendar, stores the
// result and clears the session.
func (s *Service) Analyze(ctx context.Context, req Request) (*database.Result, error) {
	sess, err := s.sessions.GetForUser(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}
	if err := requireState(sess, uploads.Validated, uploads.Analyzed); err != nil {
		return nil, err
	}

	courseName := req.CourseName
	if courseName == "" {
		courseName = sess.OriginalName
	}

	doc, err := s.loadDocument(ctx, sess)
	if err != nil {
		return nil, s.fail(ctx, sess, "analyze", err)
	}

	s.publish(ctx, sess, notify.Message{Status: notify.StatusProgress, Stage: "summarizing"})
	summary, err := s.ai.Summarize(ctx, doc)
	if err != nil {
		return nil, s.fail(ctx, sess, "summarize", err)
	}

	s.publish(ctx, sess, notify.Message{Status: notify.StatusProgress, Stage: "resources"})
	resources, err := s.ai.Resources(ctx, doc)
	if err != nil {
		return nil, s.fail(ctx, sess, "resources", err)
	}

	var cal []byte
	if req.SemesterStart != nil || req.SemesterEnd != nil {
		s.publish(ctx, sess, notify.Message{Status: notify.StatusProgress, Stage: "calendar"})
		raw, err := s.ai.Calendar(ctx, doc, genai.CalendarRequest{
			CourseName: courseName,
			Start:      req.SemesterStart,
			End:        req.SemesterEnd,
		})
		if err != nil {
			return nil, s.fail(ctx, sess, "calendar", err)
		}
		cal = s.acceptCalendar(sess, raw)
	}

	if _, err := s.sessions.Transition(ctx, sess.ID, uploads.Change{
		To: uploads.Analyzed,
		Detail: map[string]any{
			"summary_chars":   len(summary),
			"resources_chars": len(resources),
			"calendar_bytes":  len(cal),
		},
	}); err != nil {
		return nil, s.fail(ctx, sess, "analyze", err)
	}

	result := &database.Result{
		UserID:            req.UserID,
		CourseName:        courseName,
		Summary:           summary,
		Resources:         resources,
		SemesterStartDate: req.SemesterStart,
		SemesterEndDate:   req.SemesterEnd,
		Calendar:          cal,
	}
	if err := database.CreateResult(ctx, s.db, result); err != nil {
		return nil, s.fail(ctx, sess, "persist", err)
	}

	if _, err := s.sessions.Transition(ctx, sess.ID, uploads.Change{To: uploads.Persisted, ResultID: &result.ID}); err != nil {
		s.logger.Error("mark session persisted",
			slog.String("session_id", sess.ID),
			slog.Uint64("result_id", uint64(result.ID)),
			slog.String("error", err.Error()),
		)
		return result, nil
	}

	s.deleteStaged(ctx, sess.StagedKey)
	if _, err := s.sessions.Transition(detach(ctx), sess.ID, uploads.Change{To: uploads.Cleared}); err != nil {
		s.logger.Warn("clear session", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
	}

	s.publish(ctx, sess, notify.Message{Status: notify.StatusDone, Stage: string(uploads.Cleared), ResultID: result.ID})
	return result, nil
}

// Cancel abandons a session the user no longer wants and deletes its staged
// file. Sessions already in a terminal state are left untouched.
func (s *Service) Cancel(ctx context.Context, sessionID string, userID uint) error {
	sess, err := s.sessions.GetForUser(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if uploads.State(sess.State).Terminal() {
		return nil
	}
	s.deleteStaged(ctx, sess.StagedKey)
	if _, err := s.sessions.Transition(detach(ctx), sess.ID, uploads.Change{
		To:     uploads.Abandoned,
		Detail: map[string]any{"reason": "cancelled"},
	}); err != nil {
		return err
	}
	s.publish(ctx, sess, notify.Message{Status: notify.StatusDone, Stage: string(uploads.Abandoned)})
	return nil
}

// acceptCalendar applies the leniency policy to the AI's calendar reply.
func (s *Service) acceptCalendar(sess *database.UploadSession, raw string) []byte {
	normalized := calendar.Normalize(raw)
	log := s.logger.With(slog.String("session_id", sess.ID))
	if normalized.Delimited {
		if normalized.Events < 0 {
			log.Warn("calendar has markers but does not parse")
		}
		return normalized.Data
	}
	if s.opts.StrictCalendar {
		log.Warn("discarding calendar without VCALENDAR markers")
		return nil
	}
	log.Warn("storing calendar without VCALENDAR markers")
	if len(normalized.Data) == 0 {
		return nil
	}
	return normalized.Data
}

func (s *Service) loadDocument(ctx context.Context, sess *database.UploadSession) (genai.Document, error) {
	data, err := storage.ReadAll(ctx, s.stager, sess.StagedKey)
	if err != nil {
		return genai.Document{}, err
	}

	doc := genai.Document{
		DisplayName: sess.OriginalName,
		MIMEType:    extract.MIMEType(sess.Extension),
	}
	if !extract.ExtractsLocally(sess.Extension) {
		doc.Data = data
		return doc, nil
	}

	text, err := extract.Text(sess.Extension, data)
	if err != nil {
		return genai.Document{}, fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return genai.Document{}, genai.ErrEmptyDocument
	}
	doc.Text = extract.Truncate(text, s.opts.MaxPromptChars)
	return doc, nil
}

// fail deletes the staged file and moves the session to Failed. It returns
// cause wrapped with the step name.
func (s *Service) fail(ctx context.Context, sess *database.UploadSession, step string, cause error) error {
	ctx = detach(ctx)
	s.logger.Error("analysis step failed",
		slog.String("session_id", sess.ID),
		slog.String("step", step),
		slog.String("error", cause.Error()),
	)

	s.deleteStaged(ctx, sess.StagedKey)
	if _, err := s.sessions.Transition(ctx, sess.ID, uploads.Change{
		To:     uploads.Failed,
		Error:  cause.Error(),
		Detail: map[string]any{"step": step},
	}); err != nil {
		s.logger.Warn("mark session failed", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
	}

	s.publish(ctx, sess, notify.Message{
		Status:       notify.StatusError,
		Stage:        string(uploads.Failed),
		ErrorCode:    Code(cause),
		ErrorMessage: step + " failed",
	})
	return fmt.Errorf("%s: %w", step, cause)
}

func (s *Service) deleteStaged(ctx context.Context, key string) {
	if err := s.stager.Delete(detach(ctx), key); err != nil {
		s.logger.Warn("delete staged file", slog.String("key", key), slog.String("error", err.Error()))
	}
}

func (s *Service) scheduleReap(ctx context.Context, sessionID, correlationID string) {
	if s.enqueuer == nil || s.opts.StagingTTL <= 0 {
		return
	}
	task, opts, err := tasks.NewStagingReapTask(sessionID, correlationID, s.opts.StagingTTL)
	if err != nil {
		s.logger.Error("build reap task", slog.String("error", err.Error()))
		return
	}
	if _, err := s.enqueuer.EnqueueContext(ctx, task, opts...); err != nil {
		s.logger.Warn("enqueue reap task", slog.String("session_id", sessionID), slog.String("error", err.Error()))
	}
}

func (s *Service) publish(ctx context.Context, sess *database.UploadSession, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	msg.SessionID = sess.ID
	if err := s.notifier.Publish(detach(ctx), sess.UserID, msg); err != nil {
		s.logger.Warn("publish progress", slog.String("session_id", sess.ID), slog.String("error", err.Error()))
	}
}

func requireState(sess *database.UploadSession, want, next uploads.State) error {
	if uploads.State(sess.State) != want {
		return &uploads.TransitionError{From: uploads.State(sess.State), To: next}
	}
	return nil
}

// detach keeps request values but drops cancellation, so cleanup runs after
// the client goes away.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

// Code maps a pipeline error onto an errcode value.
func Code(err error) int {
	var apiErr *genai.APIError
	switch {
	case err == nil:
		return errcode.OK
	case errors.Is(err, ErrNotSyllabus):
		return errcode.NotSyllabus
	case errors.Is(err, scan.ErrInfected):
		return errcode.Infected
	case errors.Is(err, genai.ErrUnavailable):
		return errcode.AIUnavailable
	case errors.Is(err, genai.ErrEmptyDocument):
		return errcode.EmptyDocument
	case errors.As(err, &apiErr), errors.Is(err, genai.ErrEmptyResponse):
		return errcode.AIFailure
	default:
		return errcode.SystemError
	}
}
