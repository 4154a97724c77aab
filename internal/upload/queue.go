package upload

import (
	"context"
	"log/slog"
	"sync"
)

const QUEUE_CAPACITY = 64

// Processor uploads one accepted file and registers its job. reportProgress
// relays transferred-byte percentages from the storage layer.
type Processor func(ctx context.Context, f File, index int, reportProgress func(percent int)) error

// Callbacks are the queue's per-file outputs. index is the file's position
// in the accepted sequence, counted across batches.
type Callbacks struct {
	OnProgress func(f File, index, percent int)
	OnComplete func(f File, index int)
	OnError    func(f File, err error)
}

type queuedFile struct {
	file  File
	index int
}

// Queue accepts validated files and processes them strictly one at a time,
// in enqueue order. A failing file is reported and skipped; the rest of the
// queue is unaffected.
type Queue struct {
	validator *Validator
	process   Processor
	cb        Callbacks

	files chan queuedFile

	mu        sync.Mutex
	nextIndex int
}

func NewQueue(validator *Validator, process Processor, cb Callbacks) *Queue {
	return &Queue{
		validator: validator,
		process:   process,
		cb:        cb,
		files:     make(chan queuedFile, QUEUE_CAPACITY),
	}
}

// Start launches the single worker draining the queue. It returns
// immediately; the worker stops when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	go q.run(ctx)
}

func (q *Queue) run(ctx context.Context) {
	slog.Info("[UploadQueue] Worker started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("[UploadQueue] Worker stopped")
			return
		case item := <-q.files:
			q.handle(ctx, item)
		}
	}
}

func (q *Queue) handle(ctx context.Context, item queuedFile) {
	slog.Info("[UploadQueue] Processing file",
		slog.String("file", item.file.Name),
		slog.Int("index", item.index))

	err := q.process(ctx, item.file, item.index, func(percent int) {
		if q.cb.OnProgress != nil {
			q.cb.OnProgress(item.file, item.index, percent)
		}
	})
	if err != nil {
		slog.Error("[UploadQueue] File failed",
			slog.String("file", item.file.Name),
			slog.String("error", err.Error()))
		if q.cb.OnError != nil {
			q.cb.OnError(item.file, err)
		}
		return
	}

	if q.cb.OnComplete != nil {
		q.cb.OnComplete(item.file, item.index)
	}
}

// Enqueue validates the candidates and queues the accepted ones. The
// returned slice holds one verdict per input, nil meaning accepted; rejected
// files never enter the queue.
func (q *Queue) Enqueue(files ...File) []error {
	verdicts := make([]error, len(files))
	for i, f := range files {
		if err := q.validator.Validate(f); err != nil {
			slog.Warn("[UploadQueue] File rejected",
				slog.String("file", f.Name),
				slog.String("reason", err.Error()))
			verdicts[i] = err
			continue
		}

		q.mu.Lock()
		index := q.nextIndex
		q.nextIndex++
		q.mu.Unlock()

		q.files <- queuedFile{file: f, index: index}
	}
	return verdicts
}

// Pending reports how many accepted files are waiting for the worker.
func (q *Queue) Pending() int {
	return len(q.files)
}
