// Package stream converts a finished response into an incremental,
// cancellable wire stream. It never re-invokes generation; the producer
// enumerates an already-complete text.
package stream

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/davidbz/ember/internal/domain"
)

const (
	// ChannelCapacity bounds the producer/consumer channel.
	ChannelCapacity = 32

	defaultWordsPerChunk = 3
	defaultChunkDelay    = 60 * time.Millisecond
)

// Event is one frame of the event-stream protocol. Name is "token",
// "meta" or "done".
type Event struct {
	Name string
	Data string
}

// LineChunk is one object of the line-delimited protocol. Token lines
// carry done=false; the terminal line carries done=true plus the cache
// annotations and conversation id.
type LineChunk struct {
	Model          string    `json:"model"`
	CreatedAt      time.Time `json:"created_at"`
	Response       string    `json:"response"`
	Done           bool      `json:"done"`
	CacheHit       *bool     `json:"cache_hit,omitempty"`
	CacheSource    string    `json:"cache_source,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// Emitter produces token streams from complete responses. The producer
// runs as its own goroutine feeding a bounded channel; it stops as soon
// as the context is cancelled (client disconnect), which is the only
// cancellation mechanism.
type Emitter struct {
	wordsPerChunk int
	chunkDelay    time.Duration
}

// NewEmitter creates an emitter with the standard chunking (3 words per
// chunk, 60 ms between chunks).
func NewEmitter() *Emitter {
	return &Emitter{
		wordsPerChunk: defaultWordsPerChunk,
		chunkDelay:    defaultChunkDelay,
	}
}

// NewEmitterWith creates an emitter with explicit chunking parameters.
func NewEmitterWith(wordsPerChunk int, chunkDelay time.Duration) *Emitter {
	if wordsPerChunk < 1 {
		wordsPerChunk = 1
	}
	return &Emitter{
		wordsPerChunk: wordsPerChunk,
		chunkDelay:    chunkDelay,
	}
}

// Events streams resp as token events (word groups, chunks after the
// first carrying one leading space so that concatenation reproduces the
// text), then a meta event with the cache annotations, then an empty
// done event.
func (e *Emitter) Events(ctx context.Context, resp *domain.ChatResponse) <-chan Event {
	out := make(chan Event, ChannelCapacity)

	go func() {
		defer close(out)

		words := strings.Fields(resp.Response)
		for i := 0; i < len(words); i += e.wordsPerChunk {
			end := min(i+e.wordsPerChunk, len(words))
			data := strings.Join(words[i:end], " ")
			if i > 0 {
				data = " " + data
			}
			if !send(ctx, out, Event{Name: "token", Data: data}) {
				return
			}
			if !pause(ctx, e.chunkDelay) {
				return
			}
		}

		meta, err := json.Marshal(map[string]any{
			"cache_hit":    resp.CacheHit,
			"cache_source": nullableSource(resp.CacheSource),
		})
		if err != nil {
			meta = []byte("{}")
		}
		if !send(ctx, out, Event{Name: "meta", Data: string(meta)}) {
			return
		}
		send(ctx, out, Event{Name: "done", Data: ""})
	}()

	return out
}

// Lines streams resp word by word (words after the first carrying one
// leading space), then the terminal done line.
func (e *Emitter) Lines(ctx context.Context, model string, resp *domain.ChatResponse) <-chan LineChunk {
	out := make(chan LineChunk, ChannelCapacity)

	go func() {
		defer close(out)

		words := strings.Fields(resp.Response)
		for i, word := range words {
			token := word
			if i > 0 {
				token = " " + token
			}
			chunk := LineChunk{
				Model:     model,
				CreatedAt: time.Now().UTC(),
				Response:  token,
				Done:      false,
			}
			if !send(ctx, out, chunk) {
				return
			}
			if !pause(ctx, e.chunkDelay) {
				return
			}
		}

		cacheHit := resp.CacheHit
		send(ctx, out, LineChunk{
			Model:          model,
			CreatedAt:      time.Now().UTC(),
			Response:       "",
			Done:           true,
			CacheHit:       &cacheHit,
			CacheSource:    resp.CacheSource,
			ConversationID: resp.ConversationID.String(),
		})
	}()

	return out
}

// send delivers one value unless the consumer is gone.
func send[T any](ctx context.Context, out chan<- T, value T) bool {
	select {
	case out <- value:
		return true
	case <-ctx.Done():
		return false
	}
}

// pause waits the inter-chunk delay, aborting on cancellation.
func pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nullableSource(source string) any {
	if source == "" {
		return nil
	}
	return source
}
