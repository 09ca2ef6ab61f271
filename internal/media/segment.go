package media

import (
	"fmt"
	"time"

	"mediabatch/internal/model"
)

const DefaultChunkLength = 60 * time.Second

// Segment splits a stream into contiguous chunks of chunkLength. Boundaries
// are placed on whole milliseconds, so durations sum to the stream duration
// and the last chunk carries the remainder (or a full length on an exact
// multiple). Sub-millisecond tail frames ride along in the last payload. Only
// a stream without frames yields no chunks.
func Segment(itemID string, s AudioStream, chunkLength time.Duration) ([]model.AudioChunk, error) {
	chunkMS := chunkLength.Milliseconds()
	if chunkMS <= 0 {
		return nil, fmt.Errorf("chunk length must be at least 1ms, got %s", chunkLength)
	}
	if s.SampleRate <= 0 || s.Channels <= 0 {
		return nil, fmt.Errorf("invalid audio format: rate=%d channels=%d", s.SampleRate, s.Channels)
	}

	frames := int64(s.Frames())
	if frames == 0 {
		return []model.AudioChunk{}, nil
	}
	frameBytes := int64(bytesPerSample * s.Channels)
	rate := int64(s.SampleRate)

	// A stream shorter than 1ms still yields one chunk so no frame is lost.
	totalMS := s.DurationMS()
	count := max((totalMS+chunkMS-1)/chunkMS, 1)
	chunks := make([]model.AudioChunk, 0, count)
	for i := int64(0); i < count; i++ {
		startMS := i * chunkMS
		endMS := min(startMS+chunkMS, totalMS)
		startFrame := startMS * rate / 1000
		endFrame := endMS * rate / 1000
		if i == count-1 {
			endFrame = frames
		}
		pcm := s.PCM[startFrame*frameBytes : endFrame*frameBytes]
		chunks = append(chunks, model.AudioChunk{
			ItemID:     itemID,
			Index:      int(i),
			Payload:    EncodeWAV(pcm, s.SampleRate, s.Channels),
			DurationMS: endMS - startMS,
		})
	}
	return chunks, nil
}
