package ytdlp

import "strings"

type ErrorKind string

const (
	KindTransfer       ErrorKind = "transfer"
	KindExtraction     ErrorKind = "extraction"
	KindPostProcessing ErrorKind = "post_processing"
	KindUnexpected     ErrorKind = "unexpected"
)

// FetchError carries the failure class of one fetch.
type FetchError struct {
	Kind ErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	return e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

var (
	postProcessingHints = []string{
		"postprocessing:",
		"post-processing",
		"conversion failed",
		"error merging",
		"ffmpeg could not be found",
		"ffprobe could not be found",
		"unable to remux",
	}
	transferHints = []string{
		"http error",
		"429",
		"too many requests",
		"unable to download video data",
		"did not get any data blocks",
		"timed out",
		"timeout",
		"connection reset",
		"connection refused",
		"temporarily unavailable",
		"network is unreachable",
		"name or service not known",
		"giving up after",
		"incompleteread",
		"ssl:",
	}
	extractionHints = []string{
		"unsupported url",
		"video unavailable",
		"private video",
		"unable to extract",
		"no video formats found",
		"requested format is not available",
		"is not a valid url",
		"this video is",
		"sign in to confirm",
		"has been removed",
	}
)

// Classify maps yt-dlp output onto a failure class. Post-processing is
// checked first because its messages quote the underlying ffmpeg error.
func Classify(output string) ErrorKind {
	text := strings.ToLower(output)
	switch {
	case containsAny(text, postProcessingHints):
		return KindPostProcessing
	case containsAny(text, transferHints):
		return KindTransfer
	case containsAny(text, extractionHints):
		return KindExtraction
	case strings.Contains(text, "error: ["):
		// Extractor-prefixed error without a more specific hint.
		return KindExtraction
	default:
		return KindUnexpected
	}
}

func containsAny(text string, hints []string) bool {
	for _, h := range hints {
		if strings.Contains(text, h) {
			return true
		}
	}
	return false
}
